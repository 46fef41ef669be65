package listener

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ehrlich-b/synctext/internal/recvring"
	"github.com/ehrlich-b/synctext/internal/update"
)

type fakeQueue struct {
	msgs    chan string
	errOnce error
	closed  atomic.Bool
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{msgs: make(chan string, 16)}
}

func (q *fakeQueue) MsgSize() int { return 128 }

func (q *fakeQueue) Receive(buf []byte) (int, error) {
	if err := q.errOnce; err != nil {
		q.errOnce = nil
		return 0, err
	}
	s, ok := <-q.msgs
	if !ok {
		return 0, errors.New("queue closed")
	}
	return copy(buf, s), nil
}

func (q *fakeQueue) Close() error {
	q.closed.Store(true)
	return nil
}

type fakeNotifier struct {
	msgs chan string
}

func (n *fakeNotifier) Notify(msg string) { n.msgs <- msg }

func TestListenerPushesToRing(t *testing.T) {
	q := newFakeQueue()
	ring := recvring.New(16)
	notifier := &fakeNotifier{msgs: make(chan string, 4)}
	var shutdown atomic.Bool

	l := New(q, ring, notifier, &shutdown)
	go l.Run()

	u := update.Update{Op: update.Insert, Line: 3, StartCol: 0, EndCol: 0, Next: "hi", TS: 1, UID: "alice"}
	q.msgs <- update.Serialize(u)

	select {
	case msg := <-notifier.msgs:
		want := "Received update from alice: Line 3 modified"
		if msg != want {
			t.Errorf("got notification %q, want %q", msg, want)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}

	deadline := time.After(time.Second)
	for {
		if s, ok := ring.Pop(); ok {
			if s != update.Serialize(u) {
				t.Errorf("ring payload = %q, want %q", s, update.Serialize(u))
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for ring push")
		default:
		}
	}

	shutdown.Store(true)
	close(q.msgs)
	time.Sleep(50 * time.Millisecond)
	if !q.closed.Load() {
		t.Error("expected listener to close the queue on shutdown")
	}
}

func TestListenerMalformedPayloadSkipsNotificationNotRing(t *testing.T) {
	q := newFakeQueue()
	ring := recvring.New(16)
	notifier := &fakeNotifier{msgs: make(chan string, 4)}
	var shutdown atomic.Bool

	l := New(q, ring, notifier, &shutdown)
	go l.Run()

	q.msgs <- "not-a-valid-update"

	deadline := time.After(time.Second)
	for {
		if s, ok := ring.Pop(); ok {
			if s != "not-a-valid-update" {
				t.Errorf("unexpected ring content %q", s)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for malformed payload to reach ring")
		default:
		}
	}

	select {
	case msg := <-notifier.msgs:
		t.Errorf("expected no notification for malformed payload, got %q", msg)
	case <-time.After(100 * time.Millisecond):
	}

	shutdown.Store(true)
	close(q.msgs)
}
