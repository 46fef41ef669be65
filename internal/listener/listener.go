// Package listener runs the blocking receive loop: it owns the peer's
// inbound queue, forwards every message into the receive ring for the
// engine to drain, and separately surfaces a human-readable notification
// for the rendering collaborator.
package listener

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/ehrlich-b/synctext/internal/logger"
	"github.com/ehrlich-b/synctext/internal/recvring"
	"github.com/ehrlich-b/synctext/internal/update"
)

// Queue is the subset of *mqueue.Queue the listener needs; narrowed to an
// interface so tests can drive the loop without a real queue backend.
type Queue interface {
	Receive(buf []byte) (int, error)
	MsgSize() int
	Close() error
}

// Notifier receives human-readable status lines for the rendering
// collaborator; *snapshot.Board implements this.
type Notifier interface {
	Notify(msg string)
}

// Listener runs Run in its own goroutine for the lifetime of the process.
type Listener struct {
	q        Queue
	ring     *recvring.Ring
	notifier Notifier
	shutdown *atomic.Bool
}

func New(q Queue, ring *recvring.Ring, notifier Notifier, shutdown *atomic.Bool) *Listener {
	return &Listener{q: q, ring: ring, notifier: notifier, shutdown: shutdown}
}

// Run blocks, reading from q until the shared shutdown flag is set, then
// closes q and returns. The flag is checked between receives, so a Run
// blocked in Receive returns only after that receive completes. Any receive error other than a clean shutdown
// backs off 50ms before retrying; the underlying queue implementations
// already retry EINTR internally, so every error surfaced here is the
// "other error" case.
func (l *Listener) Run() {
	buf := make([]byte, l.q.MsgSize()+10)
	for {
		if l.shutdown.Load() {
			l.q.Close()
			return
		}

		n, err := l.q.Receive(buf)
		if err != nil {
			if l.shutdown.Load() {
				l.q.Close()
				return
			}
			logger.Debug("listener receive error, retrying", "err", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		payload := string(buf[:n])
		if !l.ring.Push(payload) {
			logger.Warn("receive ring full, dropping message")
			continue
		}
		l.notify(payload)
	}
}

func (l *Listener) notify(payload string) {
	u, err := update.Deserialize(payload)
	if err != nil {
		logger.Warn("listener: malformed payload, skipping notification", "err", err)
		return
	}
	if err := update.Validate(u); err != nil {
		logger.Warn("listener: invalid update, skipping notification", "err", err)
		return
	}
	if l.notifier != nil {
		l.notifier.Notify("Received update from " + u.UID + ": Line " + strconv.Itoa(u.Line) + " modified")
	}
}
