// Package mqueue implements the point-to-point transport primitive: each
// peer owns one inbound message queue and sends to peers' queues by
// name, with bounded retries and backoff. The real backend is POSIX
// message queues on Linux (mqueue_linux.go); other platforms fall back
// to a rename-guarded spool directory (mqueue_other.go).
package mqueue

import (
	"errors"
	"fmt"
	"time"

	"github.com/ehrlich-b/synctext/internal/logger"
)

const (
	// MaxMsg is the queue's message-count capacity.
	MaxMsg = 10

	// DefaultMsgSize is used when the host's max message size cannot be
	// discovered, or as an upper bound over whatever the host allows.
	DefaultMsgSize = 8192

	DefaultMaxRetries  = 6
	DefaultRetryDelay  = 100 * time.Millisecond
	retryPollInterrupt = 10 * time.Millisecond
)

// ErrTooLarge is the error SendWithRetries logs, before returning false
// without retrying, when a payload exceeds the queue's configured message
// size.
var ErrTooLarge = errors.New("mqueue: message exceeds queue message size")

// inbound is the platform-specific handle backing a peer's own queue.
type inbound interface {
	// Receive blocks until a message is available or the queue is closed,
	// copying into buf and returning the byte count.
	Receive(buf []byte) (int, error)
	Close() error
	Unlink() error
}

// Queue is one peer's inbound queue.
type Queue struct {
	h       inbound
	name    string
	msgSize int
}

// QueueName is the conventional fallback name for a uid's inbound queue.
func QueueName(uid string) string { return "/mq_" + uid }

func msgSizeFor(systemMax int) int {
	if systemMax <= 0 || systemMax > DefaultMsgSize {
		return DefaultMsgSize
	}
	return systemMax
}

// CreateSelf creates the caller's own inbound queue, or opens it as it is
// (attributes and pending messages kept) if it already exists, sized from the host's discovered max message size capped at
// DefaultMsgSize, mode 0666, capacity maxMsg. Pass MaxMsg for the
// built-in default, or config.Config.MQMaxMsgDefault to honor an
// operator override.
func CreateSelf(uid string, maxMsg int) (*Queue, error) {
	if maxMsg <= 0 {
		maxMsg = MaxMsg
	}
	name := QueueName(uid)
	size := msgSizeFor(discoverMaxMsgSize())

	h, err := createInbound(name, maxMsg, size)
	if err != nil {
		return nil, fmt.Errorf("create queue %s: %w", name, err)
	}
	logger.Info("queue created", "name", name, "msgsize", size, "maxmsg", maxMsg)
	return &Queue{h: h, name: name, msgSize: size}, nil
}

// MsgSize is the negotiated per-message byte limit for this queue.
func (q *Queue) MsgSize() int { return q.msgSize }

// Name is this queue's conventional name.
func (q *Queue) Name() string { return q.name }

// Receive blocks for the next message. Buffers should be sized msgSize+10
// to leave headroom for framing.
func (q *Queue) Receive(buf []byte) (int, error) {
	return q.h.Receive(buf)
}

// Close releases the local descriptor without removing the queue.
func (q *Queue) Close() error {
	return q.h.Close()
}

// Unlink removes the queue from the system; callers do this on exit.
func (q *Queue) Unlink() error {
	return q.h.Unlink()
}

// SendWithRetries attempts delivery up to maxRetries times, delay apart,
// each opening the target queue write-only on demand. Oversized payloads
// abort immediately
// and are reported via the bool return (false) plus a logged TooLarge
// warning; they do not consume a retry.
func SendWithRetries(qname string, payload []byte, maxRetries int, delay time.Duration) bool {
	if len(payload) > msgSizeFor(discoverMaxMsgSize()) {
		logger.Warn("send aborted: payload too large", "queue", qname, "bytes", len(payload), "err", ErrTooLarge)
		return false
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := sendOnce(qname, payload); err == nil {
			return true
		} else {
			logger.Debug("send attempt failed", "queue", qname, "attempt", attempt, "err", err)
		}
		if attempt < maxRetries {
			time.Sleep(delay)
		}
	}
	logger.Warn("send exhausted retries", "queue", qname, "retries", maxRetries)
	return false
}

func discoverMaxMsgSize() int {
	return platformMaxMsgSize()
}
