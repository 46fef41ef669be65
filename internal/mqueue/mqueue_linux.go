//go:build linux

package mqueue

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mqAttr mirrors glibc's struct mq_attr (four longs plus reserved padding);
// golang.org/x/sys/unix does not expose a Go type for it, so the raw shape
// is reproduced here for use with the raw mq_* syscalls below.
type mqAttr struct {
	Flags   int64
	Maxmsg  int64
	Msgsize int64
	Curmsgs int64
	_pad    [4]int64
}

func mqOpen(name string, oflag int, mode uint32, attr *mqAttr) (int, error) {
	nameBytes, err := unix.BytePtrFromString(name)
	if err != nil {
		return -1, err
	}
	fd, _, errno := unix.Syscall6(unix.SYS_MQ_OPEN,
		uintptr(unsafe.Pointer(nameBytes)),
		uintptr(oflag),
		uintptr(mode),
		uintptr(unsafe.Pointer(attr)),
		0, 0)
	if errno != 0 {
		return -1, errno
	}
	return int(fd), nil
}

func mqUnlink(name string) error {
	nameBytes, err := unix.BytePtrFromString(name)
	if err != nil {
		return err
	}
	_, _, errno := unix.Syscall(unix.SYS_MQ_UNLINK, uintptr(unsafe.Pointer(nameBytes)), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// mqTimedSend submits payload with abstime as the absolute CLOCK_REALTIME
// deadline; passing "now" makes this a non-blocking attempt, one per
// retry attempt.
func mqTimedSend(fd int, payload []byte, abstime *unix.Timespec) error {
	var payloadPtr unsafe.Pointer
	if len(payload) > 0 {
		payloadPtr = unsafe.Pointer(&payload[0])
	}
	_, _, errno := unix.Syscall6(unix.SYS_MQ_TIMEDSEND,
		uintptr(fd),
		uintptr(payloadPtr),
		uintptr(len(payload)),
		0,
		uintptr(unsafe.Pointer(abstime)),
		0)
	if errno != 0 {
		return errno
	}
	return nil
}

// mqTimedReceive blocks until a message arrives, an abstime deadline
// passes, or the call is interrupted. A nil abstime blocks indefinitely,
// reproducing plain mq_receive semantics.
func mqTimedReceive(fd int, buf []byte, abstime *unix.Timespec) (int, error) {
	var bufPtr unsafe.Pointer
	if len(buf) > 0 {
		bufPtr = unsafe.Pointer(&buf[0])
	}
	n, _, errno := unix.Syscall6(unix.SYS_MQ_TIMEDRECEIVE,
		uintptr(fd),
		uintptr(bufPtr),
		uintptr(len(buf)),
		0,
		uintptr(unsafe.Pointer(abstime)),
		0)
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}

type linuxInbound struct {
	fd   int
	name string
}

func createInbound(name string, maxMsg, msgSize int) (inbound, error) {
	attr := &mqAttr{Maxmsg: int64(maxMsg), Msgsize: int64(msgSize)}
	fd, err := mqOpen(name, unix.O_CREAT|unix.O_RDONLY, 0666, attr)
	if err != nil {
		return nil, err
	}
	return &linuxInbound{fd: fd, name: name}, nil
}

func (q *linuxInbound) Receive(buf []byte) (int, error) {
	for {
		n, err := mqTimedReceive(q.fd, buf, nil)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

func (q *linuxInbound) Close() error {
	return unix.Close(q.fd)
}

func (q *linuxInbound) Unlink() error {
	return mqUnlink(q.name)
}

// sendOnce opens the target queue write-only and attempts one non-blocking
// send; the caller (SendWithRetries) supplies the backoff between attempts.
func sendOnce(name string, payload []byte) error {
	fd, err := mqOpen(name, unix.O_WRONLY|unix.O_NONBLOCK, 0, nil)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer unix.Close(fd)

	var now unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_REALTIME, &now); err != nil {
		return fmt.Errorf("clock_gettime: %w", err)
	}
	if err := mqTimedSend(fd, payload, &now); err != nil {
		return fmt.Errorf("send %s: %w", name, err)
	}
	return nil
}

func platformMaxMsgSize() int {
	raw, err := os.ReadFile("/proc/sys/fs/mqueue/msgsize_max")
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0
	}
	return n
}
