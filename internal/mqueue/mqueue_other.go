//go:build !linux

package mqueue

import (
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ehrlich-b/synctext/internal/logger"
)

// No host exposes POSIX message queues outside Linux in any form this
// package can rely on, so this fallback spools messages as files under a
// per-queue directory: a writer renames a fully-written temp file into the
// directory (rename is atomic within a filesystem), and the reader claims
// the oldest entry by renaming it again before reading, so a second reader
// racing the same file loses the rename and moves on. Single-reader usage
// (one listener per queue) never exercises that race in practice.
func spoolRoot() string {
	return filepath.Join(os.TempDir(), "synctext-mq")
}

func spoolDir(name string) string {
	return filepath.Join(spoolRoot(), strings.TrimPrefix(name, "/"))
}

type otherInbound struct {
	dir    string
	name   string
	closed atomic.Bool
}

func createInbound(name string, maxMsg, msgSize int) (inbound, error) {
	dir := spoolDir(name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	logger.Warn("no POSIX message queue on this platform; using file-spool fallback", "dir", dir)
	return &otherInbound{dir: dir, name: name}, nil
}

func (q *otherInbound) Receive(buf []byte) (int, error) {
	for {
		if q.closed.Load() {
			return 0, io.EOF
		}

		entries, err := os.ReadDir(q.dir)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}

		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".msg") {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)

		for _, n := range names {
			src := filepath.Join(q.dir, n)
			claimed := src + ".claim"
			if err := os.Rename(src, claimed); err != nil {
				continue // another reader claimed it first
			}
			data, err := os.ReadFile(claimed)
			os.Remove(claimed)
			if err != nil {
				continue
			}
			return copy(buf, data), nil
		}

		time.Sleep(50 * time.Millisecond)
	}
}

func (q *otherInbound) Close() error {
	q.closed.Store(true)
	return nil
}

func (q *otherInbound) Unlink() error {
	return os.RemoveAll(q.dir)
}

func sendOnce(name string, payload []byte) error {
	dir := spoolDir(name)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("queue %s not present: %w", name, err)
	}

	tmp, err := os.CreateTemp(dir, "writing-*")
	if err != nil {
		return fmt.Errorf("spool write: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("spool write: %w", err)
	}
	tmp.Close()

	final := filepath.Join(dir, fmt.Sprintf("%020d-%04d.msg", time.Now().UnixNano(), rand.IntN(10000)))
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("spool publish: %w", err)
	}
	return nil
}

func platformMaxMsgSize() int {
	return 0 // unknown on this platform; caller falls back to DefaultMsgSize
}
