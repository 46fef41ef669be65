// Package engine implements the replication main loop: one tick combines
// local file-change detection, batched fan-out, ring drain, and an LWW
// merge gate, bundled into a single Engine value passed by reference
// instead of scattered across process-wide globals.
package engine

import (
	"bufio"
	"context"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ehrlich-b/synctext/internal/config"
	"github.com/ehrlich-b/synctext/internal/lineapply"
	"github.com/ehrlich-b/synctext/internal/linediff"
	"github.com/ehrlich-b/synctext/internal/logger"
	"github.com/ehrlich-b/synctext/internal/lww"
	"github.com/ehrlich-b/synctext/internal/mqueue"
	"github.com/ehrlich-b/synctext/internal/recvring"
	"github.com/ehrlich-b/synctext/internal/registry"
	"github.com/ehrlich-b/synctext/internal/snapshot"
	"github.com/ehrlich-b/synctext/internal/update"
)

// Engine holds every piece of per-process state the tick loop touches.
type Engine struct {
	UID     string
	DocPath string
	Cfg     *config.Config
	Reg     *registry.Registry
	Ring    *recvring.Ring
	Board   *snapshot.Board
	Shutdown *atomic.Bool

	docLines      []string
	observedLines []string
	lastMtime     time.Time
	localUnmerged []update.Update
	recvUnmerged  []update.Update
	outgoing      []update.Update

	watcher *fsnotify.Watcher
}

// New builds an Engine and performs the initial read of DocPath so the
// first tick has a baseline to diff against.
func New(uid, docPath string, cfg *config.Config, reg *registry.Registry, ring *recvring.Ring, board *snapshot.Board, shutdown *atomic.Bool) (*Engine, error) {
	e := &Engine{
		UID:      uid,
		DocPath:  docPath,
		Cfg:      cfg,
		Reg:      reg,
		Ring:     ring,
		Board:    board,
		Shutdown: shutdown,
	}

	lines, mtime, err := readDoc(docPath)
	if err != nil {
		return nil, err
	}
	e.docLines = lines
	e.observedLines = append([]string(nil), lines...)
	e.lastMtime = mtime
	e.Board.SetDoc(e.docLines)

	if w, err := fsnotify.NewWatcher(); err == nil {
		if err := w.Add(docPath); err != nil {
			logger.Warn("fsnotify watch failed, falling back to poll-only", "path", docPath, "err", err)
			w.Close()
		} else {
			e.watcher = w
		}
	} else {
		logger.Warn("fsnotify unavailable, falling back to poll-only", "err", err)
	}

	return e, nil
}

// Run drives the tick loop until ctx is canceled or Shutdown is set. A
// successful fsnotify watch wakes a tick early; the tick itself always
// re-verifies via stat+mtime, so fsnotify is an acceleration, not a
// second source of truth.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(e.Cfg.PollIntervalSec) * time.Second)
	defer ticker.Stop()
	if e.watcher != nil {
		defer e.watcher.Close()
	}

	var fsEvents <-chan fsnotify.Event
	var fsErrors <-chan error
	if e.watcher != nil {
		fsEvents = e.watcher.Events
		fsErrors = e.watcher.Errors
	}

	for {
		if e.Shutdown.Load() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick()
		case ev, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				e.tick()
			}
		case err, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
				continue
			}
			logger.Debug("fsnotify watcher error", "err", err)
		}
	}
}

func (e *Engine) tick() {
	e.detectLocal()
	e.fanOut()
	e.drainRing()
	e.mergeGate()

	e.Board.SetDoc(e.docLines)
	e.Board.SetLivePeers(e.livePeers())
}

// detectLocal is step 1: stat the document, diff against the last
// observed snapshot if mtime moved, and queue the result for merge and
// fan-out.
func (e *Engine) detectLocal() {
	info, err := os.Stat(e.DocPath)
	if err != nil {
		logger.Debug("stat failed, skipping local detection this tick", "err", err)
		return
	}
	if info.ModTime().Equal(e.lastMtime) {
		return
	}

	newLines, _, err := readDoc(e.DocPath)
	if err != nil {
		logger.Debug("read failed, skipping local detection this tick", "err", err)
		return
	}

	updates := linediff.Diff(e.observedLines, newLines, e.UID)
	e.observedLines = newLines
	e.lastMtime = info.ModTime()

	if len(updates) == 0 {
		return
	}
	e.localUnmerged = append(e.localUnmerged, updates...)
	e.outgoing = append(e.outgoing, updates...)
	e.Board.SetPrevEdits(updates)
	e.Board.ClearNotifications()
}

// fanOut is step 2: once enough local edits have accumulated, broadcast
// them to every other live peer, best-effort.
func (e *Engine) fanOut() {
	if len(e.outgoing) < e.Cfg.BroadcastBatchSize {
		return
	}

	peers := e.Reg.Snapshot()
	for _, u := range e.outgoing {
		payload := []byte(update.Serialize(u))
		for _, p := range peers {
			if !p.Active || p.UID == "" || p.UID == e.UID {
				continue
			}
			target := p.QueueName
			if target == "" {
				target = mqueue.QueueName(p.UID)
			}
			if !mqueue.SendWithRetries(target, payload, mqueue.DefaultMaxRetries, mqueue.DefaultRetryDelay) {
				logger.Warn("fan-out delivery failed, dropping", "peer", p.UID)
			}
		}
	}
	e.outgoing = nil
}

// drainRing is step 3: pull every pending message off the receive ring.
func (e *Engine) drainRing() {
	for {
		s, ok := e.Ring.Pop()
		if !ok {
			return
		}
		u, err := update.Deserialize(s)
		if err != nil {
			logger.Warn("dropping malformed received update", "err", err)
			continue
		}
		if err := update.Validate(u); err != nil {
			logger.Warn("dropping invalid received update", "err", err)
			continue
		}
		e.recvUnmerged = append(e.recvUnmerged, u)
	}
}

// mergeGate is step 4: once the combined unmerged batch crosses the batch
// threshold, resolve collisions and write the result back to disk.
func (e *Engine) mergeGate() {
	total := len(e.localUnmerged) + len(e.recvUnmerged)
	if total < e.Cfg.BroadcastBatchSize {
		return
	}

	batch := make([]update.Update, 0, total)
	batch = append(batch, e.localUnmerged...)
	batch = append(batch, e.recvUnmerged...)
	e.localUnmerged = nil
	e.recvUnmerged = nil

	winners := lww.Merge(batch)
	if len(winners) == 0 {
		logger.Warn("no winning updates after merge", "batch_size", len(batch))
		return
	}

	lineapply.Apply(&e.docLines, winners)
	if err := writeDoc(e.DocPath, e.docLines); err != nil {
		logger.Warn("failed to write merged document", "err", err)
		return
	}

	info, err := os.Stat(e.DocPath)
	if err == nil {
		e.lastMtime = info.ModTime()
	}
	e.observedLines = append([]string(nil), e.docLines...)
	e.Board.SetPrevEdits(nil)

	if lww.Conflicted(batch, winners) {
		e.Board.SetMergeNotification("Conflict detected and resolved using LWW")
	} else {
		e.Board.SetMergeNotification("All updates merged successfully")
	}
}

func (e *Engine) livePeers() []snapshot.Peer {
	var peers []snapshot.Peer
	for _, p := range e.Reg.Snapshot() {
		if p.Active && p.UID != "" {
			peers = append(peers, snapshot.Peer{UID: p.UID})
		}
	}
	return peers
}

func readDoc(path string) ([]string, time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, time.Time{}, err
	}
	return lines, info.ModTime(), nil
}

func writeDoc(path string, lines []string) error {
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0644)
}
