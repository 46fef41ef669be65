// Package daemon wires the replication engine's pieces together and owns
// process lifecycle: registry slot, inbound queue, listener goroutine,
// and graceful shutdown on signal. Subsystems are opened up front, the
// main loop selects on the signal context, and cleanup runs on the way
// out.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ehrlich-b/synctext/internal/config"
	"github.com/ehrlich-b/synctext/internal/engine"
	"github.com/ehrlich-b/synctext/internal/errkind"
	"github.com/ehrlich-b/synctext/internal/listener"
	"github.com/ehrlich-b/synctext/internal/logger"
	"github.com/ehrlich-b/synctext/internal/mqueue"
	"github.com/ehrlich-b/synctext/internal/recvring"
	"github.com/ehrlich-b/synctext/internal/registry"
	"github.com/ehrlich-b/synctext/internal/snapshot"
	"github.com/ehrlich-b/synctext/internal/update"
)

// DefaultDoc is the four-line starter document seeded when neither a
// per-user doc nor a base doc exists.
const DefaultDoc = "Hello User!\n" +
	"Start making changes.\n" +
	"See real-time updates!\n" +
	"Come collaborate with others.\n"

// Options configures a single Run invocation.
type Options struct {
	UID     string
	DocPath string
	Dir     string // project directory, for .synctext/settings.json lookup
}

// EnsureDocExists seeds DocPath if nothing is there yet, so the engine's
// first stat never fails on a fresh checkout. It tries, in order: leave
// an existing per-user doc alone, copy the project's base doc
// (cfg.DocBaseName under dir) if present, or fall back to DefaultDoc.
func EnsureDocExists(docPath, dir string, cfg *config.Config) error {
	if _, err := os.Stat(docPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	basePath := filepath.Join(dir, cfg.DocBaseName)
	if data, err := os.ReadFile(basePath); err == nil {
		return os.WriteFile(docPath, data, 0644)
	}

	return os.WriteFile(docPath, []byte(DefaultDoc), 0644)
}

// Run starts the daemon and blocks until a shutdown signal arrives or the
// engine loop exits on its own.
func Run(opts Options) error {
	if len(opts.UID) > update.MaxUIDLen {
		return errkind.New(errkind.StartupFatal, "validate uid",
			fmt.Errorf("uid %q exceeds %d bytes", opts.UID, update.MaxUIDLen))
	}

	cfg, err := config.Load(opts.Dir)
	if err != nil {
		return errkind.New(errkind.StartupFatal, "load config", err)
	}

	if err := EnsureDocExists(opts.DocPath, opts.Dir, cfg); err != nil {
		return errkind.New(errkind.StartupFatal, "seed document", err)
	}

	reg, err := registry.Open()
	if err != nil {
		return errkind.New(errkind.StartupFatal, "open registry", err)
	}
	defer reg.Close()

	slot, err := reg.Register(opts.UID)
	if err != nil {
		return errkind.New(errkind.StartupFatal, "register peer slot", err)
	}
	logger.Info("registered", "uid", opts.UID, "slot", slot)

	queue, err := mqueue.CreateSelf(opts.UID, cfg.MQMaxMsgDefault)
	if err != nil {
		reg.Release(slot)
		return errkind.New(errkind.StartupFatal, "create inbound queue", err)
	}

	ring := recvring.New(cfg.RecvRingCapacity)
	board := snapshot.NewBoard()

	var shutdown atomic.Bool
	lst := listener.New(queue, ring, board, &shutdown)

	eng, err := engine.New(opts.UID, opts.DocPath, cfg, reg, ring, board, &shutdown)
	if err != nil {
		queue.Unlink()
		reg.Release(slot)
		return errkind.New(errkind.StartupFatal, "start engine", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go lst.Run()

	engineDone := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(engineDone)
	}()

	logger.Info("synctext daemon started", "uid", opts.UID, "doc", opts.DocPath)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case <-engineDone:
		logger.Warn("engine loop exited unexpectedly")
	}

	shutdown.Store(true)
	// Give a listener that is between receives time to observe the flag and
	// close its queue; one blocked in Receive sees it only after that
	// receive returns.
	time.Sleep(100 * time.Millisecond)

	reg.Release(slot)
	if err := queue.Unlink(); err != nil {
		logger.Warn("failed to unlink inbound queue", "err", err)
	}

	return nil
}
