//go:build !unix

package registry

import (
	"sync"

	"github.com/ehrlich-b/synctext/internal/logger"
)

// processLocalMapping is a degraded substitute for shm_open+mmap on
// platforms without POSIX shared memory (this build supports only a
// single process; it exists so the package still links on Windows).
// It is keyed by name so repeated Open calls within the same process see
// the same bytes, which is the only guarantee this platform can offer.
type processLocalMapping struct {
	buf []byte
}

var (
	processLocalMu    sync.Mutex
	processLocalStore = map[string][]byte{}
)

func openMapping(name string, size int) (mapping, error) {
	processLocalMu.Lock()
	defer processLocalMu.Unlock()

	logger.Warn("no shared-memory backend on this platform; registry is process-local only", "name", name)

	buf, ok := processLocalStore[name]
	if !ok || len(buf) != size {
		buf = make([]byte, size)
		processLocalStore[name] = buf
	}
	return &processLocalMapping{buf: buf}, nil
}

func (m *processLocalMapping) Bytes() []byte { return m.buf }

func (m *processLocalMapping) Close() error { return nil }
