//go:build unix

package registry

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"golang.org/x/sys/unix"
)

// shmMapping is a real POSIX-shared-memory-backed mapping: shm_open (here,
// simply opening the tmpfs-backed path under /dev/shm, which is exactly
// what shm_open does on Linux under the hood) + ftruncate + mmap.
type shmMapping struct {
	fd  int
	buf []byte
}

// shmPath picks the backing file for the shared mapping. Linux exposes
// shm_open's tmpfs directly at /dev/shm; other unix platforms (Darwin's
// shm_open is not filesystem-visible) fall back to a plain file under
// TMPDIR, which is just as valid a MAP_SHARED backing as a POSIX shared
// memory object for same-host peers.
func shmPath(name string) string {
	base := strings.TrimPrefix(name, "/")
	if runtime.GOOS == "linux" {
		return "/dev/shm/" + base
	}
	return os.TempDir() + "/" + base
}

func openMapping(name string, size int) (mapping, error) {
	fd, err := unix.Open(shmPath(name), unix.O_RDWR|unix.O_CREAT, 0666)
	if err != nil {
		return nil, fmt.Errorf("shm_open %s: %w", name, err)
	}

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ftruncate %s: %w", name, err)
	}

	buf, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mmap %s: %w", name, err)
	}

	return &shmMapping{fd: fd, buf: buf}, nil
}

func (m *shmMapping) Bytes() []byte { return m.buf }

func (m *shmMapping) Close() error {
	if err := unix.Munmap(m.buf); err != nil {
		unix.Close(m.fd)
		return fmt.Errorf("munmap: %w", err)
	}
	return unix.Close(m.fd)
}
