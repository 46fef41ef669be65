// Package registry implements the process-wide peer directory: a
// fixed-capacity array of slots, lock-free claim/release via atomic
// compare-and-swap on each slot's "active" flag, living in a shared
// memory object so independent peer processes on the same host agree on
// who is live without a mutex.
//
// The mapped region is treated as a raw byte window: every read/write
// of a slot field goes through an explicit byte offset rather than a
// native Go struct overlaid on the mapping, to avoid undefined behavior
// under aliasing between Go's memory model and whatever wrote the bytes
// (another process, possibly another language).
package registry

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/ehrlich-b/synctext/internal/logger"
)

const (
	// MaxUsers is the fixed slot capacity.
	MaxUsers = 5

	uidFieldLen   = 32 // uid bytes, NUL-padded
	qNameFieldLen = 64 // queueName bytes, NUL-padded
	activeLen     = 4  // int32
	slotSize      = uidFieldLen + qNameFieldLen + activeLen
	numUsersLen   = 4

	// Size is sizeof(Registry): MaxUsers slots plus the advisory counter.
	Size = MaxUsers*slotSize + numUsersLen

	// Name is the shared memory object name.
	Name = "/synctext_registry_v1"
)

// ErrFull is returned by Register when every slot is occupied.
var ErrFull = errors.New("registry full")

// mapping is the platform abstraction a Registry is built on: a
// byte-addressable region shared across processes, backed by shm_open+mmap
// on platforms that support it (see registry_unix.go) or an in-process
// fallback elsewhere (registry_other.go).
type mapping interface {
	Bytes() []byte
	Close() error
}

// Registry is a handle to the mapped shared registry region.
type Registry struct {
	m mapping
}

// PeerInfo is one live-or-dead entry observed during a snapshot.
type PeerInfo struct {
	UID       string
	QueueName string
	Active    bool
}

// Open maps (creating if necessary) the registry shared memory object. If
// every slot currently reads inactive, the whole region is zero-initialized,
// matching first-attach behavior. Failures here are StartupFatal.
func Open() (*Registry, error) {
	m, err := openMapping(Name, Size)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	r := &Registry{m: m}

	anyActive := false
	for i := 0; i < MaxUsers; i++ {
		if r.loadActive(i) != 0 {
			anyActive = true
			break
		}
	}
	if !anyActive {
		b := r.m.Bytes()
		for i := range b {
			b[i] = 0
		}
	}
	return r, nil
}

// Close unmaps the registry. It does not release any slot; callers must
// call Release first.
func (r *Registry) Close() error {
	return r.m.Close()
}

func (r *Registry) slotOffset(i int) int { return i * slotSize }

func (r *Registry) uidBytes(i int) []byte {
	off := r.slotOffset(i)
	return r.m.Bytes()[off : off+uidFieldLen]
}

func (r *Registry) qNameBytes(i int) []byte {
	off := r.slotOffset(i) + uidFieldLen
	return r.m.Bytes()[off : off+qNameFieldLen]
}

func (r *Registry) activeBytes(i int) []byte {
	off := r.slotOffset(i) + uidFieldLen + qNameFieldLen
	return r.m.Bytes()[off : off+activeLen]
}

func (r *Registry) numUsersBytes() []byte {
	off := MaxUsers * slotSize
	return r.m.Bytes()[off : off+numUsersLen]
}

func readCString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func writeCString(b []byte, s string) {
	for i := range b {
		b[i] = 0
	}
	n := len(s)
	if n > len(b)-1 {
		n = len(b) - 1
	}
	copy(b, s[:n])
}

// Register performs a two-pass lock-free slot claim: first try to reuse
// a slot already bearing this uid (re-registration is idempotent), then
// claim any free slot.
func (r *Registry) Register(uid string) (int, error) {
	for i := 0; i < MaxUsers; i++ {
		if readCString(r.uidBytes(i)) == uid {
			if r.loadActive(i) == 1 {
				return i, nil
			}
			if r.casActive(i, 0, 1) {
				return i, nil
			}
		}
	}

	for i := 0; i < MaxUsers; i++ {
		if r.loadActive(i) != 0 {
			continue
		}
		if !r.casActive(i, 0, 1) {
			continue
		}
		writeCString(r.uidBytes(i), uid)
		writeCString(r.qNameBytes(i), "/mq_"+uid)
		r.bumpNumUsers(1)
		logger.Info("registry slot claimed", "uid", uid, "slot", i)
		return i, nil
	}

	return -1, ErrFull
}

// Release marks slot inactive and clears its identifying fields. It is
// idempotent: releasing an already-inactive slot is a no-op beyond the
// (redundant) store and counter floor.
func (r *Registry) Release(slot int) {
	if slot < 0 || slot >= MaxUsers {
		return
	}
	r.storeActive(slot, 0)
	uidb := r.uidBytes(slot)
	uidb[0] = 0
	qb := r.qNameBytes(slot)
	qb[0] = 0
	r.bumpNumUsers(-1)
}

// Snapshot returns every slot in index order. A slot is reported live iff
// its active flag reads 1 AND its uid is non-empty.
func (r *Registry) Snapshot() []PeerInfo {
	out := make([]PeerInfo, MaxUsers)
	for i := 0; i < MaxUsers; i++ {
		active := r.loadActive(i) == 1
		uid := readCString(r.uidBytes(i))
		out[i] = PeerInfo{
			UID:       uid,
			QueueName: readCString(r.qNameBytes(i)),
			Active:    active && uid != "",
		}
	}
	return out
}

// activePtr returns a pointer to slot i's active field for use with
// sync/atomic. The field is placed at a 4-byte-aligned offset within
// every slot (uidFieldLen + qNameFieldLen are both multiples of 4), so
// this is safe as long as the mapping's backing array itself starts at a
// word-aligned address, which mmap and Go's allocator both guarantee.
func (r *Registry) activePtr(i int) *int32 {
	b := r.activeBytes(i)
	return (*int32)(unsafe.Pointer(&b[0]))
}

func (r *Registry) loadActive(i int) int32 {
	return atomic.LoadInt32(r.activePtr(i))
}

func (r *Registry) storeActive(i int, v int32) {
	atomic.StoreInt32(r.activePtr(i), v)
}

func (r *Registry) casActive(i int, old, new int32) bool {
	return atomic.CompareAndSwapInt32(r.activePtr(i), old, new)
}

func (r *Registry) bumpNumUsers(delta int32) {
	b := r.numUsersBytes()
	ptr := (*int32)(unsafe.Pointer(&b[0]))
	for {
		cur := atomic.LoadInt32(ptr)
		next := cur + delta
		if next > MaxUsers {
			next = MaxUsers
		}
		if next < 0 {
			next = 0
		}
		if atomic.CompareAndSwapInt32(ptr, cur, next) {
			return
		}
	}
}
