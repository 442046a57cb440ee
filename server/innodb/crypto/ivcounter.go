package crypto

import (
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// IVMaskBits is the batch width: each refill from the shared counter hands a
// process 1<<IVMaskBits private IVs.
const IVMaskBits = 10

const ivMask = uint64(1)<<IVMaskBits - 1

// SharedCounter is the cluster-wide monotonic counter. Every call must
// return a value no other caller, in any process, has ever received.
type SharedCounter interface {
	IncrementAndFetch() (uint64, error)
}

// MemoryCounter is a SharedCounter that lives only as long as the process.
type MemoryCounter struct {
	v atomic.Uint64
}

// NewMemoryCounter starts a counter at start.
func NewMemoryCounter(start uint64) *MemoryCounter {
	c := &MemoryCounter{}
	c.v.Store(start)
	return c
}

// IncrementAndFetch 原子加一并返回新值
func (c *MemoryCounter) IncrementAndFetch() (uint64, error) {
	return c.v.Inc(), nil
}

// Load returns the current value.
func (c *MemoryCounter) Load() uint64 {
	return c.v.Load()
}

// IVAllocator mints page IVs from batches of the shared counter. Batches of
// different refills never overlap, so IVs stay unique across processes
// without touching shared state on every page.
type IVAllocator struct {
	mu      sync.Mutex
	shared  SharedCounter
	counter uint64
}

// NewIVAllocator 每个进程一个
func NewIVAllocator(shared SharedCounter) *IVAllocator {
	return &IVAllocator{shared: shared}
}

// Next returns a fresh IV: eight zero bytes followed by the big-endian
// private counter.
func (a *IVAllocator) Next() ([IVSize]byte, error) {
	var iv [IVSize]byte

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.counter&ivMask == 0 {
		v, err := a.shared.IncrementAndFetch()
		if err != nil {
			return iv, errors.Wrap(err, "refilling IV batch")
		}
		if v>>(64-IVMaskBits) != 0 {
			return iv, errors.Wrapf(ErrIVCounterExhausted, "shared counter at %d", v)
		}
		a.counter = v << IVMaskBits
	}

	binary.BigEndian.PutUint64(iv[IVSize-8:], a.counter)
	a.counter++
	return iv, nil
}
