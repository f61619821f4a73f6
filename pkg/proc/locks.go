package proc

import (
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// LockPool is a fixed set of mutexes. Lock ids hash onto stripes, so two
// ids may share a stripe; that only costs concurrency, never correctness.
type LockPool struct {
	stripes []sync.Mutex
	mask    uint64
}

// NewLockPool rounds n up to a power of two.
func NewLockPool(n int) *LockPool {
	size := 1
	for size < n {
		size <<= 1
	}
	return &LockPool{stripes: make([]sync.Mutex, size), mask: uint64(size - 1)}
}

func (p *LockPool) Size() int {
	return len(p.stripes)
}

// Stripe returns the stripe index for id.
func (p *LockPool) Stripe(id string) int {
	return int(xxhash.Sum64String(id) & p.mask)
}

// Lock acquires the stripes of every id in ascending stripe order and
// returns a function that releases them.
func (p *LockPool) Lock(ids ...string) (unlock func()) {
	idx := make([]int, 0, len(ids))
	for _, id := range ids {
		idx = append(idx, p.Stripe(id))
	}
	slices.Sort(idx)
	idx = slices.Compact(idx)

	for _, i := range idx {
		p.stripes[i].Lock()
	}
	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			p.stripes[idx[j]].Unlock()
		}
	}
}
