package pgtree

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupIdempotent(t *testing.T) {
	tr := New[uint64]()
	calls := 0
	newPage := func() *Page[uint64] {
		calls++
		return &Page[uint64]{}
	}

	p1 := tr.Lookup(12345, newPage)
	p2 := tr.Lookup(12345, newPage)

	assert.Same(t, p1, p2)
	assert.Equal(t, 1, calls)
}

func TestLookupGrowsRootForLargeOffsets(t *testing.T) {
	tr := New[uint64]()

	p := tr.Lookup(0, func() *Page[uint64] { return &Page[uint64]{} })
	p.Slots[0] = 7

	big := uint64(1) << 40
	bp := tr.Lookup(big, func() *Page[uint64] { return &Page[uint64]{} })
	bp.Slots[SlotIndex(big)] = 99

	require.NotSame(t, p, bp)
	assert.EqualValues(t, 7, p.Slots[0])
	assert.EqualValues(t, 99, bp.Slots[SlotIndex(big)])
}

func TestForEachVisitsAllPages(t *testing.T) {
	tr := New[uint64]()
	offsets := []uint64{0, PageSize, PageSize * PageSize, 1 << 50}
	for _, off := range offsets {
		tr.Lookup(off, func() *Page[uint64] { return &Page[uint64]{} })
	}

	seen := map[uint64]bool{}
	tr.ForEach(func(base uint64, page *Page[uint64]) {
		seen[base] = true
	})

	for _, off := range offsets {
		assert.True(t, seen[PageOffset(off)], "expected base offset %d to be visited", PageOffset(off))
	}
}

func TestConcurrentLookupDisjointOffsets(t *testing.T) {
	tr := New[uint64]()
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			off := uint64(i) * PageSize
			p := tr.Lookup(off, func() *Page[uint64] { return &Page[uint64]{} })
			p.Mu.Lock()
			p.Slots[0] = uint64(i)
			p.Mu.Unlock()
		}(i)
	}
	wg.Wait()

	for i := 0; i < 64; i++ {
		off := uint64(i) * PageSize
		p := tr.Lookup(off, func() *Page[uint64] { return &Page[uint64]{} })
		assert.EqualValues(t, i, p.Slots[0])
	}
}

func TestSnapshotLookupIdempotent(t *testing.T) {
	ss := NewSnapshot[uint64]()
	p1 := ss.Lookup(7)
	p1.Filled = true
	p1.Slots[SlotIndex(7)] = 42

	p2 := ss.Lookup(7)
	assert.Same(t, p1, p2)
	assert.True(t, p2.Filled)
	assert.EqualValues(t, 42, p2.Slots[SlotIndex(7)])
}

func TestSnapshotReset(t *testing.T) {
	ss := NewSnapshot[uint64]()
	ss.Lookup(7).Filled = true
	ss.Reset()
	assert.False(t, ss.Lookup(7).Filled)
}
