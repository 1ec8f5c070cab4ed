// Package cmap implements the region-version counters described in
// spec.md §4.2 (C2): a page tree of 64-bit counters (CountMap), plus a
// per-transaction snapshot of the counters a transaction has actually
// observed (CountMapSnapshot, in cmapss.go) used to validate optimistic
// reads/writes at commit time.
package cmap

import "github.com/picotm-go/picotm/internal/pgtree"

// CountMap is the global, process-wide region-version table for one
// OFD's regular-file data. Every byte offset has its own counter slot
// (one pgtree page holds the counters of pgtree.PageSize consecutive
// offsets); the counter for an offset increments every time a
// transaction commits a write that touched it.
type CountMap struct {
	tree *pgtree.Tree[uint64]
}

// New returns an empty CountMap.
func New() *CountMap {
	return &CountMap{tree: pgtree.New[uint64]()}
}

func newPage() *pgtree.Page[uint64] { return &pgtree.Page[uint64]{} }

// forEachSlot calls fn once for every PageSize-aligned run of offset
// within [off, off+length), passing the backing page and the slot
// range [lo, hi) within that page that the run covers.
func (c *CountMap) forEachSlot(off, length uint64, fn func(page *pgtree.Page[uint64], lo, hi uint64)) {
	if length == 0 {
		return
	}
	end := off + length
	for pos := off; pos < end; {
		page := c.tree.Lookup(pos, newPage)
		base := pgtree.PageOffset(pos)
		lo := pos - base
		hiAbs := base + pgtree.PageSize
		if hiAbs > end {
			hiAbs = end
		}
		hi := hiAbs - base
		fn(page, lo, hi)
		pos = hiAbs
	}
}

// IncRegion bumps the version counters for every slot touched by
// [off, off+length) by one. Called at commit time (updatecc) for the
// write-set of a committing transaction.
func (c *CountMap) IncRegion(off, length uint64) {
	c.forEachSlot(off, length, func(page *pgtree.Page[uint64], lo, hi uint64) {
		page.Mu.Lock()
		for i := lo; i < hi; i++ {
			page.Slots[i]++
		}
		page.Mu.Unlock()
	})
}

// LockRegion acquires the page locks covering [off, off+length) in
// ascending offset order and returns an unlock function. Used to hold a
// multi-slot update (or a commit-time validate+increment pair) as one
// critical section, and by 2PL write-locking of the backing storage
// layer that counters describe concurrent mutation of.
func (c *CountMap) LockRegion(off, length uint64) (unlock func()) {
	var pages []*pgtree.Page[uint64]
	c.forEachSlot(off, length, func(page *pgtree.Page[uint64], lo, hi uint64) {
		if len(pages) == 0 || pages[len(pages)-1] != page {
			pages = append(pages, page)
		}
	})
	for _, p := range pages {
		p.Mu.Lock()
	}
	return func() {
		for i := len(pages) - 1; i >= 0; i-- {
			pages[i].Mu.Unlock()
		}
	}
}

// Get returns the current counter for the slot covering offset,
// locking just that slot's page for the read.
func (c *CountMap) Get(offset uint64) uint64 {
	page := c.tree.Lookup(offset, newPage)
	idx := pgtree.SlotIndex(offset)
	page.Mu.Lock()
	v := page.Slots[idx]
	page.Mu.Unlock()
	return v
}

// ForEachRange calls fn once per PageSize-aligned run within
// [off, off+length), handing it the live global page and the slot
// bounds [lo, hi) of the run within that page. Exported for
// CountMapSnapshot, which needs to copy straight from the backing
// pages without re-deriving the same page-boundary arithmetic.
func (c *CountMap) ForEachRange(off, length uint64, fn func(page *pgtree.Page[uint64], lo, hi uint64)) {
	c.forEachSlot(off, length, fn)
}
