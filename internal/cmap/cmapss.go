package cmap

import "github.com/picotm-go/picotm/internal/pgtree"

// Snapshot is a transaction-local view of region versions (spec.md
// §3's "cmap_ss" field of OFDTx, §4.2's CountMapSnapshot). It is empty
// until the first TS read or write touches a region, at which point
// that region's counters are copied in from the global CountMap and
// never refreshed again for the lifetime of the transaction — a later
// mismatch between the frozen snapshot and the live global counter is
// exactly what ValidateRegion is checking for.
type Snapshot struct {
	tree *pgtree.Snapshot[uint64]
}

// NewSnapshot returns an empty, transaction-local snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{tree: pgtree.NewSnapshot[uint64]()}
}

// Reset discards all observed regions, for reuse across transactions.
func (s *Snapshot) Reset() {
	s.tree.Reset()
}

// GetRegion ensures every page touched by [off, off+length) has been
// copied from gc into the snapshot, copying any not-yet-filled page
// under gc's page lock. Idempotent within a transaction: a page copied
// once is never re-copied, so later writes by other transactions are
// invisible to it until the next transaction.
func (s *Snapshot) GetRegion(gc *CountMap, off, length uint64) {
	if length == 0 {
		return
	}
	end := off + length
	for pos := off; pos < end; {
		base := pgtree.PageOffset(pos)
		ssPage := s.tree.Lookup(pos)
		if !ssPage.Filled {
			gc.ForEachRange(base, pgtree.PageSize, func(page *pgtree.Page[uint64], lo, hi uint64) {
				page.Mu.Lock()
				ssPage.Slots = page.Slots
				page.Mu.Unlock()
			})
			ssPage.Filled = true
		}
		hiAbs := base + pgtree.PageSize
		if hiAbs > end {
			hiAbs = end
		}
		pos = hiAbs
	}
}

// ValidateRegion compares every snapshot counter touched by
// [off, off+length) against the live global counter. Snapshot counters
// can never be greater than the global (global counters are monotone
// non-decreasing, spec.md §4.2's invariant); any slot where they differ
// means a concurrent writer committed against this region since the
// snapshot was taken. ValidateRegion then returns false, and the
// caller aborts the transaction with a conflict.
func (s *Snapshot) ValidateRegion(gc *CountMap, off, length uint64) bool {
	if length == 0 {
		return true
	}
	end := off + length
	for pos := off; pos < end; {
		base := pgtree.PageOffset(pos)
		ssPage := s.tree.Lookup(pos)
		hiAbs := base + pgtree.PageSize
		if hiAbs > end {
			hiAbs = end
		}
		lo := pos - base
		hi := hiAbs - base
		if ssPage.Filled {
			ok := true
			gc.ForEachRange(base, pgtree.PageSize, func(page *pgtree.Page[uint64], _, _ uint64) {
				page.Mu.Lock()
				for i := lo; i < hi; i++ {
					if ssPage.Slots[i] != page.Slots[i] {
						ok = false
					}
				}
				page.Mu.Unlock()
			})
			if !ok {
				return false
			}
		}
		pos = hiAbs
	}
	return true
}
