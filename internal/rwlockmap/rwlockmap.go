// Package rwlockmap implements the region reader/writer lock map used
// by 2PL concurrency control (spec.md §4.3, C3): a page tree whose
// slots hold a reader count and a writer flag, plus a per-transaction
// RWStateMap that tracks which slots this transaction currently holds
// so unlocking stays symmetric.
package rwlockmap

import (
	"github.com/picotm-go/picotm/internal/pgtree"
	"github.com/picotm-go/picotm/tm/txerr"
)

// slotState is the payload of one region's lock cell.
type slotState struct {
	readers int32
	writer  bool
}

// RWLockMap is the global, process-wide lock table for one OFD's
// regular-file regions.
type RWLockMap struct {
	tree *pgtree.Tree[slotState]
}

// New returns an empty RWLockMap.
func New() *RWLockMap {
	return &RWLockMap{tree: pgtree.New[slotState]()}
}

func newPage() *pgtree.Page[slotState] { return &pgtree.Page[slotState]{} }

// State is what a transaction holds on one slot.
type State int

const (
	// None means the transaction holds no lock on this slot.
	None State = iota
	// Read means the transaction holds the slot's read lock.
	Read
	// Write means the transaction holds the slot's write lock.
	Write
)

// region identifies a page-tree slot by absolute offset.
type region struct {
	page *pgtree.Page[slotState]
	idx  uint64
	off  uint64
}

// RWStateMap is the per-transaction record of which slots this
// transaction currently holds, in the order locks were acquired
// (spec.md §3: "locked_regions: ordered set of (offset, nbyte) pairs
// held"). Unlocking walks this list, so every lock taken during a
// transaction is released exactly once at commit or abort.
type RWStateMap struct {
	held  map[uint64]State
	order []region
}

// NewState returns an empty RWStateMap.
func NewState() *RWStateMap {
	return &RWStateMap{held: make(map[uint64]State)}
}

// Reset discards all held-lock bookkeeping, for reuse across
// transactions. It does NOT release any locks — callers must call
// UnlockAll first.
func (s *RWStateMap) Reset() {
	s.held = make(map[uint64]State)
	s.order = nil
}

func (rl *RWLockMap) pageFor(offset uint64) (*pgtree.Page[slotState], uint64) {
	page := rl.tree.Lookup(offset, newPage)
	return page, pgtree.SlotIndex(offset)
}

// TryRLock acquires a read lock on every per-byte slot spanned
// by [off, off+length) that this transaction's RWStateMap does not yet
// hold, failing the whole range with ErrConflict if any slot is held
// WRITE by another transaction. Already-locked slots (by this
// transaction) are left untouched.
func (rl *RWLockMap) TryRLock(st *RWStateMap, off, length uint64) error {
	return rl.forEachOffset(off, length, func(offset uint64) error {
		page, idx := rl.pageFor(offset)
		key := offset
		if st.held[key] != None {
			return nil
		}
		page.Mu.Lock()
		slot := page.Slots[idx]
		if slot.writer {
			page.Mu.Unlock()
			return &txerr.ConflictError{Reason: "region held for write"}
		}
		slot.readers++
		page.Slots[idx] = slot
		page.Mu.Unlock()
		st.held[key] = Read
		st.order = append(st.order, region{page: page, idx: idx, off: offset})
		return nil
	})
}

// TryWLock acquires a write lock on every slot spanned by
// [off, off+length), failing with ErrConflict if any untaken-by-us slot
// is held READ or WRITE by another transaction.
func (rl *RWLockMap) TryWLock(st *RWStateMap, off, length uint64) error {
	return rl.forEachOffset(off, length, func(offset uint64) error {
		page, idx := rl.pageFor(offset)
		key := offset
		if st.held[key] == Write {
			return nil
		}
		page.Mu.Lock()
		slot := page.Slots[idx]
		if st.held[key] == Read {
			// Upgrade: succeeds only if we are the sole reader.
			if slot.readers != 1 || slot.writer {
				page.Mu.Unlock()
				return &txerr.ConflictError{Reason: "region held for read by another transaction"}
			}
			slot.readers = 0
			slot.writer = true
			page.Slots[idx] = slot
			page.Mu.Unlock()
			st.held[key] = Write
			return nil
		}
		if slot.writer || slot.readers > 0 {
			page.Mu.Unlock()
			return &txerr.ConflictError{Reason: "region held"}
		}
		slot.writer = true
		page.Slots[idx] = slot
		page.Mu.Unlock()
		st.held[key] = Write
		st.order = append(st.order, region{page: page, idx: idx, off: offset})
		return nil
	})
}

// UnlockAll releases every slot recorded in st, in the reverse order it
// was acquired, and clears st. Called once at commit (updatecc/2PL) or
// abort (clearcc).
func (rl *RWLockMap) UnlockAll(st *RWStateMap) {
	for i := len(st.order) - 1; i >= 0; i-- {
		r := st.order[i]
		r.page.Mu.Lock()
		slot := r.page.Slots[r.idx]
		switch st.held[r.off] {
		case Read:
			if slot.readers > 0 {
				slot.readers--
			}
		case Write:
			slot.writer = false
		}
		r.page.Slots[r.idx] = slot
		r.page.Mu.Unlock()
	}
	st.Reset()
}

// forEachOffset calls fn once per byte offset in [off, off+length), in
// ascending order, stopping at the first error. Lock cells are one per
// byte offset, the same granularity cmap uses for version counters, so
// a region lock and a region-version check always agree on what they
// cover.
func (rl *RWLockMap) forEachOffset(off, length uint64, fn func(offset uint64) error) error {
	end := off + length
	for pos := off; pos < end; pos++ {
		if err := fn(pos); err != nil {
			return err
		}
	}
	return nil
}
