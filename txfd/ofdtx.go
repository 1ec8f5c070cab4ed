package txfd

import (
	"golang.org/x/sys/unix"

	"github.com/picotm-go/picotm/internal/cmap"
	"github.com/picotm-go/picotm/internal/ofd"
	"github.com/picotm-go/picotm/internal/rwlockmap"
	"github.com/picotm-go/picotm/tm/txerr"
)

// pendingWrite is one not-yet-applied write this transaction has made
// against an OFD's data, consulted by later reads in the same
// transaction before falling through to the real file (spec.md §4.6:
// writes to a TS/2PL-governed regular file are redo-logged, not
// applied in place, because undoing an in-place write is not
// generally possible once other readers may have observed it).
type pendingWrite struct {
	offset int64
	data   []byte
}

// ofdTx is a transaction's companion state for one OFD (spec.md §4.7,
// C7): the concurrency-control bookkeeping needed to validate and
// commit every call this transaction made against it.
type ofdTx struct {
	o      *ofd.OFD
	idx    int
	ccMode ofd.CCMode

	// TS bookkeeping.
	snapshot      *cmap.Snapshot
	stateVersion  uint64
	stateObserved bool

	// 2PL bookkeeping.
	rwstate *rwlockmap.RWStateMap

	localOffset int64
	haveOffset  bool

	pending []pendingWrite
	incVer  bool
	wrSet   []byteRange // write-touched regions, bumped at commit
	touched []byteRange // read- or write-touched regions, validated at commit
}

type byteRange struct{ off, length uint64 }

func newOFDTx(o *ofd.OFD, idx int) *ofdTx {
	t := &ofdTx{o: o, idx: idx, ccMode: o.CCMode()}
	if t.ccMode == ofd.TS && o.CMap != nil {
		t.snapshot = cmap.NewSnapshot()
	}
	if t.ccMode == ofd.TwoPL {
		t.rwstate = rwlockmap.NewState()
	}
	return t
}

// currentOffset returns this transaction's view of the OFD's file
// offset, copying it in from the shared OFD on first touch.
func (t *ofdTx) currentOffset() int64 {
	if !t.haveOffset {
		t.localOffset = t.o.Offset()
		t.haveOffset = true
	}
	return t.localOffset
}

func (t *ofdTx) setOffset(off int64) {
	t.localOffset = off
	t.haveOffset = true
}

// overlayRead copies buf's length worth of bytes starting at off from
// this transaction's own pending writes, returning a bool per byte of
// buf that it filled from the pending set.
// Used so a read in a transaction observes its own not-yet-committed
// writes.
func (t *ofdTx) overlayRead(off int64, buf []byte) (covered []bool) {
	covered = make([]bool, len(buf))
	for _, w := range t.pending {
		wEnd := w.offset + int64(len(w.data))
		lo := off
		if w.offset > lo {
			lo = w.offset
		}
		hi := off + int64(len(buf))
		if wEnd < hi {
			hi = wEnd
		}
		for p := lo; p < hi; p++ {
			buf[p-off] = w.data[p-w.offset]
			covered[p-off] = true
		}
	}
	return covered
}

// recordWrite buffers a write for redo-apply at commit and overlays
// it for any later read in this same transaction.
func (t *ofdTx) recordWrite(off int64, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	t.pending = append(t.pending, pendingWrite{offset: off, data: cp})
	r := byteRange{off: uint64(off), length: uint64(len(data))}
	t.wrSet = append(t.wrSet, r)
	t.touched = append(t.touched, r)
	t.incVer = true
}

// lockForWrite acquires whatever this OFD's CC mode needs before a
// write of [off, off+length) is allowed to proceed (spec.md §4.6's
// exec-time acquisition for 2PL; TS defers everything to commit).
func (t *ofdTx) lockForWrite(off, length uint64) error {
	switch t.ccMode {
	case ofd.TwoPL:
		if t.o.RWLockMap != nil {
			return t.o.RWLockMap.TryWLock(t.rwstate, off, length)
		}
	}
	return nil
}

func (t *ofdTx) lockForRead(off, length uint64) error {
	switch t.ccMode {
	case ofd.TwoPL:
		if t.o.RWLockMap != nil {
			return t.o.RWLockMap.TryRLock(t.rwstate, off, length)
		}
	case ofd.TS:
		if t.o.CMap != nil {
			t.snapshot.GetRegion(t.o.CMap, off, length)
			t.touched = append(t.touched, byteRange{off: off, length: length})
		}
	}
	return nil
}

// lock is the module's commit-time Lock step (phase 1): for 2PL the
// exec-time region locks already cover everything touched, so there is
// nothing further to acquire. Kept symmetric with the OFD module
// interface for modules that do need a commit-time lock (txqueue's and
// txstack's shared write lock, for instance).
func (t *ofdTx) lock() {}

// validate is the module's commit-time Validate step (phase 2):
// TS checks every region this transaction read or wrote against the
// live global counters and the OFD state version; 2PL transactions are
// valid by construction (their locks prevented any conflicting
// concurrent access).
func (t *ofdTx) validate(irrevocable bool) error {
	if irrevocable || t.ccMode != ofd.TS {
		return nil
	}
	if t.o.CMap != nil {
		for _, r := range t.touched {
			if !t.snapshot.ValidateRegion(t.o.CMap, r.off, r.length) {
				return &txerr.ConflictError{Reason: "region changed underfoot"}
			}
		}
	}
	if t.stateObserved {
		if err := t.o.ValidateStateVersion(t.stateVersion); err != nil {
			return err
		}
	}
	return nil
}

// applyWrites pwrites every buffered write to the real, shared fildes
// and publishes the new offset, in the order the writes were made.
func (t *ofdTx) applyWrites(fildes int) error {
	for _, w := range t.pending {
		if _, err := unix.Pwrite(fildes, w.data, w.offset); err != nil {
			return &txerr.SystemError{Op: "pwrite", Err: err}
		}
	}
	if t.haveOffset {
		t.o.SetOffset(t.localOffset)
	}
	return nil
}

// updateCC publishes this OFD's commit-time concurrency-control state:
// bump region-version counters for everything written (TS) and release
// whatever locks are held (both modes).
func (t *ofdTx) updateCC() {
	if t.ccMode == ofd.TS {
		if t.incVer && t.o.CMap != nil {
			for _, r := range t.wrSet {
				t.o.CMap.IncRegion(r.off, r.length)
			}
		}
		if t.incVer {
			t.o.IncStateVersion()
		}
	}
	if t.ccMode == ofd.TwoPL && t.o.RWLockMap != nil {
		t.o.RWLockMap.UnlockAll(t.rwstate)
	}
}

// clearCC releases whatever locks exec-time acquisition took, on
// abort. TS has nothing to release (its snapshot is purely local);
// 2PL's region locks are released exactly like a committed 2PL
// transaction would — the write set is simply never applied.
func (t *ofdTx) clearCC() {
	if t.ccMode == ofd.TwoPL && t.o.RWLockMap != nil {
		t.o.RWLockMap.UnlockAll(t.rwstate)
	}
}
