// Package fd implements the shared file-descriptor table (spec.md
// §4.5, C5/C6): a fixed-size array of slots, each tracking the state
// machine UNUSED -> INUSE -> CLOSING -> UNUSED, a reference to the
// backing OFD, and a version counter used to detect a fildes being
// closed and reopened underneath a transaction that is still holding a
// stale reference.
package fd

import (
	"sync"

	"github.com/picotm-go/picotm/tm/txerr"
)

// State is a descriptor slot's lifecycle state.
type State int

const (
	Unused State = iota
	Inuse
	Closing
)

// FD is one slot of the file-descriptor table.
//
// GUARDED_BY(mu): everything.
type FD struct {
	mu       sync.Mutex
	state    State
	ofdIndex int
	refcount int32
	version  uint64
}

// Ref associates this slot with ofdIndex, transitioning UNUSED -> INUSE
// and bumping the version on first reference, and bumping the refcount
// on every reference. ofdFlags is currently unused by the slot itself (it lives
// on the OFD) and kept only for symmetry with spec.md's ref(f, fildes,
// flags) signature.
func (f *FD) Ref(ofdIndex int, ofdFlags int) (version uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Unused {
		f.state = Inuse
		f.ofdIndex = ofdIndex
		f.version++
	}
	f.refcount++
	return f.version
}

// RefState returns the slot's current OFD index and version without
// mutating anything (spec.md's ref_state).
func (f *FD) RefState() (ofdIndex int, version uint64, state State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ofdIndex, f.version, f.state
}

// Validate reports an ErrConflict if observed no longer matches this
// slot's current version (another transaction closed and reopened the
// fildes) or if the slot has been marked CLOSING by a concurrent,
// not-yet-committed transaction.
func (f *FD) Validate(observed uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Closing {
		return &txerr.ConflictError{Reason: "fd is closing"}
	}
	if f.version != observed {
		return &txerr.ConflictError{Reason: "fd reopened"}
	}
	return nil
}

// Unref decrements the refcount.
func (f *FD) Unref() {
	f.mu.Lock()
	if f.refcount > 0 {
		f.refcount--
	}
	f.mu.Unlock()
}

// SignalClose marks the slot CLOSING; a concurrent transaction trying
// to Ref/Validate this slot afterward observes ErrConflict (spec.md
// §4.5).
func (f *FD) SignalClose() {
	f.mu.Lock()
	f.state = Closing
	f.mu.Unlock()
}

// Close applies a committed close: flips CLOSING -> UNUSED and resets
// the slot for reuse.
func (f *FD) Close() {
	f.mu.Lock()
	f.state = Unused
	f.ofdIndex = -1
	f.mu.Unlock()
}

// UndoClose reverts a SignalClose that is being rolled back: CLOSING ->
// INUSE, leaving the slot exactly as it was before the aborting
// transaction's close exec ran.
func (f *FD) UndoClose() {
	f.mu.Lock()
	if f.state == Closing {
		f.state = Inuse
	}
	f.mu.Unlock()
}

// State returns the slot's current state.
func (f *FD) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}
