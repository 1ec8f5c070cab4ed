package ofd

import (
	"sync"

	"github.com/picotm-go/picotm/tm/txerr"
)

// Table is the process-wide OFD table (spec.md §4.4/§5: "a table-wide
// rwlock taken WRITE for insertion ... and READ for lookup").
type Table struct {
	mu      sync.RWMutex
	byID    map[ID]int
	entries []*OFD // index is stable for the lifetime of the entry; nil once freed
	free    []int
	typeCC  [4]CCMode
}

// NewTable returns an empty OFD table with the default per-type CC-mode
// assignment from spec.md §6: regular files default to TS, everything
// else defaults to NoUndo.
func NewTable() *Table {
	t := &Table{byID: make(map[ID]int)}
	t.typeCC[Any] = NoUndo
	t.typeCC[Regular] = TS
	t.typeCC[Fifo] = NoUndo
	t.typeCC[Socket] = NoUndo
	return t
}

// SetTypeCCMode implements ofd_type_set_ccmode(type, ccmode) from
// spec.md §6.
func (t *Table) SetTypeCCMode(typ Type, mode CCMode) {
	t.mu.Lock()
	t.typeCC[typ] = mode
	t.mu.Unlock()
}

// TypeCCMode returns the configured CC mode for typ.
func (t *Table) TypeCCMode(typ Type) CCMode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.typeCC[typ]
}

// FindOrInstall returns the OFD for id, creating one of the given type
// if none exists yet. newlyCreated asserts that the caller knows this
// fildes was *just* created by a syscall that is guaranteed to produce
// a fresh OFD (open, socket, pipe, accept) rather than one that may
// alias an existing fildes on the same inode (any *at-relative lookup).
// Per spec.md §3, a second descriptor observed against an (dev, ino)
// already on file, whose fildes differs, is indistinguishable from a
// genuinely shared OFD — FindOrInstall reports that case as a
// ConflictError rather than silently picking one of the two.
func (t *Table) FindOrInstall(id ID, typ Type, newlyCreated bool) (idx int, o *OFD, err error) {
	t.mu.RLock()
	if idx, ok := t.byID[id]; ok {
		o := t.entries[idx]
		o.Ref()
		t.mu.RUnlock()
		return idx, o, nil
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	if idx, ok := t.byID[id]; ok {
		o := t.entries[idx]
		o.Ref()
		return idx, o, nil
	}

	if !newlyCreated {
		for other, oidx := range t.byID {
			if SameInode(other, id) && other.Fildes != id.Fildes {
				return 0, nil, &txerr.ConflictError{Reason: "second fildes observed for an inode already tracked under a different fildes"}
			}
			_ = oidx
		}
	}

	mode := t.typeCC[typ]
	o = newOFD(id, typ, mode)
	if len(t.free) > 0 {
		idx = t.free[len(t.free)-1]
		t.free = t.free[:len(t.free)-1]
		t.entries[idx] = o
	} else {
		idx = len(t.entries)
		t.entries = append(t.entries, o)
	}
	t.byID[id] = idx
	return idx, o, nil
}

// Get returns the OFD at idx.
func (t *Table) Get(idx int) *OFD {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.entries[idx]
}

// Unref drops a reference to the OFD at idx, freeing the table slot
// when the refcount reaches zero.
func (t *Table) Unref(idx int) {
	t.mu.Lock()
	o := t.entries[idx]
	t.mu.Unlock()
	if o == nil {
		return
	}
	if o.Unref() {
		t.mu.Lock()
		delete(t.byID, o.id)
		t.entries[idx] = nil
		t.free = append(t.free, idx)
		t.mu.Unlock()
	}
}
