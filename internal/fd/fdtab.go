package fd

import (
	"fmt"
)

// Table is the process-wide fixed-size file-descriptor table,
// indexed directly by the kernel fildes (spec.md §3: "A
// file-descriptor slot FD[f] exists for every small nonnegative integer
// up to MAXNUMFD").
type Table struct {
	slots []FD
}

// NewTable returns a table sized for fildes in [0, maxNumFD).
func NewTable(maxNumFD int) *Table {
	return &Table{slots: make([]FD, maxNumFD)}
}

// MaxNumFD returns the table's fixed capacity.
func (t *Table) MaxNumFD() int { return len(t.slots) }

// Slot returns the FD slot for fildes, panicking if fildes is out of
// range — a fildes produced by the underlying syscalls is always below
// the process's open-file-descriptor limit, which Table is sized to
// cover; an out-of-range index is a programming error, matching
// spec.md §7's "non-recoverable internal error" category.
func (t *Table) Slot(fildes int) *FD {
	if fildes < 0 || fildes >= len(t.slots) {
		panic(fmt.Sprintf("fd: fildes %d out of range [0, %d)", fildes, len(t.slots)))
	}
	return &t.slots[fildes]
}
