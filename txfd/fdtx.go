package txfd

import "github.com/picotm-go/picotm/tm/txerr"

// fdTx is a transaction's companion state for one file-descriptor
// slot (spec.md §4.8, C8): just enough to detect that the fildes was
// closed and reopened underneath this transaction by the time it
// commits.
type fdTx struct {
	fildes  int
	ofdIdx  int
	version uint64
}

func (tx *Tx) fdTxFor(fildes int, ofdIdx int) *fdTx {
	if f, ok := tx.fdt[fildes]; ok {
		return f
	}
	version := fdTable.Slot(fildes).Ref(ofdIdx, 0)
	f := &fdTx{fildes: fildes, ofdIdx: ofdIdx, version: version}
	tx.fdt[fildes] = f
	return f
}

// validate reports a conflict if fildes was closed/reopened since
// this transaction first touched it.
func (f *fdTx) validate() error {
	if _, version, _ := fdTable.Slot(f.fildes).RefState(); version != f.version {
		return &txerr.ConflictError{Reason: "fd reopened"}
	}
	return nil
}

func (f *fdTx) release() {
	fdTable.Slot(f.fildes).Unref()
}
