// Package txfd is the ComFd module (spec.md §4.6–§4.9, C7–C9): the
// transactional wrapper around every POSIX call that takes a file
// descriptor. It plugs into tm as one tm.Module per transaction,
// registered lazily the first time that transaction calls any
// function in this package.
package txfd

import (
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/picotm-go/picotm/internal/fd"
	"github.com/picotm-go/picotm/internal/ofd"
	"github.com/picotm-go/picotm/tm"
)

// DefaultMaxNumFD is the size of the shared file-descriptor table,
// matching a conservative process RLIMIT_NOFILE default.
const DefaultMaxNumFD = 1024

var (
	fdTable  = fd.NewTable(DefaultMaxNumFD)
	ofdTable = ofd.NewTable()
)

// ValidateMode selects how much of a call's outcome commit-time
// validation re-checks (spec.md §6): Op revalidates only the regions a
// single call touched, Domain additionally revalidates every region
// the component knows about for the fildes involved, Full revalidates
// everything this transaction has touched process-wide. This port
// implements Op-level validation (the common case, and the only one
// the txfd/txfs region-tracking above actually needs); Domain and Full
// are accepted by SetValidateMode for configuration compatibility but
// do not currently broaden what gets re-checked.
type ValidateMode int32

const (
	ValidateOp ValidateMode = iota
	ValidateDomain
	ValidateFull
)

var validateMode atomic.Int32

// SetValidateMode configures the process-wide validation mode.
func SetValidateMode(m ValidateMode) { validateMode.Store(int32(m)) }

// CurrentValidateMode returns the configured validation mode.
func CurrentValidateMode() ValidateMode { return ValidateMode(validateMode.Load()) }

// SetTypeCCMode configures the concurrency-control mode newly
// discovered OFDs of typ are assigned (spec.md §6's
// ofd_type_set_ccmode).
func SetTypeCCMode(typ ofd.Type, mode ofd.CCMode) {
	ofdTable.SetTypeCCMode(typ, mode)
}

type moduleKey struct{}

// Tx is this transaction's ComFd module instance: a tm.Module that
// owns the per-fildes and per-OFD companion state for every call this
// transaction has made through txfd.
type Tx struct {
	tmTx *tm.Tx
	fdt  map[int]*fdTx
	oft  map[int]*ofdTx
}

// of returns the ComFd module instance for tmTx, lazily registering
// one on first use (spec.md §9's replacement for the C original's
// per-thread-initialized-on-first-call module instance).
func of(tmTx *tm.Tx) *Tx {
	return tmTx.Use(moduleKey{}, func() tm.Module {
		return &Tx{tmTx: tmTx, fdt: make(map[int]*fdTx), oft: make(map[int]*ofdTx)}
	}).(*Tx)
}

func (tx *Tx) ofdTxFor(idx int) *ofdTx {
	if t, ok := tx.oft[idx]; ok {
		return t
	}
	t := newOFDTx(ofdTable.Get(idx), idx)
	tx.oft[idx] = t
	return t
}

func (tx *Tx) log(ev event) {
	tx.tmTx.LogEvent(moduleKey{}, ev)
}

// Lock implements tm.Module.
func (tx *Tx) Lock() {
	for _, t := range tx.oft {
		t.lock()
	}
}

// Validate implements tm.Module.
func (tx *Tx) Validate(irrevocable bool) error {
	for _, f := range tx.fdt {
		if err := f.validate(); err != nil {
			return err
		}
	}
	for _, t := range tx.oft {
		if err := t.validate(irrevocable); err != nil {
			return err
		}
	}
	return nil
}

// ApplyEvent implements tm.Module: replays this transaction's event
// log in order, performing the one piece of real, externally-visible
// work each event kind still owes the world (a redo-logged write, a
// committed offset, a committed close).
func (tx *Tx) ApplyEvent(events []any) error {
	appliedWrites := make(map[int]bool)
	for _, a := range events {
		ev := a.(event)
		switch ev.kind {
		case evWrite:
			if !appliedWrites[ev.ofdIdx] {
				if err := tx.oft[ev.ofdIdx].applyWrites(ev.fildes); err != nil {
					return err
				}
				appliedWrites[ev.ofdIdx] = true
			}
		case evSeek:
			tx.oft[ev.ofdIdx].o.SetOffset(ev.newOffset)
		case evClose:
			_ = unix.Close(ev.fildes)
			fdTable.Slot(ev.fildes).Close()
			ofdTable.Unref(ev.ofdIdx)
		case evFcntl:
			// Exec-time fcntl already ran against the real fildes
			// (spec.md §4.6's fcntl commands are not themselves
			// redo-logged, only recorded for undo); nothing further
			// to apply.
		case evCreate:
			// The creating syscall already ran at exec time; nothing
			// further to publish.
		}
	}
	return nil
}

// UndoEvent implements tm.Module: events arrive most-recent-first.
func (tx *Tx) UndoEvent(events []any) {
	for _, a := range events {
		ev := a.(event)
		switch ev.kind {
		case evCreate:
			_ = unix.Close(ev.fildes)
			fdTable.Slot(ev.fildes).Close()
			ofdTable.Unref(ev.ofdIdx)
			if ev.unlinkOnUndo != "" {
				execUnlink(ev.unlinkOnUndo)
			}
		case evClose:
			fdTable.Slot(ev.fildes).UndoClose()
		case evFcntl:
			undoFcntl(ev.fildes, ev.fcntlCmd, ev.fcntlArg)
		case evWrite, evSeek:
			// Nothing published yet; discarding the ofdTx is enough.
		}
	}
}

// UpdateCC implements tm.Module.
func (tx *Tx) UpdateCC() {
	for _, t := range tx.oft {
		t.updateCC()
	}
}

// ClearCC implements tm.Module.
func (tx *Tx) ClearCC() {
	for _, t := range tx.oft {
		t.clearCC()
	}
	for _, f := range tx.fdt {
		f.release()
	}
}

// Finish implements tm.Module.
func (tx *Tx) Finish() {}
