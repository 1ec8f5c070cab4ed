// Package txfs is the ComFs module (spec.md's VFS/namespace
// component): transactional wrappers around the POSIX calls that name
// files rather than operate on an already-open descriptor — chdir,
// chmod, stat, link, unlink, mkdir, mkfifo, mknod, mkstemp.
//
// Unlike txfd's data operations, namespace operations have no natural
// region-version or range-lock model to validate against, so this
// module does not participate in TS/2PL conflict detection: two
// transactions racing to create the same path simply have the loser's
// underlying syscall fail with EEXIST, surfaced as a *txerr.SystemError
// rather than a *txerr.ConflictError. What it does provide is
// symmetric apply/undo for every call that has an obvious inverse
// (chdir, mkdir/mkfifo/mknod/mkstemp/link, chmod), escalating to
// irrevocable only for the calls that don't (unlink, rmdir).
package txfs

import (
	"os"

	"github.com/picotm-go/picotm/tm"
)

type moduleKey struct{}

// Tx is this transaction's ComFs module instance: its tx-local
// logical working directory (not yet applied to the process). The
// namespace events needed to undo its calls on abort are kept in the
// tm.Tx event log, not here.
type Tx struct {
	tmTx *tm.Tx

	cwd      string
	cwdSet   bool
	didChdir bool
}

func of(tmTx *tm.Tx) *Tx {
	return tmTx.Use(moduleKey{}, func() tm.Module {
		return &Tx{tmTx: tmTx}
	}).(*Tx)
}

// resolve returns the path this transaction should actually pass to a
// syscall: unchanged if absolute or if this transaction has not
// called Chdir yet (the real process CWD is still authoritative), or
// joined against this transaction's not-yet-applied logical CWD
// otherwise.
func (tx *Tx) resolve(path string) string {
	if len(path) == 0 || path[0] == '/' || !tx.cwdSet {
		return path
	}
	return tx.cwd + "/" + path
}

func (tx *Tx) log(ev event) {
	tx.tmTx.LogEvent(moduleKey{}, ev)
}

// Lock implements tm.Module.
func (tx *Tx) Lock() {}

// Validate implements tm.Module: namespace operations are not
// version-checked (see package doc), so a transaction that only
// touched txfs is always valid.
func (tx *Tx) Validate(irrevocable bool) error { return nil }

// ApplyEvent implements tm.Module.
func (tx *Tx) ApplyEvent(events []any) error {
	for _, a := range events {
		ev := a.(event)
		switch ev.kind {
		case evChdir:
			if err := chdirReal(tx.cwd); err != nil {
				return err
			}
		}
	}
	return nil
}

// UndoEvent implements tm.Module: events arrive most-recent-first.
func (tx *Tx) UndoEvent(events []any) {
	for _, a := range events {
		ev := a.(event)
		switch ev.kind {
		case evChdir:
			// The real process CWD was never touched; discarding this
			// transaction's logical override is enough.
		case evCreateNode:
			_ = os.Remove(ev.path)
		case evChmod:
			_ = os.Chmod(ev.path, os.FileMode(ev.oldMode))
		case evUnlinkIrrevocable:
			// No undo path; this event only exists once the
			// transaction has already escalated.
		}
	}
}

// UpdateCC implements tm.Module.
func (tx *Tx) UpdateCC() {}

// ClearCC implements tm.Module.
func (tx *Tx) ClearCC() {}

// Finish implements tm.Module.
func (tx *Tx) Finish() {}
