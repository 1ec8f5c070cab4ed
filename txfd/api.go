package txfd

import (
	"golang.org/x/sys/unix"

	"github.com/picotm-go/picotm/internal/ofd"
	"github.com/picotm-go/picotm/tm"
	"github.com/picotm-go/picotm/tm/txerr"
)

// ensureFD returns this transaction's companion state for fildes,
// registering it on first touch — whether that first touch was a call
// this package made (Open, Dup, Pipe, ...) or a bare fildes the
// caller already held before the transaction began (stdin/stdout, an
// inherited socket).
func (tx *Tx) ensureFD(fildes int) (*fdTx, *ofdTx, error) {
	if f, ok := tx.fdt[fildes]; ok {
		return f, tx.ofdTxFor(f.ofdIdx), nil
	}
	id, typ, err := identify(fildes)
	if err != nil {
		return nil, nil, err
	}
	idx, _, err := ofdTable.FindOrInstall(id, typ, false)
	if err != nil {
		return nil, nil, err
	}
	f := tx.fdTxFor(fildes, idx)
	return f, tx.ofdTxFor(idx), nil
}

// escalateIfNoUndo becomes irrevocable the first time this
// transaction touches an OFD whose type is configured NOUNDO (spec.md
// §6): such an OFD offers no validation or rollback, so the only safe
// way to let the call proceed is for the whole transaction to give up
// on being abortable.
func escalateIfNoUndo(tmTx *tm.Tx, t *ofdTx) {
	if t.ccMode == ofd.NoUndo && !tmTx.IsIrrevocable() {
		tmTx.BecomeIrrevocable()
	}
}

// Open opens path transactionally: the underlying open(2) always runs
// immediately (spec.md §4.9 lists file creation among the calls with
// no meaningful "exec-time-only, apply-time-for-real" split), and the
// new fildes is entered into the shared OFD/FD tables at once. On
// abort the fildes is closed and its table entries released, and an
// O_CREAT|O_EXCL file is unlinked again.
func Open(tmTx *tm.Tx, path string, flags int, mode uint32) (int, error) {
	fildes, err := unix.Open(path, flags, mode)
	if err != nil {
		return -1, &txerr.SystemError{Op: "open", Err: err}
	}
	id, typ, err := identify(fildes)
	if err != nil {
		_ = unix.Close(fildes)
		return -1, err
	}
	newlyCreated := flags&unix.O_CREAT != 0 && flags&unix.O_EXCL != 0
	idx, _, err := ofdTable.FindOrInstall(id, typ, newlyCreated)
	if err != nil {
		_ = unix.Close(fildes)
		return -1, err
	}

	tx := of(tmTx)
	tx.fdTxFor(fildes, idx)
	unlinkOnUndo := ""
	if newlyCreated {
		unlinkOnUndo = path
	}
	tx.log(event{kind: evCreate, fildes: fildes, ofdIdx: idx, unlinkOnUndo: unlinkOnUndo})
	return fildes, nil
}

// Close signals fildes closing: the slot is marked CLOSING so any
// other transaction that races to validate against it aborts, but the
// real close(2) and the table bookkeeping only happen at apply/undo.
func Close(tmTx *tm.Tx, fildes int) error {
	tx := of(tmTx)
	f, _, err := tx.ensureFD(fildes)
	if err != nil {
		return err
	}
	fdTable.Slot(fildes).SignalClose()
	tx.log(event{kind: evClose, fildes: fildes, ofdIdx: f.ofdIdx})
	return nil
}

// Write appends data at this transaction's view of fildes's current
// offset and advances it, returning the number of bytes written.
func Write(tmTx *tm.Tx, fildes int, data []byte) (int, error) {
	tx := of(tmTx)
	f, t, err := tx.ensureFD(fildes)
	if err != nil {
		return -1, err
	}
	escalateIfNoUndo(tmTx, t)
	off := t.currentOffset()
	if t.ccMode == ofd.NoUndo {
		if typ := t.o.Type(); typ == ofd.Fifo || typ == ofd.Socket {
			n, err := unix.Write(fildes, data)
			if err != nil {
				return -1, &txerr.SystemError{Op: "write", Err: err}
			}
			return n, nil
		}
		n, err := unix.Pwrite(fildes, data, off)
		if err != nil {
			return -1, &txerr.SystemError{Op: "write", Err: err}
		}
		t.setOffset(off + int64(n))
		t.o.SetOffset(off + int64(n))
		return n, nil
	}
	if err := t.lockForWrite(uint64(off), uint64(len(data))); err != nil {
		return -1, err
	}
	t.recordWrite(off, data)
	t.setOffset(off + int64(len(data)))
	tx.log(event{kind: evWrite, fildes: fildes, ofdIdx: f.ofdIdx, offset: off, data: data})
	return len(data), nil
}

// Pwrite is Write at an explicit offset, leaving the transaction's
// view of fildes's current offset untouched.
func Pwrite(tmTx *tm.Tx, fildes int, data []byte, offset int64) (int, error) {
	tx := of(tmTx)
	f, t, err := tx.ensureFD(fildes)
	if err != nil {
		return -1, err
	}
	escalateIfNoUndo(tmTx, t)
	if t.ccMode == ofd.NoUndo {
		n, err := unix.Pwrite(fildes, data, offset)
		if err != nil {
			return -1, &txerr.SystemError{Op: "pwrite", Err: err}
		}
		return n, nil
	}
	if err := t.lockForWrite(uint64(offset), uint64(len(data))); err != nil {
		return -1, err
	}
	t.recordWrite(offset, data)
	tx.log(event{kind: evWrite, fildes: fildes, ofdIdx: f.ofdIdx, offset: offset, data: data})
	return len(data), nil
}

// Read fills buf starting at this transaction's view of fildes's
// current offset, overlaying any of this transaction's own pending
// writes over what is actually on disk, and advances the offset.
func Read(tmTx *tm.Tx, fildes int, buf []byte) (int, error) {
	tx := of(tmTx)
	_, t, err := tx.ensureFD(fildes)
	if err != nil {
		return -1, err
	}
	off := t.currentOffset()
	n, err := readAt(tmTx, t, fildes, off, buf)
	if err != nil {
		return -1, err
	}
	t.setOffset(off + int64(n))
	return n, nil
}

// Pread is Read at an explicit offset, leaving the transaction's view
// of fildes's current offset untouched.
func Pread(tmTx *tm.Tx, fildes int, buf []byte, offset int64) (int, error) {
	tx := of(tmTx)
	_, t, err := tx.ensureFD(fildes)
	if err != nil {
		return -1, err
	}
	return readAt(tmTx, t, fildes, offset, buf)
}

func readAt(tmTx *tm.Tx, t *ofdTx, fildes int, offset int64, buf []byte) (int, error) {
	escalateIfNoUndo(tmTx, t)
	if t.ccMode != ofd.NoUndo {
		if err := t.lockForRead(uint64(offset), uint64(len(buf))); err != nil {
			return -1, err
		}
	}
	var n int
	var err error
	if typ := t.o.Type(); typ == ofd.Fifo || typ == ofd.Socket {
		n, err = unix.Read(fildes, buf)
	} else {
		n, err = unix.Pread(fildes, buf, offset)
	}
	if err != nil {
		return -1, &txerr.SystemError{Op: "pread", Err: err}
	}
	t.overlayRead(offset, buf[:n])
	return n, nil
}

// Lseek repositions this transaction's view of fildes's offset,
// publishing it to the shared OFD only at commit.
func Lseek(tmTx *tm.Tx, fildes int, offset int64, whence int) (int64, error) {
	tx := of(tmTx)
	f, t, err := tx.ensureFD(fildes)
	if err != nil {
		return -1, err
	}
	var newOff int64
	switch whence {
	case unix.SEEK_SET:
		newOff = offset
	case unix.SEEK_CUR:
		newOff = t.currentOffset() + offset
	case unix.SEEK_END:
		var st unix.Stat_t
		if err := unix.Fstat(fildes, &st); err != nil {
			return -1, &txerr.SystemError{Op: "fstat", Err: err}
		}
		newOff = st.Size + offset
	default:
		return -1, &txerr.SystemError{Op: "lseek", Err: unix.EINVAL}
	}
	if newOff < 0 {
		return -1, &txerr.SystemError{Op: "lseek", Err: unix.EINVAL}
	}
	t.setOffset(newOff)
	tx.log(event{kind: evSeek, fildes: fildes, ofdIdx: f.ofdIdx, newOffset: newOff})
	return newOff, nil
}

// Dup transactionally duplicates fildes, sharing its OFD.
func Dup(tmTx *tm.Tx, fildes int) (int, error) {
	tx := of(tmTx)
	f, t, err := tx.ensureFD(fildes)
	if err != nil {
		return -1, err
	}
	newfd, err := unix.Dup(fildes)
	if err != nil {
		return -1, &txerr.SystemError{Op: "dup", Err: err}
	}
	t.o.Ref()
	tx.fdTxFor(newfd, f.ofdIdx)
	tx.log(event{kind: evCreate, fildes: newfd, ofdIdx: f.ofdIdx})
	return newfd, nil
}

// Pipe creates a pipe, registering both ends as fresh OFDs of type
// Fifo (spec.md §4.6's dispatch table routes Fifo OFDs NOUNDO by
// default, matching comfd_pipe.c).
func Pipe(tmTx *tm.Tx) (readFD, writeFD int, err error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return -1, -1, &txerr.SystemError{Op: "pipe", Err: err}
	}
	tx := of(tmTx)
	for _, fildes := range fds {
		id, typ, err := identify(fildes)
		if err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return -1, -1, err
		}
		idx, _, err := ofdTable.FindOrInstall(id, typ, true)
		if err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return -1, -1, err
		}
		tx.fdTxFor(fildes, idx)
		tx.log(event{kind: evCreate, fildes: fildes, ofdIdx: idx})
	}
	return fds[0], fds[1], nil
}

// Fcntl performs a transactional fcntl. Only F_SETFL and F_SETFD are
// undo-logged (spec.md §4.6); every other command (F_GETFL, F_DUPFD,
// ...) is out of this module's domain for transactional purposes and
// simply passes through.
func Fcntl(tmTx *tm.Tx, fildes int, cmd int, arg int) (int, error) {
	tx := of(tmTx)
	f, _, err := tx.ensureFD(fildes)
	if err != nil {
		return -1, err
	}
	switch cmd {
	case unix.F_SETFL, unix.F_SETFD:
		getCmd := unix.F_GETFL
		if cmd == unix.F_SETFD {
			getCmd = unix.F_GETFD
		}
		old, err := unix.FcntlInt(uintptr(fildes), getCmd, 0)
		if err != nil {
			return -1, &txerr.SystemError{Op: "fcntl", Err: err}
		}
		n, err := unix.FcntlInt(uintptr(fildes), cmd, arg)
		if err != nil {
			return -1, &txerr.SystemError{Op: "fcntl", Err: err}
		}
		tx.log(event{kind: evFcntl, fildes: fildes, ofdIdx: f.ofdIdx, fcntlCmd: cmd, fcntlArg: old})
		return n, nil
	default:
		n, err := unix.FcntlInt(uintptr(fildes), cmd, arg)
		if err != nil {
			return -1, &txerr.SystemError{Op: "fcntl", Err: err}
		}
		return n, nil
	}
}

// Fsync and Sync have no meaningful undo (spec.md's original
// comfd_sync.c forces NOUNDO for both): a transaction that calls
// either becomes irrevocable.
func Fsync(tmTx *tm.Tx, fildes int) error {
	tx := of(tmTx)
	if _, _, err := tx.ensureFD(fildes); err != nil {
		return err
	}
	tmTx.BecomeIrrevocable()
	if err := unix.Fsync(fildes); err != nil {
		return &txerr.SystemError{Op: "fsync", Err: err}
	}
	return nil
}

func Sync(tmTx *tm.Tx) {
	tmTx.BecomeIrrevocable()
	unix.Sync()
}
