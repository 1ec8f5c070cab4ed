package txfs

import (
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/picotm-go/picotm/tm"
	"github.com/picotm-go/picotm/tm/txerr"
)

func chdirReal(path string) error {
	if err := unix.Chdir(path); err != nil {
		return &txerr.SystemError{Op: "chdir", Err: err}
	}
	return nil
}

// Chdir changes this transaction's logical working directory. The
// real process CWD is only changed at commit, and only once, to this
// transaction's final logical CWD — an abort leaves the process CWD
// untouched.
func Chdir(tmTx *tm.Tx, path string) error {
	tx := of(tmTx)
	resolved := tx.resolve(path)
	var st unix.Stat_t
	if err := unix.Stat(resolved, &st); err != nil {
		return &txerr.SystemError{Op: "chdir", Err: err}
	}
	if st.Mode&unix.S_IFMT != unix.S_IFDIR {
		return &txerr.SystemError{Op: "chdir", Err: unix.ENOTDIR}
	}
	if !tx.didChdir {
		tx.didChdir = true
		tx.log(event{kind: evChdir})
	}
	tx.cwd = resolved
	tx.cwdSet = true
	return nil
}

// Fchdir is Chdir from an already-open directory descriptor. It never
// calls the real fchdir(2) itself — the process CWD is process-wide,
// shared by every concurrent transaction, so only commit may touch
// it. The descriptor's target path is instead recovered by reading
// its /proc/self/fd symlink, the same trick fs/inode uses in the
// teacher to resolve a descriptor back to a path.
func Fchdir(tmTx *tm.Tx, fildes int) error {
	tx := of(tmTx)
	var buf [4096]byte
	n, err := unix.Readlink(procFdPath(fildes), buf[:])
	if err != nil {
		return &txerr.SystemError{Op: "fchdir", Err: err}
	}
	path := string(buf[:n])
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil || st.Mode&unix.S_IFMT != unix.S_IFDIR {
		return &txerr.SystemError{Op: "fchdir", Err: unix.ENOTDIR}
	}
	if !tx.didChdir {
		tx.didChdir = true
		tx.log(event{kind: evChdir})
	}
	tx.cwd = path
	tx.cwdSet = true
	return nil
}

func procFdPath(fildes int) string {
	return "/proc/self/fd/" + strconv.Itoa(fildes)
}

// Getcwd returns this transaction's logical working directory.
func Getcwd(tmTx *tm.Tx) (string, error) {
	tx := of(tmTx)
	if tx.cwdSet {
		return tx.cwd, nil
	}
	path, err := unix.Getwd()
	if err != nil {
		return "", &txerr.SystemError{Op: "getcwd", Err: err}
	}
	return path, nil
}

// Stat, Lstat, Fstat are pure reads: no conflict detection, no undo.
func Stat(tmTx *tm.Tx, path string) (unix.Stat_t, error) {
	tx := of(tmTx)
	var st unix.Stat_t
	if err := unix.Stat(tx.resolve(path), &st); err != nil {
		return st, &txerr.SystemError{Op: "stat", Err: err}
	}
	return st, nil
}

func Lstat(tmTx *tm.Tx, path string) (unix.Stat_t, error) {
	tx := of(tmTx)
	var st unix.Stat_t
	if err := unix.Lstat(tx.resolve(path), &st); err != nil {
		return st, &txerr.SystemError{Op: "lstat", Err: err}
	}
	return st, nil
}

func Fstat(tmTx *tm.Tx, fildes int) (unix.Stat_t, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fildes, &st); err != nil {
		return st, &txerr.SystemError{Op: "fstat", Err: err}
	}
	return st, nil
}

// Chmod and Fchmod buffer the previous mode for undo, matching
// txfd.Fcntl's F_SETFL/F_SETFD save-and-restore pattern.
func Chmod(tmTx *tm.Tx, path string, mode uint32) error {
	tx := of(tmTx)
	resolved := tx.resolve(path)
	var st unix.Stat_t
	if err := unix.Stat(resolved, &st); err != nil {
		return &txerr.SystemError{Op: "chmod", Err: err}
	}
	if err := unix.Chmod(resolved, mode); err != nil {
		return &txerr.SystemError{Op: "chmod", Err: err}
	}
	tx.log(event{kind: evChmod, path: resolved, oldMode: uint32(st.Mode)})
	return nil
}

func Fchmod(tmTx *tm.Tx, fildes int, mode uint32) error {
	tx := of(tmTx)
	var st unix.Stat_t
	if err := unix.Fstat(fildes, &st); err != nil {
		return &txerr.SystemError{Op: "fchmod", Err: err}
	}
	var buf [4096]byte
	n, err := unix.Readlink(procFdPath(fildes), buf[:])
	if err != nil {
		return &txerr.SystemError{Op: "fchmod", Err: err}
	}
	if err := unix.Fchmod(fildes, mode); err != nil {
		return &txerr.SystemError{Op: "fchmod", Err: err}
	}
	tx.log(event{kind: evChmod, path: string(buf[:n]), oldMode: uint32(st.Mode)})
	return nil
}

// Mkdir, Mkfifo, Mknod, Link, and Mkstemp all create a new namespace
// entry whose undo is simply removing it again — the same
// creation/undo-by-removal shape as txfd's Open.
func Mkdir(tmTx *tm.Tx, path string, mode uint32) error {
	tx := of(tmTx)
	resolved := tx.resolve(path)
	if err := unix.Mkdir(resolved, mode); err != nil {
		return &txerr.SystemError{Op: "mkdir", Err: err}
	}
	tx.log(event{kind: evCreateNode, path: resolved})
	return nil
}

func Mkfifo(tmTx *tm.Tx, path string, mode uint32) error {
	tx := of(tmTx)
	resolved := tx.resolve(path)
	if err := unix.Mkfifo(resolved, mode); err != nil {
		return &txerr.SystemError{Op: "mkfifo", Err: err}
	}
	tx.log(event{kind: evCreateNode, path: resolved})
	return nil
}

func Mknod(tmTx *tm.Tx, path string, mode uint32, dev int) error {
	tx := of(tmTx)
	resolved := tx.resolve(path)
	if err := unix.Mknod(resolved, mode, dev); err != nil {
		return &txerr.SystemError{Op: "mknod", Err: err}
	}
	tx.log(event{kind: evCreateNode, path: resolved})
	return nil
}

func Link(tmTx *tm.Tx, oldpath, newpath string) error {
	tx := of(tmTx)
	oldResolved, newResolved := tx.resolve(oldpath), tx.resolve(newpath)
	if err := unix.Link(oldResolved, newResolved); err != nil {
		return &txerr.SystemError{Op: "link", Err: err}
	}
	tx.log(event{kind: evCreateNode, path: newResolved})
	return nil
}

// Mkstemp creates a uniquely-named file in dir, undoable the same way
// as any other creation call — unlike the C library's mkstemp(3), name
// generation uses github.com/google/uuid rather than a PRNG seeded
// from the clock and PID, so two concurrent transactions never retry
// on a name collision.
func Mkstemp(tmTx *tm.Tx, dir string) (path string, fildes int, err error) {
	tx := of(tmTx)
	resolvedDir := tx.resolve(dir)
	name := resolvedDir + "/tmp-" + uuid.NewString()
	fildes, errno := unix.Open(name, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL, 0o600)
	if errno != nil {
		return "", -1, &txerr.SystemError{Op: "mkstemp", Err: errno}
	}
	tx.log(event{kind: evCreateNode, path: name})
	return name, fildes, nil
}

// Unlink has no general undo (the removed name may be the last link
// to data another process is still reading), so it escalates the
// whole transaction to irrevocable before running, matching how txfd
// treats NOUNDO-mode calls.
func Unlink(tmTx *tm.Tx, path string) error {
	tx := of(tmTx)
	tmTx.BecomeIrrevocable()
	resolved := tx.resolve(path)
	if err := unix.Unlink(resolved); err != nil {
		return &txerr.SystemError{Op: "unlink", Err: err}
	}
	tx.log(event{kind: evUnlinkIrrevocable, path: resolved})
	return nil
}

// Rmdir is Unlink's directory counterpart, same irrevocability
// rationale.
func Rmdir(tmTx *tm.Tx, path string) error {
	tx := of(tmTx)
	tmTx.BecomeIrrevocable()
	resolved := tx.resolve(path)
	if err := unix.Rmdir(resolved); err != nil {
		return &txerr.SystemError{Op: "rmdir", Err: err}
	}
	tx.log(event{kind: evUnlinkIrrevocable, path: resolved})
	return nil
}
