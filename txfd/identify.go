package txfd

import (
	"golang.org/x/sys/unix"

	"github.com/picotm-go/picotm/internal/ofd"
	"github.com/picotm-go/picotm/tm/txerr"
)

// identify fstats fildes to derive the (dev, ino) identity and file
// type spec.md §4.4's OFD table keys on.
func identify(fildes int) (ofd.ID, ofd.Type, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fildes, &st); err != nil {
		return ofd.ID{}, ofd.Any, &txerr.SystemError{Op: "fstat", Err: err}
	}
	typ := ofd.Any
	switch st.Mode & unix.S_IFMT {
	case unix.S_IFREG:
		typ = ofd.Regular
	case unix.S_IFIFO:
		typ = ofd.Fifo
	case unix.S_IFSOCK:
		typ = ofd.Socket
	}
	id := ofd.ID{Dev: uint64(st.Dev), Ino: st.Ino, Fildes: int32(fildes)}
	return id, typ, nil
}

func execUnlink(path string) {
	_ = unix.Unlink(path)
}

// undoFcntl reverts a logged fcntl call. Only F_SETFL/F_SETFD are
// transactional (spec.md §4.6): their undo restores the previous flag
// word fcntlArg recorded at exec time.
func undoFcntl(fildes, cmd, oldArg int) {
	switch cmd {
	case unix.F_SETFL, unix.F_SETFD:
		_, _ = unix.FcntlInt(uintptr(fildes), cmd, oldArg)
	}
}
