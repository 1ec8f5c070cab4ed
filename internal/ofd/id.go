package ofd

// ID identifies an open file description by the inode it refers to and
// the file descriptor that first created the in-process OFD record for
// it (spec.md §3: "OFD identity ordering: keys compare by
// (dev, ino, fildes)"). A second kernel file descriptor referring to
// an inode already on file gets its own, distinct OFD only when the
// caller asserts it was newly created (see Table.FindOrInstall's
// newlyCreated parameter); otherwise FindOrInstall reports a conflict
// — this package cannot tell a dup()'d descriptor from an unrelated
// open() of the same inode any more than the C original could.
type ID struct {
	Dev    uint64
	Ino    uint64
	Fildes int32
}

// Compare orders two IDs by (Dev, Ino, Fildes), matching spec.md's
// "OFD identity ordering".
func Compare(a, b ID) int {
	switch {
	case a.Dev != b.Dev:
		if a.Dev < b.Dev {
			return -1
		}
		return 1
	case a.Ino != b.Ino:
		if a.Ino < b.Ino {
			return -1
		}
		return 1
	case a.Fildes != b.Fildes:
		if a.Fildes < b.Fildes {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// SameInode reports whether a and b name the same inode, regardless of
// which fildes created the record.
func SameInode(a, b ID) bool {
	return a.Dev == b.Dev && a.Ino == b.Ino
}
