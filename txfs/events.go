package txfs

type eventKind int

const (
	evChdir eventKind = iota
	evCreateNode // mkdir, mkfifo, mknod, mkstemp, link: undo removes path
	evChmod
	evUnlinkIrrevocable
)

type event struct {
	kind eventKind

	path    string
	oldMode uint32 // evChmod: mode to restore on undo
}
