package txfd

// eventKind discriminates the payloads this module appends to the
// transaction-wide event log (tm.Tx.LogEvent). Each kind is applied or
// undone independently in ApplyEvent/UndoEvent.
type eventKind int

const (
	evWrite eventKind = iota
	evSeek
	evClose
	evFcntl
	evCreate // open/dup/pipe/socket/accept: undo closes the new fildes
)

// event is the payload logged for every call this module makes
// transactional.
type event struct {
	kind eventKind

	fildes int
	ofdIdx int

	// evWrite
	offset int64
	data   []byte

	// evSeek
	newOffset int64

	// evFcntl
	fcntlCmd int
	fcntlArg int

	// evCreate
	unlinkOnUndo string // path to unlink if this create also created the file
}
