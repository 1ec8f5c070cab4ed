package tm

// Module is the callback bundle a transactional subsystem registers
// with a Tx (spec.md §4.11: "A module registers by providing the
// callback bundle: lock, unlock, is_valid, apply_event, undo_event,
// update_cc, clear_cc, finish, uninit").
//
// Go has no analogue of the C original's "opaque data pointer" — each
// module registers itself (txfd.Tx, txfs.Tx, a txlib handle) as its own
// Module implementation instead of a data pointer plus free functions.
type Module interface {
	// Lock acquires whatever coarse, module-level locks commit needs to
	// hold before validation (step 1 of the commit protocol).
	Lock()

	// Validate reports a non-nil error (normally *txerr.ConflictError)
	// if this module's view of shared state is no longer current.
	// irrevocable is true if this transaction has become irrevocable,
	// in which case validation is generally skipped (an irrevocable
	// transaction is, by construction, always valid).
	Validate(irrevocable bool) error

	// ApplyEvent is called once per contiguous run of this module's
	// log entries, in log order, during commit.
	ApplyEvent(events []any) error

	// UndoEvent is called once per contiguous run of this module's log
	// entries, already presented in reverse (most-recent-first) order,
	// during abort.
	UndoEvent(events []any)

	// UpdateCC runs after every module has validated and every event
	// has been applied: release 2PL locks, bump TS versions, publish
	// committed state.
	UpdateCC()

	// ClearCC runs after abort has undone every event: release
	// whatever locks Lock or exec-time acquisition took.
	ClearCC()

	// Finish runs at the very end of both commit and abort.
	Finish()
}
