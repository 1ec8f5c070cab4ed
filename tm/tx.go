// Package tm is the transaction manager core (spec.md §4.11, C12): the
// per-transaction context, module registry, and the commit/abort
// driver that every other package (txfd, txfs, txlib) plugs into.
package tm

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
	"github.com/picotm-go/picotm/tm/txerr"
)

// irrevocableGate serializes the one irrevocable transaction the
// process may have in flight against every other transaction's entire
// lifetime (spec.md §4.11: "While irrevocable, other txs block from
// starting new operations"). Ordinary transactions hold it RLocked for
// their whole body+commit; BecomeIrrevocable upgrades to the exclusive
// Lock.
var irrevocableGate syncutil.InvariantMutex

// escalationSlots bounds how many goroutines may be queued trying to
// escalate to irrevocable at once, so a burst of NOUNDO-touching
// transactions can't pile up unboundedly behind the exclusive lock
// while ordinary transactions are still draining.
var escalationSlots = semaphore.NewWeighted(int64(max(4, runtime.NumCPU())))

func init() {
	irrevocableGate = syncutil.NewInvariantMutex(func() {})
}

// retryLimiter throttles the whole-transaction retry loop in Begin:
// a burst of CONFLICT/PEER_ABORT retries backs off instead of busy-
// spinning against the same contended region (spec.md §6's retry
// loop, mirrored here at the tm.Begin granularity rather than inside
// comfd since retries restart the whole transaction body).
var retryLimiter = rate.NewLimiter(rate.Limit(200), 20)

// defaultClock is the dependency-injected clock each Tx carries
// (Tx.Clock), following the teacher's jacobsa/timeutil.Clock convention
// (fs.ServerConfig.Clock, gcsproxy.MutableContent.clock). tm itself
// reads no time from it. Tests can substitute a fake clock via
// BeginWithClock.
var defaultClock timeutil.Clock = timeutil.RealClock()

// logEntry is one record in the transaction-wide event log (spec.md
// §3's "Event log"). key identifies the owning module; data is
// whatever that module chose to log — tm never inspects it.
type logEntry struct {
	key  any
	data any
}

// Tx is a single transaction's context: the lazily-registered module
// instances it has touched, and the ordered, cross-module event log
// that the commit/abort driver replays.
//
// A Tx is not safe for concurrent use by more than one goroutine: it
// models the "per-thread transaction context" of spec.md §4.11, and in
// this Go port one goroutine plays the role of one thread.
type Tx struct {
	ctx   context.Context
	clock timeutil.Clock

	moduleIdx map[any]int
	modules   []Module
	log       []logEntry

	irrevocable    bool
	gateRLocked    bool
	becameIrrevRun bool
}

func newTx(ctx context.Context, clock timeutil.Clock) *Tx {
	return &Tx{
		ctx:       ctx,
		clock:     clock,
		moduleIdx: make(map[any]int),
	}
}

// Context returns the context.Context this transaction is running
// under.
func (tx *Tx) Context() context.Context { return tx.ctx }

// Clock returns this transaction's clock.
func (tx *Tx) Clock() timeutil.Clock { return tx.clock }

// Use returns the Module registered under key, lazily constructing it
// with factory on first use. This is how a per-thread module (ComFd,
// ComFs, a txlib handle) gets "initialized lazily on first
// transactional call by [this] thread" (spec.md §9) without a thread
// local: the module instance lives on the Tx, and the Tx is threaded
// explicitly through every call.
func (tx *Tx) Use(key any, factory func() Module) Module {
	if idx, ok := tx.moduleIdx[key]; ok {
		return tx.modules[idx]
	}
	m := factory()
	idx := len(tx.modules)
	tx.modules = append(tx.modules, m)
	tx.moduleIdx[key] = idx
	return m
}

// LogEvent appends data to the transaction-wide event log under the
// given module key. Returns the event's index in the log, which
// modules may use as all the "cookie" they need (see SPEC_FULL.md's
// note on why this port drops the C original's integer-indexed
// auxiliary tables in favor of storing payloads directly).
func (tx *Tx) LogEvent(moduleKey any, data any) int {
	tx.log = append(tx.log, logEntry{key: moduleKey, data: data})
	return len(tx.log) - 1
}

// IsIrrevocable reports whether this transaction has escalated.
func (tx *Tx) IsIrrevocable() bool { return tx.irrevocable }

// BecomeIrrevocable escalates this transaction, blocking every other
// transaction in the process from starting until this one finishes
// (spec.md §4.11). Idempotent.
func (tx *Tx) BecomeIrrevocable() {
	if tx.irrevocable {
		return
	}
	if tx.gateRLocked {
		irrevocableGate.RUnlock()
		tx.gateRLocked = false
	}
	_ = escalationSlots.Acquire(tx.ctx, 1)
	irrevocableGate.Lock()
	escalationSlots.Release(1)
	tx.irrevocable = true
	escalations.Inc()
}

// commit runs the five-phase commit protocol from spec.md §4.11:
// lock, validate, apply (in log order, grouped into contiguous
// per-module runs), update_cc, finish.
func (tx *Tx) commit() error {
	for _, m := range tx.modules {
		m.Lock()
	}

	for _, m := range tx.modules {
		if err := m.Validate(tx.irrevocable); err != nil {
			tx.undoAndClear()
			return err
		}
	}

	for i := 0; i < len(tx.log); {
		j := i + 1
		for j < len(tx.log) && tx.log[j].key == tx.log[i].key {
			j++
		}
		mod := tx.modules[tx.moduleIdx[tx.log[i].key]]
		run := make([]any, 0, j-i)
		for k := i; k < j; k++ {
			run = append(run, tx.log[k].data)
		}
		if err := mod.ApplyEvent(run); err != nil {
			tx.undoAndClear()
			return err
		}
		i = j
	}

	for _, m := range tx.modules {
		m.UpdateCC()
	}
	for _, m := range tx.modules {
		m.Finish()
	}
	return nil
}

// undoAndClear runs the abort-side of the protocol (reverse-order
// undo, then clear_cc, then finish) without re-running Lock — used
// both by abort() and by commit() when validation or apply fails
// partway through (the modules already hold their commit-time locks).
func (tx *Tx) undoAndClear() {
	for i := len(tx.log); i > 0; {
		j := i - 1
		for j > 0 && tx.log[j-1].key == tx.log[i-1].key {
			j--
		}
		mod := tx.modules[tx.moduleIdx[tx.log[i-1].key]]
		run := make([]any, 0, i-j)
		for k := i - 1; k >= j; k-- {
			run = append(run, tx.log[k].data)
		}
		mod.UndoEvent(run)
		i = j
	}
	for _, m := range tx.modules {
		m.ClearCC()
	}
	for _, m := range tx.modules {
		m.Finish()
	}
}

// abort runs Lock (so ClearCC has something symmetric to release) then
// undoAndClear. Unlike commit, abort does not validate: an aborting
// transaction's view of shared state is being discarded, not trusted.
func (tx *Tx) abort() {
	for _, m := range tx.modules {
		m.Lock()
	}
	tx.undoAndClear()
}

// Begin runs body inside a new transaction, retrying the whole
// transaction from scratch on ErrConflict/ErrPeerAbort (spec.md §4.8's
// facade retry loop operating at the whole-transaction granularity),
// and returns any other error straight to the caller. body should
// return promptly whatever error a txfd/txfs/txlib call reports to it;
// Begin decides whether that warrants a retry.
func Begin(ctx context.Context, body func(tx *Tx) error) error {
	return BeginWithClock(ctx, defaultClock, body)
}

// BeginWithClock is Begin with an explicit clock, for tests that need
// deterministic timestamps.
func BeginWithClock(ctx context.Context, clock timeutil.Clock, body func(tx *Tx) error) error {
	for {
		tx := newTx(ctx, clock)
		irrevocableGate.RLock()
		tx.gateRLocked = true

		bodyErr := body(tx)

		var err error
		if bodyErr == nil {
			err = tx.commit()
		} else {
			tx.abort()
			err = bodyErr
		}

		if tx.gateRLocked {
			irrevocableGate.RUnlock()
		}
		if tx.irrevocable {
			irrevocableGate.Unlock()
		}

		if err == nil {
			commits.Inc()
			return nil
		}
		aborts.Inc()
		if txerr.Retryable(err) {
			conflicts.Inc()
			if werr := retryLimiter.Wait(ctx); werr != nil {
				return werr
			}
			continue
		}
		return err
	}
}
