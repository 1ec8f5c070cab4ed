// Package txqueue is a transactional FIFO queue (spec.md §4.10, part
// of C11). Unlike txlist, a Push is tx-local until commit — a
// concurrent transaction must not be able to Pop an entry this
// transaction pushed before this transaction has actually committed —
// so Push buffers the new entry locally and only ApplyEvent transfers
// it onto the shared queue's tail. Pop, by contrast, mutates the
// shared queue directly at exec time exactly like txlist's Erase,
// because an entry popped from the shared queue must disappear for
// every other transaction immediately.
package txqueue

import (
	"github.com/jacobsa/syncutil"

	"github.com/picotm-go/picotm/tm"
)

type node[T any] struct {
	prev, next    *node[T]
	value         T
	poppedLocally bool
}

// State is the shared, process-wide queue.
type State[T any] struct {
	mu   syncutil.InvariantMutex
	head node[T] // sentinel
	size int
}

// NewState returns an empty, shared queue.
func NewState[T any]() *State[T] {
	s := &State[T]{}
	s.head.next = &s.head
	s.head.prev = &s.head
	s.mu = syncutil.NewInvariantMutex(func() {})
	return s
}

type lockMode int

const (
	none lockMode = iota
	write
)

type opKind int

const (
	opPushLocal opKind = iota
	opPopShared
)

type event[T any] struct {
	kind  opKind
	node  *node[T]
	value T // opPopShared: the value removed, to reconstruct a node on undo
}

// Handle is one transaction's companion object for a shared queue:
// the lock it holds on the shared state, and the FIFO of entries this
// transaction has pushed but not yet committed.
type Handle[T any] struct {
	tmTx *tm.Tx
	st   *State[T]
	held lockMode

	localHead, localTail *node[T]
}

// Use returns the transaction's Handle for st, lazily registering one.
func Use[T any](tmTx *tm.Tx, st *State[T]) *Handle[T] {
	return tmTx.Use(st, func() tm.Module {
		return &Handle[T]{tmTx: tmTx, st: st}
	}).(*Handle[T])
}

func (h *Handle[T]) ensureWrite() {
	if h.held != write {
		h.st.mu.Lock()
		h.held = write
	}
}

// Push buffers value as this transaction's own tail entry. It becomes
// visible to the rest of the process only at commit.
func (h *Handle[T]) Push(value T) {
	n := &node[T]{value: value}
	if h.localTail == nil {
		h.localHead, h.localTail = n, n
	} else {
		n.prev = h.localTail
		h.localTail.next = n
		h.localTail = n
	}
	h.tmTx.LogEvent(h.st, event[T]{kind: opPushLocal, node: n})
}

// Pop removes and returns the queue's current front entry: the
// shared queue's front if non-empty (those entries are strictly
// older than anything this transaction has pushed), otherwise this
// transaction's own oldest locally-pushed entry.
func (h *Handle[T]) Pop() (value T, ok bool) {
	h.ensureWrite()
	if h.st.size > 0 {
		n := h.st.head.next
		val := n.value
		unlink(n)
		h.st.size--
		h.tmTx.LogEvent(h.st, event[T]{kind: opPopShared, value: val})
		return val, true
	}
	if h.localHead != nil {
		n := h.localHead
		h.localHead = n.next
		if h.localHead == nil {
			h.localTail = nil
		} else {
			h.localHead.prev = nil
		}
		n.poppedLocally = true
		return n.value, true
	}
	var zero T
	return zero, false
}

// Size returns the number of entries visible to every transaction
// plus this transaction's own not-yet-committed pushes.
func (h *Handle[T]) Size() int {
	var shared int
	if h.held == write {
		shared = h.st.size
	} else {
		h.st.mu.RLock()
		shared = h.st.size
		h.st.mu.RUnlock()
	}
	local := 0
	for n := h.localHead; n != nil; n = n.next {
		local++
	}
	return shared + local
}

// Empty reports whether Size is zero.
func (h *Handle[T]) Empty() bool { return h.Size() == 0 }

func insertAfter[T any](after, n *node[T]) {
	n.prev = after
	n.next = after.next
	after.next.prev = n
	after.next = n
}

func unlink[T any](n *node[T]) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next = nil, nil
}

// Lock implements tm.Module: a transaction that only pushed never
// took the shared write lock at exec time, so it must take it now,
// before ApplyEvent needs to mutate the shared tail.
func (h *Handle[T]) Lock() {
	if h.localHead != nil {
		h.ensureWrite()
	}
}

// Validate implements tm.Module: always valid (see package doc).
func (h *Handle[T]) Validate(irrevocable bool) error { return nil }

// ApplyEvent implements tm.Module.
func (h *Handle[T]) ApplyEvent(events []any) error {
	for _, a := range events {
		ev := a.(event[T])
		if ev.kind == opPushLocal && !ev.node.poppedLocally {
			tail := h.st.head.prev
			insertAfter(tail, ev.node)
			h.st.size++
		}
	}
	return nil
}

// UndoEvent implements tm.Module: events arrive most-recent-first.
func (h *Handle[T]) UndoEvent(events []any) {
	for _, a := range events {
		ev := a.(event[T])
		if ev.kind == opPopShared {
			n := &node[T]{value: ev.value}
			insertAfter(&h.st.head, n)
			h.st.size++
		}
	}
}

// UpdateCC implements tm.Module.
func (h *Handle[T]) UpdateCC() { h.unlock() }

// ClearCC implements tm.Module.
func (h *Handle[T]) ClearCC() { h.unlock() }

func (h *Handle[T]) unlock() {
	if h.held == write {
		h.st.mu.Unlock()
		h.held = none
	}
}

// Finish implements tm.Module.
func (h *Handle[T]) Finish() {}
