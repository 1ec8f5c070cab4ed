// Package txstack is a transactional LIFO stack, txqueue's mirror
// image (spec.md §4.10, part of C11). Push buffers locally exactly
// like txqueue; Pop checks this transaction's own local top first
// (the most recently pushed entry is always logically on top,
// whether or not it has been published yet) and only falls through to
// the shared stack's top once the local buffer is empty.
package txstack

import (
	"github.com/jacobsa/syncutil"

	"github.com/picotm-go/picotm/tm"
)

type node[T any] struct {
	next          *node[T]
	value         T
	poppedLocally bool
}

// State is the shared, process-wide stack.
type State[T any] struct {
	mu   syncutil.InvariantMutex
	top  *node[T]
	size int
}

// NewState returns an empty, shared stack.
func NewState[T any]() *State[T] {
	s := &State[T]{}
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
	value T
}

// Handle is one transaction's companion object for a shared stack.
type Handle[T any] struct {
	tmTx *tm.Tx
	st   *State[T]
	held lockMode

	localTop *node[T]
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

// Push buffers value as this transaction's own new top entry.
func (h *Handle[T]) Push(value T) {
	n := &node[T]{value: value, next: h.localTop}
	h.localTop = n
	h.tmTx.LogEvent(h.st, event[T]{kind: opPushLocal, node: n})
}

// Pop removes and returns the stack's current top entry.
func (h *Handle[T]) Pop() (value T, ok bool) {
	if h.localTop != nil {
		n := h.localTop
		h.localTop = n.next
		n.poppedLocally = true
		return n.value, true
	}
	h.ensureWrite()
	if h.st.top != nil {
		n := h.st.top
		h.st.top = n.next
		h.st.size--
		h.tmTx.LogEvent(h.st, event[T]{kind: opPopShared, value: n.value})
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
	for n := h.localTop; n != nil; n = n.next {
		local++
	}
	return shared + local
}

// Empty reports whether Size is zero.
func (h *Handle[T]) Empty() bool { return h.Size() == 0 }

// Lock implements tm.Module.
func (h *Handle[T]) Lock() {
	if h.localTop != nil {
		h.ensureWrite()
	}
}

// Validate implements tm.Module: always valid (see package doc).
func (h *Handle[T]) Validate(irrevocable bool) error { return nil }

// ApplyEvent implements tm.Module. Pushes are applied in log order,
// i.e. oldest local push first — laid onto the shared top in that
// same order reproduces this transaction's local LIFO order once
// every pushed-and-not-locally-popped entry has been applied.
func (h *Handle[T]) ApplyEvent(events []any) error {
	for _, a := range events {
		ev := a.(event[T])
		if ev.kind == opPushLocal && !ev.node.poppedLocally {
			ev.node.next = h.st.top
			h.st.top = ev.node
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
			n := &node[T]{value: ev.value, next: h.st.top}
			h.st.top = n
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
