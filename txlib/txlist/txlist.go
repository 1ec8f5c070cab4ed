// Package txlist is a transactional doubly-linked list (spec.md §4.10,
// part of C11): a shared sentinel-headed list guarded by one
// process-wide reader/writer lock, and a per-transaction handle that
// logs enough about each mutation to reverse it on abort.
//
// Unlike txfd's redo-logged writes, list mutations happen directly
// against the shared list at exec time, under a lock this
// transaction holds until commit or abort (spec.md §4.10's symmetry
// property: "apply is a no-op and undo reverses the mutation"). Other
// transactions simply cannot see the list until this one releases its
// lock, so there is nothing to redo.
package txlist

import (
	"github.com/jacobsa/syncutil"

	"github.com/picotm-go/picotm/tm"
)

// Node is the linkage embedded in every list entry, owned by the
// caller exactly as spec.md describes ("entries are owned by the
// caller").
type Node[T any] struct {
	prev, next *Node[T]
	list       *State[T]
	Value      T
}

// State is the shared, process-wide list: a sentinel head and a
// single global lock. Constructed once per logical list and shared by
// every transaction that touches it.
type State[T any] struct {
	mu   syncutil.InvariantMutex
	head Node[T]
	size int
}

// NewState returns an empty, shared list.
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
	read
	write
)

type opKind int

const (
	opInsertAfter opKind = iota
	opErase
)

type event[T any] struct {
	kind   opKind
	node   *Node[T]
	after  *Node[T] // opInsertAfter: node was inserted after this one
	before *Node[T] // opErase: node's old prev, for undo re-insertion
}

// Handle is one transaction's companion object for a shared list
// (spec.md's per-tx handle holding an "rwstate token").
type Handle[T any] struct {
	tmTx *tm.Tx
	st   *State[T]
	held lockMode
}

// Use returns the transaction's Handle for st, lazily registering one
// on first touch. st's own pointer identity is the tm.Module
// registration key: two calls from the same transaction against the
// same shared list always return the same Handle.
func Use[T any](tmTx *tm.Tx, st *State[T]) *Handle[T] {
	return tmTx.Use(st, func() tm.Module {
		return &Handle[T]{tmTx: tmTx, st: st}
	}).(*Handle[T])
}

func (h *Handle[T]) ensureWrite() {
	if h.held != write {
		if h.held == read {
			h.st.mu.RUnlock()
		}
		h.st.mu.Lock()
		h.held = write
	}
}

func (h *Handle[T]) ensureRead() {
	if h.held == none {
		h.st.mu.RLock()
		h.held = read
	}
}

func (h *Handle[T]) log(ev event[T]) {
	h.tmTx.LogEvent(h.st, ev)
}

// PushBack inserts a new node holding value at the tail of the shared
// list, visible to the rest of the process as soon as this call
// returns (this transaction holds the write lock until commit/abort).
func (h *Handle[T]) PushBack(value T) *Node[T] {
	h.ensureWrite()
	n := &Node[T]{Value: value, list: h.st}
	after := h.st.head.prev
	insertAfter(after, n)
	h.st.size++
	h.log(event[T]{kind: opInsertAfter, node: n, after: after})
	return n
}

// PushFront inserts a new node holding value at the head of the list.
func (h *Handle[T]) PushFront(value T) *Node[T] {
	h.ensureWrite()
	n := &Node[T]{Value: value, list: h.st}
	after := &h.st.head
	insertAfter(after, n)
	h.st.size++
	h.log(event[T]{kind: opInsertAfter, node: n, after: after})
	return n
}

// Erase removes n from the list.
func (h *Handle[T]) Erase(n *Node[T]) {
	h.ensureWrite()
	before := n.prev
	unlink(n)
	h.st.size--
	h.log(event[T]{kind: opErase, node: n, before: before})
}

// Find returns the first node for which match reports true, holding
// only a read lock unless the caller subsequently mutates.
func (h *Handle[T]) Find(match func(T) bool) *Node[T] {
	h.ensureRead()
	for n := h.st.head.next; n != &h.st.head; n = n.next {
		if match(n.Value) {
			return n
		}
	}
	return nil
}

// Size returns the number of entries currently in the shared list.
func (h *Handle[T]) Size() int {
	h.ensureRead()
	return h.st.size
}

// Empty reports whether the list has no entries.
func (h *Handle[T]) Empty() bool { return h.Size() == 0 }

// Clear removes every entry from the list.
func (h *Handle[T]) Clear() {
	h.ensureWrite()
	for n := h.st.head.next; n != &h.st.head; {
		next := n.next
		before := n.prev
		unlink(n)
		h.st.size--
		h.log(event[T]{kind: opErase, node: n, before: before})
		n = next
	}
}

func insertAfter[T any](after, n *Node[T]) {
	n.prev = after
	n.next = after.next
	after.next.prev = n
	after.next = n
}

func unlink[T any](n *Node[T]) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next = nil, nil
}

// Lock implements tm.Module: nothing further to acquire at commit —
// PushBack/PushFront/Erase already took the write lock at exec time.
func (h *Handle[T]) Lock() {}

// Validate implements tm.Module: a list handle is always valid by
// construction — every conflicting concurrent access blocked on the
// shared rwlock at exec time instead of racing to commit.
func (h *Handle[T]) Validate(irrevocable bool) error { return nil }

// ApplyEvent implements tm.Module: every mutation already happened
// directly against the shared list at exec time.
func (h *Handle[T]) ApplyEvent(events []any) error { return nil }

// UndoEvent implements tm.Module: events arrive most-recent-first, so
// undoing in log order reverses each mutation in the right order.
func (h *Handle[T]) UndoEvent(events []any) {
	for _, a := range events {
		ev := a.(event[T])
		switch ev.kind {
		case opInsertAfter:
			unlink(ev.node)
			h.st.size--
		case opErase:
			insertAfter(ev.before, ev.node)
			h.st.size++
		}
	}
}

// UpdateCC implements tm.Module: release whatever lock this
// transaction is holding.
func (h *Handle[T]) UpdateCC() { h.unlockAll() }

// ClearCC implements tm.Module.
func (h *Handle[T]) ClearCC() { h.unlockAll() }

func (h *Handle[T]) unlockAll() {
	switch h.held {
	case read:
		h.st.mu.RUnlock()
	case write:
		h.st.mu.Unlock()
	}
	h.held = none
}

// Finish implements tm.Module.
func (h *Handle[T]) Finish() {}
