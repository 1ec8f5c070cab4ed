package cmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotValidatesAgainstUnchangedGlobal(t *testing.T) {
	gc := New()
	ss := NewSnapshot()

	ss.GetRegion(gc, 100, 50)
	assert.True(t, ss.ValidateRegion(gc, 100, 50))
}

func TestSnapshotDetectsConcurrentCommit(t *testing.T) {
	gc := New()
	ss := NewSnapshot()

	ss.GetRegion(gc, 100, 50)
	gc.IncRegion(120, 10) // a concurrent transaction committed a write overlapping our region

	assert.False(t, ss.ValidateRegion(gc, 100, 50))
}

func TestSnapshotIgnoresUnrelatedRegion(t *testing.T) {
	gc := New()
	ss := NewSnapshot()

	ss.GetRegion(gc, 100, 50)
	gc.IncRegion(10000, 10) // far away, different page

	assert.True(t, ss.ValidateRegion(gc, 100, 50))
}

func TestSnapshotIsFrozenOnceFilled(t *testing.T) {
	gc := New()
	ss := NewSnapshot()

	ss.GetRegion(gc, 0, 8)
	gc.IncRegion(0, 8)
	// Re-requesting the same region must not refresh it: the snapshot
	// must still see the old value and flag a conflict.
	ss.GetRegion(gc, 0, 8)
	assert.False(t, ss.ValidateRegion(gc, 0, 8))
}

func TestIncRegionAcrossPageBoundary(t *testing.T) {
	gc := New()
	off := uint64(500)
	length := uint64(40) // crosses the 512-entry page boundary

	gc.IncRegion(off, length)

	assert.EqualValues(t, 1, gc.Get(510))
	assert.EqualValues(t, 1, gc.Get(520))
	assert.EqualValues(t, 0, gc.Get(900))
}
