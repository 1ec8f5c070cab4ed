package rwlockmap

import (
	"testing"

	"github.com/picotm-go/picotm/tm/txerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadersDoNotConflict(t *testing.T) {
	rl := New()
	a, b := NewState(), NewState()

	require.NoError(t, rl.TryRLock(a, 0, 10))
	require.NoError(t, rl.TryRLock(b, 0, 10))
}

func TestWriteConflictsWithRead(t *testing.T) {
	rl := New()
	a, b := NewState(), NewState()

	require.NoError(t, rl.TryRLock(a, 0, 10))
	err := rl.TryWLock(b, 0, 10)
	assert.True(t, txerr.IsConflict(err))
}

func TestWriteConflictsWithWrite(t *testing.T) {
	rl := New()
	a, b := NewState(), NewState()

	require.NoError(t, rl.TryWLock(a, 0, 10))
	err := rl.TryWLock(b, 0, 10)
	assert.True(t, txerr.IsConflict(err))
}

func TestUpgradeSucceedsWhenSoleReader(t *testing.T) {
	rl := New()
	a := NewState()

	require.NoError(t, rl.TryRLock(a, 5, 1))
	require.NoError(t, rl.TryWLock(a, 5, 1))
}

func TestUpgradeFailsWithOtherReader(t *testing.T) {
	rl := New()
	a, b := NewState(), NewState()

	require.NoError(t, rl.TryRLock(a, 5, 1))
	require.NoError(t, rl.TryRLock(b, 5, 1))
	err := rl.TryWLock(a, 5, 1)
	assert.True(t, txerr.IsConflict(err))
}

func TestUnlockAllIsSymmetric(t *testing.T) {
	rl := New()
	a, b := NewState(), NewState()

	require.NoError(t, rl.TryWLock(a, 0, 10))
	rl.UnlockAll(a)
	assert.Empty(t, a.order)

	// Now b can freely take the write lock a released.
	require.NoError(t, rl.TryWLock(b, 0, 10))
}

func TestRelockingAlreadyHeldSlotIsNoop(t *testing.T) {
	rl := New()
	a := NewState()

	require.NoError(t, rl.TryWLock(a, 0, 10))
	require.NoError(t, rl.TryWLock(a, 5, 3))
	assert.Len(t, a.order, 10)
}
