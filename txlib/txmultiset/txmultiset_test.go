package txmultiset

import (
	"cmp"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/picotm-go/picotm/tm"
)

func intCmp(a, b int) int { return cmp.Compare(a, b) }

func TestInsertFindAndOrdering(t *testing.T) {
	st := NewState[int](intCmp)

	err := tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
		h := Use(tmTx, st)
		h.Insert(5)
		h.Insert(1)
		h.Insert(5)
		h.Insert(3)
		require.Equal(t, 4, h.Size())
		require.Equal(t, 2, h.Count(5))
		require.Equal(t, 5, h.LowerBound(5).Value())
		return nil
	})
	require.NoError(t, err)
}

func TestEraseLeafAndUndoOnAbort(t *testing.T) {
	st := NewState[int](intCmp)
	require.NoError(t, tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
		Use(tmTx, st).Insert(10)
		return nil
	}))

	err := tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
		h := Use(tmTx, st)
		n := h.Find(10)
		require.NotNil(t, n)
		h.Erase(n)
		require.True(t, h.Empty())
		return errDeliberate
	})
	require.Error(t, err)

	err = tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
		h := Use(tmTx, st)
		require.Equal(t, 1, h.Size())
		require.NotNil(t, h.Find(10))
		return nil
	})
	require.NoError(t, err)
}

func TestEraseTwoChildNodeSwapsWithSuccessor(t *testing.T) {
	st := NewState[int](intCmp)
	require.NoError(t, tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
		h := Use(tmTx, st)
		h.Insert(5)
		h.Insert(2)
		h.Insert(8)
		h.Insert(6)
		h.Insert(9)
		return nil
	}))

	err := tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
		h := Use(tmTx, st)
		n := h.Find(8)
		h.Erase(n)
		require.Equal(t, 4, h.Size())
		require.Nil(t, h.Find(8))
		require.NotNil(t, h.Find(9))
		require.NotNil(t, h.Find(6))
		return nil
	})
	require.NoError(t, err)
}

var errDeliberate = &deliberateError{}

type deliberateError struct{}

func (*deliberateError) Error() string { return "deliberate" }
