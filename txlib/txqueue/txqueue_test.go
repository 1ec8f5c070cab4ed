package txqueue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/picotm-go/picotm/tm"
)

func TestPushThenPopWithinSameTransaction(t *testing.T) {
	st := NewState[string]()

	err := tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
		h := Use(tmTx, st)
		h.Push("a")
		h.Push("b")
		v, ok := h.Pop()
		require.True(t, ok)
		require.Equal(t, "a", v)
		return nil
	})
	require.NoError(t, err)

	err = tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
		h := Use(tmTx, st)
		require.Equal(t, 1, h.Size())
		v, ok := h.Pop()
		require.True(t, ok)
		require.Equal(t, "b", v)
		return nil
	})
	require.NoError(t, err)
}

func TestPushIsInvisibleUntilCommit(t *testing.T) {
	st := NewState[int]()

	committed := make(chan struct{})
	proceed := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
			h := Use(tmTx, st)
			h.Push(42)
			close(committed)
			<-proceed
			return nil
		})
	}()

	<-committed
	err := tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
		h := Use(tmTx, st)
		require.True(t, h.Empty())
		return nil
	})
	require.NoError(t, err)

	close(proceed)
	require.NoError(t, <-done)
}

func TestPushPopCancelWithinSameTransactionLeavesNothing(t *testing.T) {
	st := NewState[int]()

	err := tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
		h := Use(tmTx, st)
		h.Push(1)
		_, _ = h.Pop()
		return nil
	})
	require.NoError(t, err)

	err = tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
		h := Use(tmTx, st)
		require.True(t, h.Empty())
		return nil
	})
	require.NoError(t, err)
}
