package txstack

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/picotm-go/picotm/tm"
)

func TestPushThenPopIsLIFO(t *testing.T) {
	st := NewState[string]()

	err := tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
		h := Use(tmTx, st)
		h.Push("a")
		h.Push("b")
		v, ok := h.Pop()
		require.True(t, ok)
		require.Equal(t, "b", v)
		return nil
	})
	require.NoError(t, err)

	err = tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
		h := Use(tmTx, st)
		require.Equal(t, 1, h.Size())
		v, ok := h.Pop()
		require.True(t, ok)
		require.Equal(t, "a", v)
		return nil
	})
	require.NoError(t, err)
}

func TestLocalTopTakesPriorityOverSharedTop(t *testing.T) {
	st := NewState[string]()
	require.NoError(t, tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
		Use(tmTx, st).Push("shared-bottom")
		return nil
	}))

	err := tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
		h := Use(tmTx, st)
		h.Push("local-top")
		v, ok := h.Pop()
		require.True(t, ok)
		require.Equal(t, "local-top", v)
		v, ok = h.Pop()
		require.True(t, ok)
		require.Equal(t, "shared-bottom", v)
		return nil
	})
	require.NoError(t, err)
}
