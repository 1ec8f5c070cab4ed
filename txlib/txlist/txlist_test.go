package txlist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/picotm-go/picotm/tm"
)

func collect(h *Handle[int]) []int {
	var out []int
	for n := h.st.head.next; n != &h.st.head; n = n.next {
		out = append(out, n.Value)
	}
	return out
}

func TestPushBackAndErase(t *testing.T) {
	st := NewState[int]()

	err := tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
		h := Use(tmTx, st)
		h.PushBack(1)
		n2 := h.PushBack(2)
		h.PushBack(3)
		h.Erase(n2)
		return nil
	})
	require.NoError(t, err)

	err = tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
		h := Use(tmTx, st)
		require.Equal(t, []int{1, 3}, collect(h))
		return nil
	})
	require.NoError(t, err)
}

func TestMutationsRollBackOnAbort(t *testing.T) {
	st := NewState[int]()

	err := tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
		h := Use(tmTx, st)
		h.PushBack(1)
		h.PushBack(2)
		return errDeliberate
	})
	require.Error(t, err)

	err = tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
		h := Use(tmTx, st)
		require.True(t, h.Empty())
		return nil
	})
	require.NoError(t, err)
}

var errDeliberate = &deliberateError{}

type deliberateError struct{}

func (*deliberateError) Error() string { return "deliberate" }
