package fd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefTransitionsUnusedToInuse(t *testing.T) {
	tab := NewTable(16)
	slot := tab.Slot(3)

	assert.Equal(t, Unused, slot.State())
	v := slot.Ref(7, 0)
	assert.Equal(t, Inuse, slot.State())
	ofdIdx, ver, state := slot.RefState()
	assert.Equal(t, 7, ofdIdx)
	assert.Equal(t, v, ver)
	assert.Equal(t, Inuse, state)
}

func TestValidateDetectsReopen(t *testing.T) {
	tab := NewTable(16)
	slot := tab.Slot(3)

	v := slot.Ref(7, 0)
	require.NoError(t, slot.Validate(v))

	slot.SignalClose()
	slot.Close()
	slot.Ref(9, 0) // reopened with a new OFD, version bumped

	assert.Error(t, slot.Validate(v))
}

func TestSignalCloseMakesValidateConflict(t *testing.T) {
	tab := NewTable(16)
	slot := tab.Slot(3)
	v := slot.Ref(7, 0)

	slot.SignalClose()
	assert.Error(t, slot.Validate(v))
}
