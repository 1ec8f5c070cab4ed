package ofd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindOrInstallReusesSameID(t *testing.T) {
	tab := NewTable()
	id := ID{Dev: 1, Ino: 2, Fildes: 3}

	idx1, o1, err := tab.FindOrInstall(id, Regular, true)
	require.NoError(t, err)
	idx2, o2, err := tab.FindOrInstall(id, Regular, true)
	require.NoError(t, err)

	assert.Equal(t, idx1, idx2)
	assert.Same(t, o1, o2)
}

func TestFindOrInstallRejectsAliasedFildes(t *testing.T) {
	tab := NewTable()
	id1 := ID{Dev: 1, Ino: 2, Fildes: 3}
	id2 := ID{Dev: 1, Ino: 2, Fildes: 4}

	_, _, err := tab.FindOrInstall(id1, Regular, true)
	require.NoError(t, err)

	_, _, err = tab.FindOrInstall(id2, Regular, false)
	assert.Error(t, err)
}

func TestDefaultCCModes(t *testing.T) {
	tab := NewTable()
	assert.Equal(t, TS, tab.TypeCCMode(Regular))
	assert.Equal(t, NoUndo, tab.TypeCCMode(Socket))
}

func TestUnrefFreesSlot(t *testing.T) {
	tab := NewTable()
	id := ID{Dev: 1, Ino: 2, Fildes: 3}
	idx, _, err := tab.FindOrInstall(id, Regular, true)
	require.NoError(t, err)

	tab.Unref(idx)
	assert.Nil(t, tab.Get(idx))

	// The slot should be reusable for a new OFD.
	idx2, o2, err := tab.FindOrInstall(ID{Dev: 9, Ino: 9, Fildes: 9}, Regular, true)
	require.NoError(t, err)
	assert.NotNil(t, o2)
	_ = idx2
}
