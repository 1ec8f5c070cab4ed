package txfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/picotm-go/picotm/tm"
)

func TestMkdirRollsBackOnAbort(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub")

	err := tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
		if err := Mkdir(tmTx, dir, 0o755); err != nil {
			return err
		}
		return &abortError{}
	})
	require.Error(t, err)

	_, statErr := os.Stat(dir)
	require.True(t, os.IsNotExist(statErr))
}

func TestMkdirSurvivesCommit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub")

	err := tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
		return Mkdir(tmTx, dir, 0o755)
	})
	require.NoError(t, err)

	st, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, st.IsDir())
}

func TestChmodRestoresOldModeOnAbort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	err := tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
		if err := Chmod(tmTx, path, 0o600); err != nil {
			return err
		}
		return &abortError{}
	})
	require.Error(t, err)

	st, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o644), st.Mode().Perm())
}

func TestChdirDoesNotTouchRealCwdUntilCommit(t *testing.T) {
	dir := t.TempDir()
	before, err := unix.Getwd()
	require.NoError(t, err)

	var sawInsideTx string
	err = tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
		if err := Chdir(tmTx, dir); err != nil {
			return err
		}
		sawInsideTx, err = Getcwd(tmTx)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, dir, sawInsideTx)

	after, err := unix.Getwd()
	require.NoError(t, err)
	require.Equal(t, dir, after)
	require.NoError(t, unix.Chdir(before))
}

type abortError struct{}

func (*abortError) Error() string { return "deliberate abort for test" }
