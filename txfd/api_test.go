package txfd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/picotm-go/picotm/tm"
	"github.com/stretchr/testify/require"
)

func tempPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "data")
}

func TestOpenWriteReadCloseRoundTrip(t *testing.T) {
	path := tempPath(t)

	err := tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
		fildes, err := Open(tmTx, path, unix.O_RDWR|unix.O_CREAT, 0o644)
		if err != nil {
			return err
		}
		if _, err := Write(tmTx, fildes, []byte("hello")); err != nil {
			return err
		}
		return Close(tmTx, fildes)
	})
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

func TestWriteIsInvisibleUntilCommit(t *testing.T) {
	path := tempPath(t)
	require.NoError(t, os.WriteFile(path, []byte("0000000000"), 0o644))

	err := tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
		fildes, err := Open(tmTx, path, unix.O_RDWR, 0)
		if err != nil {
			return err
		}
		defer Close(tmTx, fildes)

		if _, err := Pwrite(tmTx, fildes, []byte("AAAA"), 0); err != nil {
			return err
		}

		onDisk, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		require.Equal(t, "0000000000", string(onDisk))

		buf := make([]byte, 4)
		n, err := Pread(tmTx, fildes, buf, 0)
		if err != nil {
			return err
		}
		require.Equal(t, "AAAA", string(buf[:n]))
		return nil
	})
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "AAAA000000", string(got))
}

func TestConcurrentWritersToDisjointRegionsBothCommit(t *testing.T) {
	path := tempPath(t)
	require.NoError(t, os.WriteFile(path, make([]byte, 8), 0o644))

	done := make(chan error, 2)
	for _, pair := range []struct {
		off  int64
		data []byte
	}{
		{0, []byte("AAAA")},
		{4, []byte("BBBB")},
	} {
		pair := pair
		go func() {
			done <- tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
				fildes, err := Open(tmTx, path, unix.O_RDWR, 0)
				if err != nil {
					return err
				}
				defer Close(tmTx, fildes)
				_, err = Pwrite(tmTx, fildes, pair.data, pair.off)
				return err
			})
		}()
	}
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "AAAABBBB", string(got))
}

func TestPipeRoundTrip(t *testing.T) {
	err := tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
		r, w, err := Pipe(tmTx)
		if err != nil {
			return err
		}
		defer Close(tmTx, r)
		defer Close(tmTx, w)

		if _, err := Write(tmTx, w, []byte("hi")); err != nil {
			return err
		}
		buf := make([]byte, 2)
		_, err = Read(tmTx, r, buf)
		return err
	})
	require.NoError(t, err)
}

func TestOpenRollsBackCreatedFileOnAbort(t *testing.T) {
	path := tempPath(t)
	sentinel := require.New(t)

	err := tm.Begin(context.Background(), func(tmTx *tm.Tx) error {
		fildes, err := Open(tmTx, path, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL, 0o644)
		if err != nil {
			return err
		}
		_ = fildes
		return errAbortSentinel
	})
	sentinel.Error(err)

	_, statErr := os.Stat(path)
	sentinel.True(os.IsNotExist(statErr))
}

var errAbortSentinel = &abortError{}

type abortError struct{}

func (*abortError) Error() string { return "deliberate abort for test" }
