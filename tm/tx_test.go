package tm

import (
	"context"
	"testing"

	"github.com/picotm-go/picotm/tm/txerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModule struct {
	applied []any
	undone  []any
	valid   error
	locked  bool
	cleared bool
	updated bool
	finished bool
}

func (m *fakeModule) Lock()                   { m.locked = true }
func (m *fakeModule) Validate(bool) error     { return m.valid }
func (m *fakeModule) ApplyEvent(e []any) error { m.applied = append(m.applied, e...); return nil }
func (m *fakeModule) UndoEvent(e []any)        { m.undone = append(m.undone, e...) }
func (m *fakeModule) UpdateCC()                { m.updated = true }
func (m *fakeModule) ClearCC()                 { m.cleared = true }
func (m *fakeModule) Finish()                  { m.finished = true }

type keyA struct{}
type keyB struct{}

func TestCommitRunsFullProtocol(t *testing.T) {
	var seen *fakeModule
	err := Begin(context.Background(), func(tx *Tx) error {
		m := tx.Use(keyA{}, func() Module { return &fakeModule{} }).(*fakeModule)
		seen = m
		tx.LogEvent(keyA{}, "x")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, seen.locked)
	assert.True(t, seen.updated)
	assert.True(t, seen.finished)
	assert.False(t, seen.cleared)
	assert.Equal(t, []any{"x"}, seen.applied)
}

func TestBodyErrorAbortsWithoutRetry(t *testing.T) {
	var seen *fakeModule
	sysErr := &txerr.SystemError{Op: "write"}
	err := Begin(context.Background(), func(tx *Tx) error {
		m := tx.Use(keyA{}, func() Module { return &fakeModule{} }).(*fakeModule)
		seen = m
		tx.LogEvent(keyA{}, "x")
		return sysErr
	})
	assert.Error(t, err)
	assert.True(t, seen.cleared)
	assert.Equal(t, []any{"x"}, seen.undone)
}

func TestConflictRetriesWholeTransaction(t *testing.T) {
	attempts := 0
	err := Begin(context.Background(), func(tx *Tx) error {
		attempts++
		tx.Use(keyA{}, func() Module {
			return &fakeModule{valid: conflictOnce(&attempts)}
		})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func conflictOnce(attempts *int) error {
	if *attempts == 1 {
		return &txerr.ConflictError{}
	}
	return nil
}

func TestMultiModuleEventRunsGroupByModule(t *testing.T) {
	var a, b *fakeModule
	err := Begin(context.Background(), func(tx *Tx) error {
		a = tx.Use(keyA{}, func() Module { return &fakeModule{} }).(*fakeModule)
		b = tx.Use(keyB{}, func() Module { return &fakeModule{} }).(*fakeModule)
		tx.LogEvent(keyA{}, 1)
		tx.LogEvent(keyA{}, 2)
		tx.LogEvent(keyB{}, "x")
		tx.LogEvent(keyA{}, 3)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2, 3}, a.applied)
	assert.Equal(t, []any{"x"}, b.applied)
}

func TestBecomeIrrevocableBlocksOtherTransactions(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		_ = Begin(context.Background(), func(tx *Tx) error {
			tx.BecomeIrrevocable()
			close(entered)
			<-release
			return nil
		})
		close(done)
	}()

	<-entered
	started := make(chan struct{})
	go func() {
		_ = Begin(context.Background(), func(tx *Tx) error {
			close(started)
			return nil
		})
	}()

	select {
	case <-started:
		t.Fatal("second transaction started while first was irrevocable")
	default:
	}

	close(release)
	<-done
	<-started
}
