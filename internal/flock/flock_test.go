//go:build unix

package flock_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dperrors "github.com/mrz1836/deskpilot/internal/errors"
	"github.com/mrz1836/deskpilot/internal/flock"
)

func openLockFile(t *testing.T, path string) *os.File {
	t.Helper()
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600) // #nosec G304 -- test code using safe temp dir
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestExclusive(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.lock")
	first := openLockFile(t, path)
	second := openLockFile(t, path)

	require.NoError(t, flock.Exclusive(first.Fd()))
	require.Error(t, flock.Exclusive(second.Fd()), "lock is held by another descriptor")

	require.NoError(t, flock.Unlock(first.Fd()))
	require.NoError(t, flock.Exclusive(second.Fd()))
	require.NoError(t, flock.Unlock(second.Fd()))
}

func TestAcquire(t *testing.T) {
	t.Parallel()

	t.Run("acquires and releases", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), ".lock")

		lock, err := flock.Acquire(context.Background(), path, time.Second)
		require.NoError(t, err)
		require.NoError(t, lock.Release())
		require.NoError(t, lock.Release(), "second release is a no-op")

		lock, err = flock.Acquire(context.Background(), path, time.Second)
		require.NoError(t, err)
		require.NoError(t, lock.Release())
	})

	t.Run("times out while held", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), ".lock")

		held, err := flock.Acquire(context.Background(), path, time.Second)
		require.NoError(t, err)
		defer func() { _ = held.Release() }()

		_, err = flock.Acquire(context.Background(), path, 120*time.Millisecond)
		require.ErrorIs(t, err, dperrors.ErrLockTimeout)
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := flock.Acquire(ctx, filepath.Join(t.TempDir(), ".lock"), time.Second)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("missing directory", func(t *testing.T) {
		t.Parallel()
		_, err := flock.Acquire(context.Background(), filepath.Join(t.TempDir(), "nope", ".lock"), time.Second)
		require.Error(t, err)
	})

	t.Run("nil lock", func(t *testing.T) {
		t.Parallel()
		var lock *flock.Lock
		assert.NoError(t, lock.Release())
	})
}
