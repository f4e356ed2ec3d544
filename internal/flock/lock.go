package flock

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mrz1836/deskpilot/internal/constants"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
)

const lockFilePerm = 0o600

// Lock is a held exclusive lock on a lock file.
type Lock struct {
	file *os.File
}

// Acquire opens (creating if needed) the lock file at path and retries an
// exclusive lock until it succeeds, ctx ends or timeout elapses. The lock
// file's directory must exist.
func Acquire(ctx context.Context, path string, timeout time.Duration) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, lockFilePerm) //#nosec G302,G304 -- lock file path is built by the caller from a fixed name
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			_ = f.Close()
			return nil, err
		}
		if err := Exclusive(f.Fd()); err == nil {
			return &Lock{file: f}, nil
		}
		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, fmt.Errorf("failed to acquire lock %s: %w", path, dperrors.ErrLockTimeout)
		}

		select {
		case <-ctx.Done():
		case <-time.After(constants.LockRetryInterval):
		}
	}
}

// Release unlocks and closes the lock file. It is safe on a nil Lock.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlockErr := Unlock(l.file.Fd())
	closeErr := l.file.Close()
	l.file = nil
	if unlockErr != nil {
		return unlockErr
	}
	return closeErr
}
