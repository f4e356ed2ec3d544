// Package flock provides exclusive file locks for the on-disk stores.
//
// Exclusive and Unlock are thin non-blocking wrappers over flock(2) on Unix
// and LockFileEx on Windows. Acquire layers a polling wait with a deadline on
// top of them:
//
//	lock, err := flock.Acquire(ctx, filepath.Join(dir, ".lock"), 5*time.Second)
//	if err != nil {
//	    return err
//	}
//	defer lock.Release()
package flock
