//go:build unix

package flock

import "syscall"

// Exclusive takes an exclusive lock on fd without waiting.
func Exclusive(fd uintptr) error {
	return syscall.Flock(int(fd), syscall.LOCK_EX|syscall.LOCK_NB)
}

// Unlock drops the lock on fd.
func Unlock(fd uintptr) error {
	return syscall.Flock(int(fd), syscall.LOCK_UN)
}
