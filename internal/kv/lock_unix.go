//go:build unix

package kv

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// fileLock is an exclusive OS file lock held for a DiskKV's lifetime
// (spec.md C4/§5). On unix this is a real flock(2) via golang.org/x/sys,
// promoted from the teacher's indirect dependency graph to a direct one.
type fileLock struct {
	f *os.File
}

func acquireFileLock(path string) (fileLock, error) {
	f, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fileLock{}, fmt.Errorf("open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		return fileLock{}, fmt.Errorf("lock held by another process: %w", err)
	}
	return fileLock{f: f}, nil
}

func (l fileLock) unlock() error {
	if l.f == nil {
		return nil
	}
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	return l.f.Close()
}
