//go:build !unix

package kv

import (
	"fmt"
	"os"
)

// fileLock falls back to a best-effort exclusive-create lock file on
// non-unix targets, where golang.org/x/sys/unix's flock is unavailable.
type fileLock struct {
	f *os.File
}

func acquireFileLock(path string) (fileLock, error) {
	f, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		return fileLock{}, fmt.Errorf("lock held by another process: %w", err)
	}
	return fileLock{f: f}, nil
}

func (l fileLock) unlock() error {
	if l.f == nil {
		return nil
	}
	name := l.f.Name()
	err := l.f.Close()
	_ = os.Remove(name)
	return err
}
