// Package lockfile implements the "<name>.lock" protocol used for every file
// twig rewrites wholesale (the index and refs). The lock file is created
// exclusively, filled with the new content and renamed over the target, so
// readers only ever observe the old or the new content.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	retryDelay = 5 * time.Millisecond
	waitLimit  = 2 * time.Second
)

// ErrTimeout is returned when another writer holds the lock for longer than
// the wait limit.
var ErrTimeout = errors.New("timeout waiting for lock")

// Lock is a held lock on a target file.
type Lock struct {
	target string
	path   string
	f      *os.File
	done   bool
}

// Acquire takes the lock for target, creating parent directories as needed.
// It retries while another process holds the lock.
func Acquire(target string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("lock %s: mkdir: %w", target, err)
	}
	lockPath := target + ".lock"
	deadline := time.Now().Add(waitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return &Lock{target: target, path: lockPath, f: f}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("lock %s: %w", target, err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("lock %s: %w", lockPath, ErrTimeout)
		}
		time.Sleep(retryDelay)
	}
}

// Write appends data to the pending content.
func (l *Lock) Write(data []byte) (int, error) {
	return l.f.Write(data)
}

// Commit flushes the pending content and renames it over the target,
// releasing the lock.
func (l *Lock) Commit() error {
	if l.done {
		return fmt.Errorf("lock %s: already released", l.target)
	}
	l.done = true
	if err := l.f.Sync(); err != nil {
		l.f.Close()
		os.Remove(l.path)
		return fmt.Errorf("lock %s: sync: %w", l.target, err)
	}
	if err := l.f.Close(); err != nil {
		os.Remove(l.path)
		return fmt.Errorf("lock %s: close: %w", l.target, err)
	}
	if err := os.Rename(l.path, l.target); err != nil {
		os.Remove(l.path)
		return fmt.Errorf("lock %s: rename: %w", l.target, err)
	}
	return nil
}

// Rollback discards the pending content and releases the lock. It is a
// no-op after Commit, so it can be deferred unconditionally.
func (l *Lock) Rollback() {
	if l.done {
		return
	}
	l.done = true
	l.f.Close()
	os.Remove(l.path)
}

// WriteFile replaces target with data under the lock.
func WriteFile(target string, data []byte) error {
	l, err := Acquire(target)
	if err != nil {
		return err
	}
	defer l.Rollback()
	if _, err := l.Write(data); err != nil {
		return fmt.Errorf("lock %s: write: %w", target, err)
	}
	return l.Commit()
}
