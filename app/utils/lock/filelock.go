// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package lock provides a file-based lock used to serialize overlapping
// check runs around the history load/save pair. Acquisition is atomic via
// O_EXCL creation; locks left behind by a crashed run are detected through
// their timestamp and removed.
package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const lockFilePermissions = 0o644

var (
	ErrLockAcquire          = errors.New("failed to acquire lock")
	ErrLockLost             = errors.New("lock lost")
	ErrLockContextCancelled = errors.New("context was cancelled while obtaining the lock")
	ErrLockCorrupt          = errors.New("corrupt lock file")
	ErrMaxRetryExceeded     = errors.New("failed to acquire lock, max retries exceeded")

	// A scheduled check normally finishes within seconds; a lock untouched
	// for several minutes belongs to a dead run.
	DefaultStaleTimeout    = 5 * time.Minute
	DefaultRefreshInterval = 10 * time.Second
	DefaultRetryInterval   = 2 * time.Second
	DefaultMaxRetry        = 3
)

// FileLock guards the history snapshot against concurrent runs. The holder
// refreshes the lock timestamp in the background so a healthy long run is
// never mistaken for a stale one.
type FileLock struct {
	filepath        string
	staleTimeout    time.Duration
	refreshInterval time.Duration
	retryInterval   time.Duration
	maxRetry        int

	hostname string
	pid      int

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	wg     sync.WaitGroup
}

type FileLockOption func(fl *FileLock)

func WithStaleTimeout(timeout time.Duration) FileLockOption {
	return func(fl *FileLock) {
		fl.staleTimeout = timeout
	}
}

func WithRetryInterval(interval time.Duration) FileLockOption {
	return func(fl *FileLock) {
		fl.retryInterval = interval
	}
}

func WithRefreshInterval(interval time.Duration) FileLockOption {
	return func(fl *FileLock) {
		fl.refreshInterval = interval
	}
}

func WithMaxRetry(retry int) FileLockOption {
	return func(fl *FileLock) {
		fl.maxRetry = retry
	}
}

type lockContent struct {
	Hostname  string    `json:"hostname"`
	PID       int       `json:"pid"`
	Timestamp time.Time `json:"timestamp"`
}

func NewFileLock(ctx context.Context, filepath string, opts ...FileLockOption) *FileLock {
	hostname, _ := os.Hostname()

	fl := &FileLock{
		filepath:        filepath,
		staleTimeout:    DefaultStaleTimeout,
		refreshInterval: DefaultRefreshInterval,
		retryInterval:   DefaultRetryInterval,
		maxRetry:        DefaultMaxRetry,
		hostname:        hostname,
		pid:             os.Getpid(),
		ctx:             ctx,
	}
	for _, opt := range opts {
		opt(fl)
	}
	return fl
}

// Acquire obtains the lock, removing stale locks and retrying up to the
// configured limit. On success a background goroutine keeps the lock fresh
// until Release.
func (fl *FileLock) Acquire() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if _, err := os.ReadDir(filepath.Dir(fl.filepath)); os.IsNotExist(err) {
		return err
	}

	retry := 0
	for {
		select {
		case <-fl.ctx.Done():
			return fmt.Errorf("%w: context cancelled", ErrLockContextCancelled)
		default:
			if retry > fl.maxRetry {
				return ErrMaxRetryExceeded
			}

			file, err := os.OpenFile(fl.filepath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, lockFilePermissions)
			if err == nil {
				if err2 := fl.writeLock(file); err2 != nil {
					file.Close()
					os.Remove(fl.filepath)
					return err2
				}
				file.Close()

				ctx, cancel := context.WithCancel(fl.ctx)
				fl.cancel = cancel
				fl.wg.Add(1)
				go func() {
					defer fl.wg.Done()
					fl.refreshLock(ctx)
				}()
				return nil
			}

			current, err := fl.readLockContent()
			if err != nil {
				if os.IsNotExist(err) {
					// lock was removed between attempts, retry
					continue
				}
				if errors.Is(err, ErrLockCorrupt) {
					// treat a corrupt lock as held and wait it out
					retry++
					time.Sleep(fl.retryInterval)
					continue
				}
				return fmt.Errorf("%w: %v", ErrLockAcquire, err)
			}

			if time.Since(current.Timestamp) < fl.staleTimeout {
				retry++
				time.Sleep(fl.retryInterval)
				continue
			}

			// stale lock, remove and try again
			if err := os.Remove(fl.filepath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("%w: failed to remove stale lock: %v", ErrLockAcquire, err)
			}
		}
	}
}

// Release stops the refresh goroutine and removes the lock file. Safe to
// call more than once.
func (fl *FileLock) Release() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.cancel != nil {
		fl.cancel()
		fl.cancel = nil
		fl.wg.Wait()
	}
	return fl.releaseFile()
}

func (fl *FileLock) releaseFile() error {
	if err := os.Remove(fl.filepath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

func (fl *FileLock) refreshLock(ctx context.Context) {
	ticker := time.NewTicker(fl.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := fl.updateLock(); err != nil {
				_ = fl.releaseFile()
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (fl *FileLock) updateLock() error {
	tempFile, err := os.CreateTemp(filepath.Dir(fl.filepath), "lock-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tempFile.Name())

	if err = fl.writeLock(tempFile); err != nil {
		return fmt.Errorf("failed to write temp lock: %w", err)
	}
	tempFile.Close()

	current, err := fl.readLockContent()
	if err != nil {
		return ErrLockLost
	}
	if current.Hostname != fl.hostname || current.PID != fl.pid {
		return ErrLockLost
	}

	if err := os.Rename(tempFile.Name(), fl.filepath); err != nil {
		return fmt.Errorf("failed to atomically update lock: %w", err)
	}
	return nil
}

func (fl *FileLock) readLockContent() (*lockContent, error) {
	data, err := os.ReadFile(fl.filepath)
	if err != nil {
		return nil, err
	}

	var lc lockContent
	if err := json.Unmarshal(data, &lc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLockCorrupt, err)
	}
	return &lc, nil
}

func (fl *FileLock) writeLock(f *os.File) error {
	data, err := json.Marshal(lockContent{
		Hostname:  fl.hostname,
		PID:       fl.pid,
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode lock content to json: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write lock file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync lock file: %w", err)
	}
	return nil
}
