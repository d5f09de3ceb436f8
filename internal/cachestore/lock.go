package cachestore

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 10 * time.Millisecond

// fileLock is an advisory reader/writer lock on a sidecar file. The data file
// itself is replaced by rename on every write, so it cannot carry the lock.
// Each acquisition opens its own descriptor, which makes two handles in the
// same process exclude each other the same way two processes do.
type fileLock struct {
	path string
}

func (l fileLock) shared(ctx context.Context) (func(), error) {
	fl := flock.New(l.path)
	ok, err := fl.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire shared lock on %s: %w", l.path, err)
	}
	if !ok {
		return nil, fmt.Errorf("failed to acquire shared lock on %s", l.path)
	}
	return func() { _ = fl.Unlock() }, nil
}

func (l fileLock) exclusive(ctx context.Context) (func(), error) {
	fl := flock.New(l.path)
	ok, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire exclusive lock on %s: %w", l.path, err)
	}
	if !ok {
		return nil, fmt.Errorf("failed to acquire exclusive lock on %s", l.path)
	}
	return func() { _ = fl.Unlock() }, nil
}
