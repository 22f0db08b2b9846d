// Package memlocker provides an in-process per-uid locking mechanism.
//
// When multiple requests are attempting to access the same upload, whether it
// be by reading or writing, a synchronization mechanism is required to
// prevent data corruption, especially to ensure correct offset values and the
// proper order of chunks inside a single upload.
//
// MemLocker persists locks in memory and therefore offers a simple and cheap
// mechanism. Locks only exist as long as this object is kept in reference and
// are erased if the program exits, which makes it the right default for a
// single-node server but unsuitable for sharing one storage deployment across
// several server processes (see pkg/redislocker for that case).
package memlocker

import (
	"context"
	"sync"

	"github.com/mongotus/mongotus/pkg/handler"
)

// MemLocker persists locks in memory, keyed by upload id.
type MemLocker struct {
	locks map[string]lockEntry
	mutex sync.RWMutex
}

type lockEntry struct {
	lockReleased   chan struct{}
	requestRelease func()
}

// New creates a new in-memory locker.
func New() *MemLocker {
	return &MemLocker{
		locks: make(map[string]lockEntry),
	}
}

// UseIn adds this locker to the passed composer.
func (locker *MemLocker) UseIn(composer *handler.StoreComposer) {
	composer.UseLocker(locker)
}

func (locker *MemLocker) NewLock(id string) (handler.Lock, error) {
	return memLock{locker, id}, nil
}

type memLock struct {
	locker *MemLocker
	id     string
}

// Lock tries to obtain the exclusive lock.
func (lock memLock) Lock(ctx context.Context, requestRelease func()) error {
	lock.locker.mutex.RLock()
	entry, ok := lock.locker.locks[lock.id]
	lock.locker.mutex.RUnlock()

requestRelease:
	if ok {
		entry.requestRelease()
		select {
		case <-ctx.Done():
			return handler.ErrLockTimeout
		case <-entry.lockReleased:
		}
	}

	lock.locker.mutex.Lock()
	// Check that the lock has not already been created in the meantime
	entry, ok = lock.locker.locks[lock.id]
	if ok {
		// Lock has been created in the meantime, so we must wait again until it is free
		lock.locker.mutex.Unlock()
		goto requestRelease
	}

	// No lock exists, so we can create it
	entry = lockEntry{
		lockReleased:   make(chan struct{}),
		requestRelease: requestRelease,
	}

	lock.locker.locks[lock.id] = entry
	lock.locker.mutex.Unlock()

	return nil
}

// Unlock releases a lock. If no such lock exists, no error will be returned.
func (lock memLock) Unlock() error {
	lock.locker.mutex.Lock()

	lockReleased := lock.locker.locks[lock.id].lockReleased

	// Delete the lock entry entirely
	delete(lock.locker.locks, lock.id)

	lock.locker.mutex.Unlock()

	close(lockReleased)

	return nil
}
