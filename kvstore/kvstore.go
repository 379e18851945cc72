// Package kvstore defines the pluggable key-value storage contract used to
// persist stream cursors, discovery caches and the single-instance run
// lock. It is grounded on the KeyValueStorage abstract base from the
// Python reference implementation, generalized to a Go interface with
// three concrete backends: kvstore/bolt, kvstore/couchdb and kvstore/redis.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is an error value for a missing key. The backends in this
// module do not return it: Get reports an absent key as ok=false with a
// nil error.
var ErrNotFound = errors.New("kvstore: key not found")

// LockDateKey is the field name under which a lock's acquisition time is
// stored; it matches LockRecord.LastLockedDate's JSON tag, which is what
// the backends' ReleaseLockIfExpired reads to decide whether a lock is
// stale.
const LockDateKey = "last_locked_date"

// Store is the contract every backend (bolt, couchdb, redis) implements.
// Values are JSON-marshaled by the backend; out must be a pointer.
type Store interface {
	// Get reads key into out, reporting ok=false if the key is absent.
	Get(ctx context.Context, key string, out any) (ok bool, err error)
	// Set writes value under key, overwriting any existing value.
	Set(ctx context.Context, key string, value any) error
	// Has reports whether key exists.
	Has(ctx context.Context, key string) (bool, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// AcquireLock attempts to take an exclusive, non-blocking lock on key.
	// It returns true if the lock was acquired by this call.
	AcquireLock(ctx context.Context, key string) (bool, error)
	// ReleaseLock releases a lock previously acquired by AcquireLock.
	ReleaseLock(ctx context.Context, key string) error
	// ReleaseLockIfExpired force-releases key's lock if it has been held
	// for longer than expiry, guarding against a crashed holder wedging
	// the single-instance lock forever.
	ReleaseLockIfExpired(ctx context.Context, key string, expiry time.Duration) error
	// Close releases any resources (connections, file handles) held by
	// the backend.
	Close() error
}

// LockRecord is the value stored under a lock key while it is held.
type LockRecord struct {
	LastLockedDate float64 `json:"last_locked_date"`
	Holder         string  `json:"holder,omitempty"`
}

// lockKey mirrors KeyValueStorage._get_lock_key: locks live in the same
// keyspace as data, namespaced by a fixed suffix.
func lockKey(key string) string {
	return key + "_lock"
}

// LockKey exposes lockKey to backend implementations in sibling packages.
func LockKey(key string) string {
	return lockKey(key)
}
