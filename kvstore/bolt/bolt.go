// Package bolt implements kvstore.Store on top of go.etcd.io/bbolt, for
// on-host deployments that have a local writable filesystem. Adapted from
// the teacher's db/bolt.DB helper, generalized to the kvstore.Store
// interface and the single-process lock semantics of the Python reference's
// OnPremKVStorage.
package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/sumologic/mongodbatlas-collector/kvstore"
)

var bucketName = []byte("collector")

// Store is a kvstore.Store backed by a single bbolt file.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the bbolt file at path and ensures the collector
// bucket exists.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("kvstore/bolt: opening %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kvstore/bolt: creating bucket: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(_ context.Context, key string, out any) (bool, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(key))
		if v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("kvstore/bolt: unmarshalling %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) Set(_ context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kvstore/bolt: marshalling %s: %w", key, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), data)
	})
}

func (s *Store) Has(_ context.Context, key string) (bool, error) {
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(bucketName).Get([]byte(key)) != nil
		return nil
	})
	return found, err
}

func (s *Store) Delete(_ context.Context, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
}

func (s *Store) AcquireLock(ctx context.Context, key string) (bool, error) {
	lk := kvstore.LockKey(key)
	taken, err := s.Has(ctx, lk)
	if err != nil {
		return false, err
	}
	if taken {
		return false, nil
	}
	rec := kvstore.LockRecord{LastLockedDate: float64(time.Now().Unix())}
	if err := s.Set(ctx, lk, rec); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) ReleaseLock(ctx context.Context, key string) error {
	return s.Delete(ctx, kvstore.LockKey(key))
}

func (s *Store) ReleaseLockIfExpired(ctx context.Context, key string, expiry time.Duration) error {
	lk := kvstore.LockKey(key)
	var rec kvstore.LockRecord
	found, err := s.Get(ctx, lk, &rec)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	age := time.Since(time.Unix(int64(rec.LastLockedDate), 0))
	if age > expiry {
		return s.Delete(ctx, lk)
	}
	return nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil && !errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return err
	}
	return nil
}
