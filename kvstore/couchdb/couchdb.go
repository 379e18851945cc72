// Package couchdb implements kvstore.Store on CouchDB via kivik, for
// serverless deployments that need a shared document store instead of a
// local file. Adapted from the teacher's db.CouchDBService, trimmed down
// from full document-history tracking to the plain get/set/delete/lock
// contract kvstore.Store requires.
package couchdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	kivik "github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/sumologic/mongodbatlas-collector/kvstore"
)

// Store is a kvstore.Store backed by a single CouchDB database.
type Store struct {
	client *kivik.Client
	db     *kivik.DB
}

// Open connects to CouchDB at url and ensures database dbName exists.
func Open(ctx context.Context, url, dbName string) (*Store, error) {
	client, err := kivik.New("couch", url)
	if err != nil {
		return nil, fmt.Errorf("kvstore/couchdb: connecting: %w", err)
	}

	exists, err := client.DBExists(ctx, dbName)
	if err != nil {
		return nil, fmt.Errorf("kvstore/couchdb: checking database: %w", err)
	}
	if !exists {
		if err := client.CreateDB(ctx, dbName); err != nil {
			return nil, fmt.Errorf("kvstore/couchdb: creating database: %w", err)
		}
	}

	return &Store{client: client, db: client.DB(dbName)}, nil
}

// document wraps a stored value with CouchDB's id/rev fields so updates and
// deletes can carry the current revision.
type document struct {
	ID    string `json:"_id"`
	Rev   string `json:"_rev,omitempty"`
	Value any    `json:"value"`
}

func (s *Store) Get(ctx context.Context, key string, out any) (bool, error) {
	row := s.db.Get(ctx, key)
	if row.Err() != nil {
		if kivik.HTTPStatus(row.Err()) == 404 {
			return false, nil
		}
		return false, fmt.Errorf("kvstore/couchdb: get %s: %w", key, row.Err())
	}
	var doc struct {
		Value any `json:"value"`
	}
	if err := row.ScanDoc(&doc); err != nil {
		return false, fmt.Errorf("kvstore/couchdb: scanning %s: %w", key, err)
	}
	if err := rescan(doc.Value, out); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) currentRev(ctx context.Context, key string) string {
	row := s.db.Get(ctx, key)
	if row.Err() != nil {
		return ""
	}
	var doc document
	if err := row.ScanDoc(&doc); err != nil {
		return ""
	}
	return doc.Rev
}

func (s *Store) Set(ctx context.Context, key string, value any) error {
	doc := document{ID: key, Rev: s.currentRev(ctx, key), Value: value}
	if _, err := s.db.Put(ctx, key, doc); err != nil {
		return fmt.Errorf("kvstore/couchdb: put %s: %w", key, err)
	}
	return nil
}

func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	row := s.db.Get(ctx, key)
	if row.Err() != nil {
		if kivik.HTTPStatus(row.Err()) == 404 {
			return false, nil
		}
		return false, fmt.Errorf("kvstore/couchdb: has %s: %w", key, row.Err())
	}
	return true, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	rev := s.currentRev(ctx, key)
	if rev == "" {
		return nil
	}
	if _, err := s.db.Delete(ctx, key, rev); err != nil {
		return fmt.Errorf("kvstore/couchdb: delete %s: %w", key, err)
	}
	return nil
}

// AcquireLock checks-then-sets rather than performing a true
// compare-and-swap, but stays race-safe because the Put below goes out
// with no _rev: CouchDB rejects that as a conflict (409) if the document
// was created by a concurrent racer between the Has check and this Put,
// so two concurrent callers can never both believe they hold the lock.
// The conflict is translated into a clean "not acquired" result rather
// than surfacing the raw 409 to the caller.
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
	if _, err := s.db.Put(ctx, lk, document{ID: lk, Value: rec}); err != nil {
		if kivik.HTTPStatus(err) == http.StatusConflict {
			return false, nil
		}
		return false, fmt.Errorf("kvstore/couchdb: put %s: %w", lk, err)
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
	return s.client.Close(context.Background())
}

// rescan round-trips a decoded any value back through JSON so it can be
// unmarshaled into the caller's concrete out type, since kivik's ScanDoc
// decodes nested values as map[string]interface{}.
func rescan(value any, out any) error {
	enc, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kvstore/couchdb: re-encoding value: %w", err)
	}
	if err := json.Unmarshal(enc, out); err != nil {
		return fmt.Errorf("kvstore/couchdb: decoding value: %w", err)
	}
	return nil
}
