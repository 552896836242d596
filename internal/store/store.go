// File: internal/store/store.go
package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketSnapshots = []byte("snapshots")

// record is the on-disk shape of one saved payload.
type record struct {
	Payload  json.RawMessage `json:"payload"`
	SyncedAt time.Time       `json:"synced_at"`
}

// SnapshotStore persists the last good payload per resource key so the server
// can serve data immediately after a restart, before the first upstream
// round-trip completes. It is a warm-start seed only: sync clients keep their
// own in-memory cache and overwrite the stored copy on every success.
type SnapshotStore struct {
	db *bolt.DB
}

func Open(path string) (*SnapshotStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSnapshots)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init snapshot bucket: %w", err)
	}
	return &SnapshotStore{db: db}, nil
}

func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// Save overwrites the stored payload for key.
func (s *SnapshotStore) Save(key string, payload json.RawMessage, syncedAt time.Time) error {
	data, err := json.Marshal(record{Payload: payload, SyncedAt: syncedAt})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Put([]byte(key), data)
	})
}

// Load returns the stored payload for key, if any.
func (s *SnapshotStore) Load(key string) (payload json.RawMessage, syncedAt time.Time, ok bool, err error) {
	var rec record
	err = s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSnapshots).Get([]byte(key))
		if data == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(data, &rec)
	})
	if err != nil || !ok {
		return nil, time.Time{}, false, err
	}
	return rec.Payload, rec.SyncedAt, true, nil
}
