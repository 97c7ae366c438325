package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const guestBucketPrefix = "guest:"

// BoltStore keeps one bucket per guest in a bbolt file.
type BoltStore struct {
	db      *bolt.DB
	maxKeys int
}

func NewBoltStore(path string, maxKeysPerGuest int) (*BoltStore, error) {
	if path == "" {
		return nil, errors.New("bolt path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &BoltStore{db: db, maxKeys: maxKeysPerGuest}, nil
}

func (s *BoltStore) Space(guestID string) KV {
	return &boltSpace{store: s, bucket: []byte(guestBucketPrefix + guestID), guest: guestID}
}

func (s *BoltStore) Ping(context.Context) error {
	return s.db.View(func(*bolt.Tx) error { return nil })
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

type boltSpace struct {
	store  *BoltStore
	bucket []byte
	guest  string
}

func (b *boltSpace) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := b.store.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		if bucket == nil {
			return ErrNotFound
		}
		data := bucket.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		// Copy the value since it's only valid during the transaction.
		value = make([]byte, len(data))
		copy(value, data)
		return nil
	})
	return value, err
}

func (b *boltSpace) Set(_ context.Context, key string, value []byte) error {
	if b.guest == "" {
		return ErrInvalidGuest
	}
	return b.store.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(b.bucket)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", b.bucket, err)
		}
		if limit := b.store.maxKeys; limit > 0 && bucket.Get([]byte(key)) == nil && countKeys(bucket, limit) >= limit {
			return ErrQuotaExceeded
		}
		return bucket.Put([]byte(key), value)
	})
}

func (b *boltSpace) Delete(_ context.Context, key string) error {
	return b.store.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(key))
	})
}

func (b *boltSpace) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := b.store.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		if bucket == nil {
			return nil
		}
		c := bucket.Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys, err
}

// countKeys counts bucket keys, stopping once it reaches limit.
func countKeys(bucket *bolt.Bucket, limit int) int {
	n := 0
	c := bucket.Cursor()
	for k, _ := c.First(); k != nil && n < limit; k, _ = c.Next() {
		n++
	}
	return n
}
