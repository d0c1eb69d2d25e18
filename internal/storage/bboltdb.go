package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pilab-dev/cartbuilder/log"
	"github.com/pilab-dev/cartbuilder/session"
	"go.etcd.io/bbolt"
)

// DefaultBucketName is the bucket session keys live in.
const DefaultBucketName = "session"

// BoltStorage implements session.MultiStorage on a bbolt file. It is the
// durable default for the CLI: the session survives process restarts and
// is shared by every process opening the same file (one at a time, bbolt
// holds an exclusive file lock).
type BoltStorage struct {
	db     *bbolt.DB
	bucket []byte
	logger log.Logger
}

// NewBoltStorage opens (or creates) the database at dbPath.
func NewBoltStorage(dbPath string, logger log.Logger) (*BoltStorage, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	dir := filepath.Dir(dbPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Debug(context.Background(), "Creating session database directory", map[string]interface{}{"dir": dir})
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to check database directory %s: %w", dir, err)
	}

	// Read/write for the owner only: the file holds credentials.
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db at %s: %w", dbPath, err)
	}

	s := &BoltStorage{
		db:     db,
		bucket: []byte(DefaultBucketName),
		logger: logger,
	}

	if err := s.ensureBucket(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *BoltStorage) ensureBucket() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(s.bucket); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
		}
		return nil
	})
}

func (s *BoltStorage) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return session.ErrNotFound
		}
		v := b.Get([]byte(key))
		if v == nil {
			return session.ErrNotFound
		}
		// The slice is only valid during the transaction.
		value = make([]byte, len(v))
		copy(value, v)
		return nil
	})
	return value, err
}

func (s *BoltStorage) Set(ctx context.Context, key string, value []byte) error {
	return s.SetMany(ctx, map[string][]byte{key: value})
}

func (s *BoltStorage) Delete(ctx context.Context, key string) error {
	return s.DeleteMany(ctx, key)
}

// SetMany writes all entries in one read-write transaction.
func (s *BoltStorage) SetMany(_ context.Context, entries map[string][]byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return fmt.Errorf("bucket %s not found", s.bucket)
		}
		for k, v := range entries {
			if err := b.Put([]byte(k), v); err != nil {
				return fmt.Errorf("failed to put value for key %s: %w", k, err)
			}
		}
		return nil
	})
}

// DeleteMany removes all keys in one read-write transaction.
func (s *BoltStorage) DeleteMany(_ context.Context, keys ...string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		for _, k := range keys {
			if err := b.Delete([]byte(k)); err != nil {
				return fmt.Errorf("failed to delete key %s: %w", k, err)
			}
		}
		return nil
	})
}

// Close closes the database file.
func (s *BoltStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *BoltStorage) Path() string {
	return s.db.Path()
}

var _ session.MultiStorage = (*BoltStorage)(nil)
