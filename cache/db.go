// Package cache stores compiled bundles in a bbolt database, keyed by the digest
// of the sources map they were compiled from.
package cache

import (
	"encoding/binary"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// DefaultName is the database file name inside the cache directory.
	DefaultName      = "bundles.db"
	defaultBatchSize = 1000
	defaultKeysClean = 64
	fillPercent      = 0.9
)

var (
	bundleBucketName = []byte("bundle")
	expireBucketName = []byte("expire")
	// ErrKeyNotFound not found the key
	ErrKeyNotFound = errors.New("key not found")
)

// Options configures a DB.
type Options struct {
	// TTL is how long an entry stays valid. Zero keeps entries forever.
	TTL    time.Duration
	Logger *slog.Logger
}

// DB a bbolt.DB holding compiled bundles.
type DB struct {
	db   *bbolt.DB
	opts Options
}

// Open opens or creates the cache database under dir. Expired entries are
// purged once enough of them may have piled up.
func Open(dir string, opts Options) (*DB, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(filepath.Join(dir, DefaultName), 0o600, &bbolt.Options{
		Timeout: time.Second,
	})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bundleBucketName); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(expireBucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	c := &DB{db: db, opts: opts}
	if c.expiring() >= defaultKeysClean {
		if n, err := c.Purge(time.Now()); err != nil {
			opts.Logger.Error("error cleaning expired bundles", "error", err)
		} else if n > 0 {
			opts.Logger.Debug("expired bundles cleaned", "count", n)
		}
	}
	return c, nil
}

// Put writes the bundle bytes under key.
func (db *DB) Put(key, value []byte) error {
	return db.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bundleBucketName).Put(key, value); err != nil {
			return err
		}
		expire := tx.Bucket(expireBucketName)
		if db.opts.TTL <= 0 {
			return expire.Delete(key)
		}
		ddl := binary.BigEndian.AppendUint64(nil, uint64(time.Now().Add(db.opts.TTL).Unix()))
		return expire.Put(key, ddl)
	})
}

// Get reads the bundle bytes of key. The returned slice is a copy.
func (db *DB) Get(key []byte) (value []byte, err error) {
	err = db.db.View(func(tx *bbolt.Tx) error {
		if ddl := tx.Bucket(expireBucketName).Get(key); ddl != nil {
			if time.Now().Unix() > int64(binary.BigEndian.Uint64(ddl)) {
				return ErrKeyNotFound
			}
		}
		v := tx.Bucket(bundleBucketName).Get(key)
		if v == nil {
			return ErrKeyNotFound
		}
		value = append([]byte(nil), v...)
		return nil
	})
	return
}

// Delete a specified key from DB.
func (db *DB) Delete(key []byte) error {
	return db.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(expireBucketName).Delete(key); err != nil {
			return err
		}
		return tx.Bucket(bundleBucketName).Delete(key)
	})
}

// DeleteBatch delete entries in batch.
func (db *DB) DeleteBatch(keys [][]byte) error {
	for offset := 0; offset < len(keys); offset += defaultBatchSize {
		end := min(offset+defaultBatchSize, len(keys))
		err := db.db.Update(func(tx *bbolt.Tx) error {
			bundles, expire := tx.Bucket(bundleBucketName), tx.Bucket(expireBucketName)
			bundles.FillPercent = fillPercent
			for _, key := range keys[offset:end] {
				if err := bundles.Delete(key); err != nil {
					return err
				}
				if err := expire.Delete(key); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (db *DB) Len() (n int) {
	_ = db.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bundleBucketName).Stats().KeyN
		return nil
	})
	return
}

// Close closes the database.
func (db *DB) Close() error { return db.db.Close() }

// Expired returns the keys whose deadline is before now.
func (db *DB) Expired(now time.Time) (keys [][]byte, err error) {
	err = db.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket(expireBucketName).Cursor()
		for key, ddl := cursor.First(); key != nil; key, ddl = cursor.Next() {
			if now.Unix() > int64(binary.BigEndian.Uint64(ddl)) {
				keys = append(keys, append([]byte(nil), key...))
			}
		}
		return nil
	})
	return
}

// Purge deletes the entries whose deadline is before now and returns their count.
func (db *DB) Purge(now time.Time) (int, error) {
	keys, err := db.Expired(now)
	if err != nil {
		return 0, err
	}
	return len(keys), db.DeleteBatch(keys)
}

// expiring returns the number of entries carrying a deadline.
func (db *DB) expiring() (n int) {
	_ = db.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(expireBucketName).Stats().KeyN
		return nil
	})
	return
}
