package ledger

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var bucket = []byte("changes")

// Ledger is the persistent set of source paths uploaded successfully to at
// least one target. Each path is stored once with the time it was first
// recorded.
type Ledger struct {
	db *bbolt.DB
}

func Open(path string) (*Ledger, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) Add(paths ...string) error {
	now := []byte(time.Now().UTC().Format(time.RFC3339))

	return l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		for _, p := range paths {
			if b.Get([]byte(p)) != nil {
				continue
			}
			if err := b.Put([]byte(p), now); err != nil {
				return fmt.Errorf("failed to record %s: %w", p, err)
			}
		}
		return nil
	})
}

// List returns the recorded paths in lexical order.
func (l *Ledger) List() ([]string, error) {
	var paths []string

	err := l.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, _ []byte) error {
			paths = append(paths, string(k))
			return nil
		})
	})

	return paths, err
}

func (l *Ledger) Reset() error {
	return l.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucket)
		return err
	})
}
