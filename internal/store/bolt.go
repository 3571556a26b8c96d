package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	bolt "go.etcd.io/bbolt"

	"github.com/textcorpus/posindex/internal/errs"
)

// BoltStore is the concrete, production Store backend: one bbolt database
// file per flavor output directory, one top-level bucket per run, mirroring
// the bucket-name-constant convention erigon's kv package uses for its
// mdbx tables (erigon-lib/kv/tables.go). bbolt's single-writer-transaction
// model matches the "loader is the exclusive writer" policy of spec §5
// directly, with no adaptation needed.
type BoltStore struct {
	db     *bolt.DB
	bucket []byte
	retry  backoff.BackOff
}

// Options configures a BoltStore.
type Options struct {
	// Bucket names the top-level bucket holding this flavor's postings.
	Bucket string
	// RetryBudget bounds how long a failed Put, Delete or WriteBatch
	// transaction is retried (exponential backoff, at most 10 retries)
	// before the error is surfaced as a StoreError. Every error is
	// retried; transient and permanent failures are not told apart.
	RetryBudget time.Duration
}

// Open creates or opens a bbolt database at path and ensures Options.Bucket
// exists.
func Open(path string, opts Options) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errs.Wrap(err, errs.KindStore, fmt.Sprintf("opening bbolt db %s", path))
	}
	bucket := []byte(opts.Bucket)
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		db.Close()
		return nil, errs.Wrap(err, errs.KindStore, "creating bucket")
	}

	budget := opts.RetryBudget
	if budget <= 0 {
		budget = 30 * time.Second
	}
	eb := backoff.NewExponentialBackOff()
	eb.MaxElapsedTime = budget

	return &BoltStore{db: db, bucket: bucket, retry: eb}, nil
}

func (s *BoltStore) withRetry(op func() error) error {
	b := backoff.WithMaxRetries(s.retry, 10)
	return backoff.Retry(op, b)
}

func (s *BoltStore) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	var value []byte
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		v := b.Get(key)
		if v == nil {
			found = false
			return nil
		}
		found = true
		value = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, errs.Wrap(err, errs.KindStore, "get")
	}
	return value, found, nil
}

func (s *BoltStore) Put(_ context.Context, key, value []byte) error {
	err := s.withRetry(func() error {
		return s.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(s.bucket).Put(key, value)
		})
	})
	if err != nil {
		return errs.Wrap(err, errs.KindStore, "put")
	}
	return nil
}

func (s *BoltStore) Delete(_ context.Context, key []byte) error {
	err := s.withRetry(func() error {
		return s.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(s.bucket).Delete(key)
		})
	})
	if err != nil {
		return errs.Wrap(err, errs.KindStore, "delete")
	}
	return nil
}

type boltBatch struct {
	bucket *bolt.Bucket
	err    error
}

func (b *boltBatch) Put(key, value []byte) {
	if b.err != nil {
		return
	}
	b.err = b.bucket.Put(key, value)
}

func (b *boltBatch) Delete(key []byte) {
	if b.err != nil {
		return
	}
	b.err = b.bucket.Delete(key)
}

func (s *BoltStore) WriteBatch(_ context.Context, fn func(b WriteBatch) error) error {
	err := s.withRetry(func() error {
		return s.db.Update(func(tx *bolt.Tx) error {
			batch := &boltBatch{bucket: tx.Bucket(s.bucket)}
			if err := fn(batch); err != nil {
				return err
			}
			return batch.err
		})
	})
	if err != nil {
		return errs.Wrap(err, errs.KindStore, "write_batch")
	}
	return nil
}

func (s *BoltStore) Iterate(_ context.Context, from []byte, fn func(key, value []byte) (bool, error)) error {
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		var k, v []byte
		if len(from) == 0 {
			k, v = c.First()
		} else {
			k, v = c.Seek(from)
		}
		for ; k != nil; k, v = c.Next() {
			cont, err := fn(k, v)
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return errs.Wrap(err, errs.KindStore, "iterate")
	}
	return nil
}

func (s *BoltStore) Close() error {
	if err := s.db.Close(); err != nil {
		return errs.Wrap(err, errs.KindStore, "close")
	}
	return nil
}
