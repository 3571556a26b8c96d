// Package store defines the ordered key->value Store contract the
// pipeline loader writes against (spec §4.B), plus a go.etcd.io/bbolt
// backed implementation.
package store

import "context"

// WriteBatch accumulates puts/deletes for one atomic write_batch.
type WriteBatch interface {
	Put(key, value []byte)
	Delete(key []byte)
}

// Store is an ordered key->byte-slice store. Implementations must
// distinguish an absent key (found=false) from a present key with an
// empty value (found=true, value=[]byte{}).
type Store interface {
	// Get returns the value for key, or found=false if the key is absent.
	Get(ctx context.Context, key []byte) (value []byte, found bool, err error)

	// Put writes a single key/value pair outside of a batch.
	Put(ctx context.Context, key, value []byte) error

	// Delete removes key, if present.
	Delete(ctx context.Context, key []byte) error

	// WriteBatch executes fn against a fresh batch and commits it
	// atomically. fn must not retain b past its return.
	WriteBatch(ctx context.Context, fn func(b WriteBatch) error) error

	// Iterate calls fn for every key >= from, in ascending key order,
	// until fn returns cont=false or an error.
	Iterate(ctx context.Context, from []byte, fn func(key, value []byte) (cont bool, err error)) error

	// Close releases underlying resources.
	Close() error
}
