// Package kvstore defines the persistence port the sequence core depends
// on: a key-value get/set over named collections holding JSON documents.
// The core is agnostic to the backing transport; Postgres, Redis and an
// in-memory map all satisfy the same interface.
package kvstore

import "context"

// Collection names used by the sequence core.
const (
	CollectionContacts = "contacts"
	CollectionTasks    = "sequence_tasks"
)

// Store is the persistence port. Get returns nil data (and a nil error)
// when the collection has never been written; callers treat that as their
// default value. Set replaces the collection atomically.
type Store interface {
	Get(ctx context.Context, collection string) ([]byte, error)
	Set(ctx context.Context, collection string, data []byte) error
}
