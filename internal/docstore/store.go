// Package docstore is the client side of the remote document database:
// named collections of key -> record documents with field-level array
// updates and live subscriptions. Memory, GORM and Firestore backends share
// the Store interface.
package docstore

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
	ErrClosed        = errors.New("store closed")
	ErrUnsupported   = errors.New("unsupported query")
)

// Snapshot is one document as read from the store. Decoding is deferred so
// callers can decide what to do with documents of the wrong shape.
type Snapshot interface {
	ID() string
	DataTo(v any) error
}

// Subscription delivers the full membership of a collection on open and
// after every change. Updates is closed when the subscription ends; Err then
// reports why, and is nil after Close or context cancellation.
type Subscription interface {
	Updates() <-chan []Snapshot
	Err() error
	Close()
}

// Store is the set of operations the repositories consume.
type Store interface {
	// Create writes a new document. An empty id lets the store pick the key.
	Create(ctx context.Context, collection, id string, data any) (string, error)
	// Set overwrites (or creates) the document at id.
	Set(ctx context.Context, collection, id string, data any) error
	Get(ctx context.Context, collection, id string) (Snapshot, error)
	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error
	// Query returns the documents whose field equals value.
	Query(ctx context.Context, collection, field string, value any) ([]Snapshot, error)
	GetAll(ctx context.Context, collection string) ([]Snapshot, error)
	Subscribe(ctx context.Context, collection string) (Subscription, error)
	// ArrayUnion adds values missing from an array field.
	ArrayUnion(ctx context.Context, collection, id, field string, values ...any) error
	// ArrayRemove removes every occurrence of values from an array field.
	ArrayRemove(ctx context.Context, collection, id, field string, values ...any) error
	Close() error
}
