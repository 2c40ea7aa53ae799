package repositories

import "errors"

var (
	// ErrMissingID rejects an update or delete before any remote call.
	ErrMissingID = errors.New("record id is required")
	ErrNotFound  = errors.New("record not found")
	// ErrSelfEdge rejects adding a user to its own followers or following.
	ErrSelfEdge = errors.New("user cannot follow itself")
)

// Collection names in the document store.
const (
	UsersCollection    = "Users"
	ListingsCollection = "Listings"
)
