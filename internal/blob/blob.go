// Package blob stores uploaded photo bytes and resolves download URLs.
package blob

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("blob not found")

// Store is the object storage the listing service uploads photos to. Put
// returns a reference that URL later turns into a link a client can fetch.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	URL(ctx context.Context, ref string) (string, error)
}
