// Package store is the object-store boundary: a narrow put-only interface,
// an S3 implementation, and the classification of store failures into
// transient (retry) and fatal (give up) classes.
package store

import (
	"context"
	"io"
)

// Store accepts object writes. No read-back, listing, or deletion is part
// of the contract.
type Store interface {
	// Put streams body to the store under key with the given content type.
	// Success means the store accepted the write; the object is not read
	// back for verification.
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
}
