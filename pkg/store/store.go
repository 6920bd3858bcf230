// Package store persists wager metadata documents. The commit flow writes
// each document twice: first under a provisional temp- key before the ledger
// is touched, then under the canonical wager id once the ledger has assigned
// one. Keys are flat strings; backends map them to their own notion of
// objects and return an addressable URI for each write.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by Download when the key has never been written.
var ErrNotFound = errors.New("store: object not found")

// Store is the durable metadata store the commit orchestrator writes to.
type Store interface {
	// Upload marshals doc as JSON under key and returns the object's URI.
	Upload(ctx context.Context, key string, doc any) (string, error)

	// Download unmarshals the object at key into out.
	Download(ctx context.Context, key string, out any) error
}

// BlobStore holds pre-rendered binary artifacts, like the scannable proof
// image. Both bundled backends implement it alongside Store.
type BlobStore interface {
	UploadBytes(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// TempKey builds the provisional key for a staging write.
func TempKey(at time.Time) string {
	return fmt.Sprintf("temp-%d", at.UnixNano())
}

// IsTemp reports whether a key is provisional rather than canonical.
func IsTemp(key string) bool {
	return strings.HasPrefix(key, "temp-")
}
