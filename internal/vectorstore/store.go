// Package vectorstore persists one face-embedding vector per enrolled
// student and serves the gallery that the matcher scans.
package vectorstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no vector is stored for the given key.
var ErrNotFound = errors.New("vector not found")

// StoredVector is one gallery entry: the student's NIM and the embedding
// produced at enrollment time.
type StoredVector struct {
	Key    string
	Vector []float32
}

// Store persists embedding vectors keyed by student NIM. Writes are atomic
// from the reader's perspective; the last successful write wins.
type Store interface {
	// Put persists or overwrites the vector for a key.
	Put(ctx context.Context, key string, vector []float32) error

	// Get returns the vector for a key, ErrNotFound if absent.
	Get(ctx context.Context, key string) ([]float32, error)

	// List returns a consistent snapshot of the full gallery. Writes that
	// land mid-scan may or may not be reflected.
	List(ctx context.Context) ([]StoredVector, error)

	// Delete removes the vector for a key. Deleting an absent key is not an
	// error.
	Delete(ctx context.Context, key string) error
}

// Searcher is an optional pushdown interface. Stores that can rank the
// gallery themselves (pgvector, HNSW) implement it so the matcher skips the
// linear scan; the contract matches Matcher.Match ordering and filtering.
type Searcher interface {
	// Search returns up to limit gallery entries with cosine distance below
	// maxDistance, ascending by distance.
	Search(ctx context.Context, query []float32, limit int, maxDistance float64) ([]StoredVector, []float64, error)
}
