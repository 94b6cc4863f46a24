package vectorstore

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const vectorFileExt = ".vec"

// FileStore keeps one gob-encoded vector file per student under a single
// directory, filename derived from the NIM. Overwrites go through a temp
// file in the same directory followed by a rename, so concurrent readers
// never observe a partially written vector.
type FileStore struct {
	dir string
}

// NewFileStore creates the backing directory if needed and returns the store.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("embeddings directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create embeddings directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// validateKey rejects keys that would escape the store directory. NIMs are
// plain alphanumeric strings; anything with a path separator is hostile input.
func validateKey(key string) error {
	if key == "" {
		return errors.New("empty vector key")
	}
	if strings.ContainsAny(key, `/\`) || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return fmt.Errorf("invalid vector key %q", key)
	}
	return nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+vectorFileExt)
}

// Put persists or overwrites the vector for a key.
func (s *FileStore) Put(ctx context.Context, key string, vector []float32) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if len(vector) == 0 {
		return errors.New("empty vector")
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(vector); err != nil {
		return fmt.Errorf("encode vector: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, key+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp vector file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write vector file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close vector file: %w", err)
	}

	// Rename within the same directory makes the overwrite atomic.
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename vector file: %w", err)
	}
	return nil
}

// Get returns the vector for a key, ErrNotFound if absent.
func (s *FileStore) Get(ctx context.Context, key string) ([]float32, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read vector file: %w", err)
	}

	var vector []float32
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&vector); err != nil {
		return nil, fmt.Errorf("decode vector %q: %w", key, err)
	}
	return vector, nil
}

// List returns the full gallery, ordered by key for stable scan order.
func (s *FileStore) List(ctx context.Context) ([]StoredVector, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read embeddings directory: %w", err)
	}

	var vectors []StoredVector
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, vectorFileExt) {
			continue
		}
		key := strings.TrimSuffix(name, vectorFileExt)

		vector, err := s.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue // deleted between ReadDir and Get
		}
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, StoredVector{Key: key, Vector: vector})
	}

	sort.Slice(vectors, func(i, j int) bool { return vectors[i].Key < vectors[j].Key })
	return vectors, nil
}

// Delete removes the vector file for a key.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete vector file: %w", err)
	}
	return nil
}
