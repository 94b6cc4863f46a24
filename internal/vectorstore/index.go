package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/coder/hnsw"
)

// hnswMaxNeighbors is the M parameter of the graph. Class-roster galleries
// are small, so recall matters more than memory here.
const hnswMaxNeighbors = 16

// Indexed wraps a Store with an in-memory HNSW graph so similarity queries
// avoid the full-gallery scan. Writes go to the underlying store first and
// the graph is updated only after they succeed, so the graph never ranks a
// vector the store does not hold.
type Indexed struct {
	store Store

	mu    sync.RWMutex
	graph *hnsw.Graph[string]
}

// NewIndexed builds the graph from the store's current gallery.
func NewIndexed(ctx context.Context, store Store) (*Indexed, error) {
	vectors, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance

	for _, v := range vectors {
		g.Add(hnsw.MakeNode(v.Key, v.Vector))
	}

	return &Indexed{store: store, graph: g}, nil
}

// Len returns the number of indexed vectors.
func (s *Indexed) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Len()
}

// Put persists the vector and then replaces its graph node.
func (s *Indexed) Put(ctx context.Context, key string, vector []float32) error {
	if err := s.store.Put(ctx, key, vector); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph.Delete(key)
	s.graph.Add(hnsw.MakeNode(key, vector))
	return nil
}

func (s *Indexed) Get(ctx context.Context, key string) ([]float32, error) {
	return s.store.Get(ctx, key)
}

func (s *Indexed) List(ctx context.Context) ([]StoredVector, error) {
	return s.store.List(ctx)
}

// Delete removes the vector from the store and the graph.
func (s *Indexed) Delete(ctx context.Context, key string) error {
	if err := s.store.Delete(ctx, key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph.Delete(key)
	return nil
}

// Search implements Searcher using the HNSW graph. Results come back
// ascending by distance; anything at or beyond maxDistance is dropped.
func (s *Indexed) Search(ctx context.Context, query []float32, limit int, maxDistance float64) ([]StoredVector, []float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.graph.Len() == 0 {
		return nil, nil, nil
	}

	neighbors := s.graph.Search(query, limit)

	var results []StoredVector
	var distances []float64
	for _, n := range neighbors {
		distance := CosineDistance(query, n.Value)
		if distance >= maxDistance {
			continue
		}
		results = append(results, StoredVector{Key: n.Key, Vector: n.Value})
		distances = append(distances, distance)
	}
	return results, distances, nil
}
