package face

import (
	"context"
	"fmt"
	"sort"

	"github.com/aditpras/campus-attendance/internal/vectorstore"
)

// Matcher ranks gallery candidates for a query embedding by cosine distance.
//
// Matching is a linear scan over the full gallery, O(n) per query. Rosters
// are class-sized so that is fine; stores that implement
// vectorstore.Searcher (pgvector pushdown, HNSW-wrapped stores) are used
// instead without changing the contract.
type Matcher struct {
	store vectorstore.Store
}

// NewMatcher creates a matcher over the given gallery store.
func NewMatcher(store vectorstore.Store) *Matcher {
	return &Matcher{store: store}
}

// searchLimit bounds pushdown queries; gallery entries past this rank are
// never useful for a single-identity check-in.
const searchLimit = 50

// Match returns candidates with distance < threshold, ascending by distance,
// ties kept in gallery scan order. An empty gallery or no candidate under
// the threshold yields an empty result, not an error.
func (m *Matcher) Match(ctx context.Context, query []float32, threshold float64) ([]Candidate, error) {
	if searcher, ok := m.store.(vectorstore.Searcher); ok {
		return m.matchPushdown(ctx, searcher, query, threshold)
	}
	return m.matchScan(ctx, query, threshold)
}

func (m *Matcher) matchPushdown(ctx context.Context, searcher vectorstore.Searcher, query []float32, threshold float64) ([]Candidate, error) {
	vectors, distances, err := searcher.Search(ctx, query, searchLimit, threshold)
	if err != nil {
		return nil, fmt.Errorf("gallery search: %w", err)
	}

	candidates := make([]Candidate, 0, len(vectors))
	for i := range vectors {
		candidates = append(candidates, Candidate{
			NIM:        vectors[i].Key,
			Distance:   distances[i],
			Confidence: Ratio(1 - distances[i]),
		})
	}
	return candidates, nil
}

func (m *Matcher) matchScan(ctx context.Context, query []float32, threshold float64) ([]Candidate, error) {
	gallery, err := m.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list gallery: %w", err)
	}

	candidates := make([]Candidate, 0, len(gallery))
	for _, stored := range gallery {
		distance := vectorstore.CosineDistance(query, stored.Vector)
		if distance >= threshold {
			continue
		}
		candidates = append(candidates, Candidate{
			NIM:        stored.Key,
			Distance:   distance,
			Confidence: Ratio(1 - distance),
		})
	}

	// Stable keeps gallery scan order for equal distances.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})
	return candidates, nil
}
