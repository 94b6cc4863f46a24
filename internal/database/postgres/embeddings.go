package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/aditpras/campus-attendance/internal/vectorstore"
)

// hnswEfSearch is the pgvector search candidate pool size.
const hnswEfSearch = 100

// EmbeddingRepository is a pgvector-backed vectorstore.Store. It also
// implements vectorstore.Searcher so the matcher pushes ranking into the
// database instead of scanning the gallery in Go.
type EmbeddingRepository struct {
	pool *Pool
}

// NewEmbeddingRepository creates a new pgvector embedding repository.
func NewEmbeddingRepository(pool *Pool) *EmbeddingRepository {
	return &EmbeddingRepository{pool: pool}
}

// Put persists or overwrites the vector for a key.
func (r *EmbeddingRepository) Put(ctx context.Context, key string, vector []float32) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO face_embeddings (key, embedding)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET embedding = EXCLUDED.embedding, created_at = NOW()`,
		key, pgvector.NewVector(vector))
	if err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

// Get returns the vector for a key.
func (r *EmbeddingRepository) Get(ctx context.Context, key string) ([]float32, error) {
	var vec pgvector.Vector
	err := r.pool.QueryRow(ctx, "SELECT embedding FROM face_embeddings WHERE key = $1", key).Scan(&vec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vectorstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}
	return vec.Slice(), nil
}

// List returns the full gallery ordered by key.
func (r *EmbeddingRepository) List(ctx context.Context) ([]vectorstore.StoredVector, error) {
	rows, err := r.pool.Query(ctx, "SELECT key, embedding FROM face_embeddings ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	defer rows.Close()

	var vectors []vectorstore.StoredVector
	for rows.Next() {
		var key string
		var vec pgvector.Vector
		if err := rows.Scan(&key, &vec); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		vectors = append(vectors, vectorstore.StoredVector{Key: key, Vector: vec.Slice()})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	return vectors, nil
}

// Delete removes the vector for a key. Deleting an absent key is not an error.
func (r *EmbeddingRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM face_embeddings WHERE key = $1", key); err != nil {
		return fmt.Errorf("delete embedding: %w", err)
	}
	return nil
}

// Search ranks the gallery by cosine distance inside PostgreSQL using the
// HNSW index. Results come back ascending by distance, strictly below
// maxDistance.
func (r *EmbeddingRepository) Search(ctx context.Context, query []float32, limit int, maxDistance float64) ([]vectorstore.StoredVector, []float64, error) {
	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", hnswEfSearch)); err != nil {
		return nil, nil, fmt.Errorf("set ef_search: %w", err)
	}

	vec := pgvector.NewVector(query)
	rows, err := tx.QueryContext(ctx, `
		SELECT key, embedding, embedding <=> $1 AS distance
		FROM face_embeddings
		WHERE embedding <=> $1 < $2
		ORDER BY distance
		LIMIT $3`,
		vec, maxDistance, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("search embeddings: %w", err)
	}
	defer rows.Close()

	var vectors []vectorstore.StoredVector
	var distances []float64
	for rows.Next() {
		var key string
		var emb pgvector.Vector
		var distance float64
		if err := rows.Scan(&key, &emb, &distance); err != nil {
			return nil, nil, fmt.Errorf("scan search result: %w", err)
		}
		vectors = append(vectors, vectorstore.StoredVector{Key: key, Vector: emb.Slice()})
		distances = append(distances, distance)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate search results: %w", err)
	}
	return vectors, distances, nil
}
