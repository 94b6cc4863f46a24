package vectorstore

import (
	"context"
	"errors"
	"testing"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create file store: %v", err)
	}
	return store
}

func TestFileStore_PutGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	vector := []float32{0.1, 0.2, 0.3}
	if err := store.Put(ctx, "2110501001", vector); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, "2110501001")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if len(got) != len(vector) {
		t.Fatalf("expected %d elements, got %d", len(vector), len(got))
	}
	for i := range vector {
		if got[i] != vector[i] {
			t.Errorf("element %d: expected %f, got %f", i, vector[i], got[i])
		}
	}
}

func TestFileStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "2110501099")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStore_OverwriteLastWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "2110501001", []float32{1, 0}); err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	if err := store.Put(ctx, "2110501001", []float32{0, 1}); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	got, err := store.Get(ctx, "2110501001")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got[0] != 0 || got[1] != 1 {
		t.Errorf("expected overwritten vector [0 1], got %v", got)
	}

	// Overwrite must not create a second gallery entry.
	vectors, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(vectors) != 1 {
		t.Errorf("expected 1 gallery entry after overwrite, got %d", len(vectors))
	}
}

func TestFileStore_ListOrdered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"2110501003", "2110501001", "2110501002"} {
		if err := store.Put(ctx, key, []float32{1}); err != nil {
			t.Fatalf("Put(%s) failed: %v", key, err)
		}
	}

	vectors, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	want := []string{"2110501001", "2110501002", "2110501003"}
	if len(vectors) != len(want) {
		t.Fatalf("expected %d vectors, got %d", len(want), len(vectors))
	}
	for i, key := range want {
		if vectors[i].Key != key {
			t.Errorf("position %d: expected key %s, got %s", i, key, vectors[i].Key)
		}
	}
}

func TestFileStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "2110501001", []float32{1}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete(ctx, "2110501001"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := store.Get(ctx, "2110501001"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting again is not an error.
	if err := store.Delete(ctx, "2110501001"); err != nil {
		t.Errorf("second Delete failed: %v", err)
	}
}

func TestFileStore_RejectsHostileKeys(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"", "../escape", "a/b", `a\b`, ".hidden"} {
		if err := store.Put(ctx, key, []float32{1}); err == nil {
			t.Errorf("expected Put(%q) to fail", key)
		}
		if _, err := store.Get(ctx, key); err == nil {
			t.Errorf("expected Get(%q) to fail", key)
		}
	}
}

func TestIndexed_SearchMatchesStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "S1", []float32{1, 0, 0}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, "S2", []float32{0, 1, 0}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	indexed, err := NewIndexed(ctx, store)
	if err != nil {
		t.Fatalf("NewIndexed failed: %v", err)
	}
	if indexed.Len() != 2 {
		t.Fatalf("expected 2 indexed vectors, got %d", indexed.Len())
	}

	results, distances, err := indexed.Search(ctx, []float32{0.9, 0.1, 0}, 10, 0.5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(results) != 1 || results[0].Key != "S1" {
		t.Fatalf("expected single match S1, got %v", results)
	}
	if distances[0] >= 0.5 {
		t.Errorf("expected distance below threshold, got %f", distances[0])
	}
}

func TestIndexed_DeleteRemovesFromGraph(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "S1", []float32{1, 0}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	indexed, err := NewIndexed(ctx, store)
	if err != nil {
		t.Fatalf("NewIndexed failed: %v", err)
	}

	if err := indexed.Delete(ctx, "S1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	results, _, err := indexed.Search(ctx, []float32{1, 0}, 10, 2.0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty result after delete, got %v", results)
	}
}
