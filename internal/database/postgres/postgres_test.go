//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aditpras/campus-attendance/internal/attendance"
	"github.com/aditpras/campus-attendance/internal/config"
	"github.com/aditpras/campus-attendance/internal/database"
	"github.com/aditpras/campus-attendance/internal/vectorstore"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func seedReference(t *testing.T, pool *Pool) {
	t.Helper()
	ctx := context.Background()

	statements := []string{
		`INSERT INTO classes (id, name) VALUES (1, 'TI-3A')`,
		`INSERT INTO courses (code, name) VALUES ('IF101', 'Algoritma dan Pemrograman')`,
		`INSERT INTO students (nim, name, class_id) VALUES
			('2110001', 'Budi Santoso', 1),
			('2110002', 'Siti Rahma', 1)`,
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("Failed to seed reference data: %v", err)
		}
	}
}

func TestEnrollmentRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewEnrollmentRepository(pool)
	registeredAt := time.Now().UTC().Truncate(time.Second)

	t.Run("UpsertAndGet", func(t *testing.T) {
		rec, err := repo.Upsert(ctx, "2110001", "2110001.vec", registeredAt)
		if err != nil {
			t.Fatalf("Failed to upsert enrollment: %v", err)
		}
		if !rec.IsActive || rec.FailedAttempts != 0 {
			t.Errorf("Fresh enrollment in wrong state: %+v", rec)
		}

		got, err := repo.Get(ctx, "2110001")
		if err != nil {
			t.Fatalf("Failed to get enrollment: %v", err)
		}
		if got.EmbeddingRef != "2110001.vec" {
			t.Errorf("Expected embedding ref '2110001.vec', got %q", got.EmbeddingRef)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := repo.Get(ctx, "0000000")
		if !errors.Is(err, database.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("RecordAttemptLockout", func(t *testing.T) {
		if _, err := repo.Upsert(ctx, "2110002", "2110002.vec", registeredAt); err != nil {
			t.Fatalf("Failed to upsert enrollment: %v", err)
		}

		var rec *database.EnrollmentRecord
		var err error
		for range 3 {
			rec, err = repo.RecordAttempt(ctx, "2110002", false, time.Now(), 3)
			if err != nil {
				t.Fatalf("Failed to record attempt: %v", err)
			}
		}
		if rec.IsActive {
			t.Error("Expected lockout after reaching the limit")
		}
		if rec.FailedAttempts != 3 {
			t.Errorf("Expected 3 failed attempts, got %d", rec.FailedAttempts)
		}

		if _, err := repo.RecordAttempt(ctx, "2110002", true, time.Now(), 3); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("Expected ErrNotFound for locked-out enrollment, got %v", err)
		}

		// Re-enroll resets and reactivates.
		rec, err = repo.Upsert(ctx, "2110002", "2110002.vec", registeredAt)
		if err != nil {
			t.Fatalf("Failed to re-enroll: %v", err)
		}
		if !rec.IsActive || rec.FailedAttempts != 0 {
			t.Errorf("Re-enrollment did not reset state: %+v", rec)
		}
	})

	t.Run("RecordAttemptSuccess", func(t *testing.T) {
		rec, err := repo.RecordAttempt(ctx, "2110001", true, time.Now(), 10)
		if err != nil {
			t.Fatalf("Failed to record attempt: %v", err)
		}
		if rec.VerificationCount != 1 || rec.LastVerified == nil {
			t.Errorf("Success did not update counters: %+v", rec)
		}
	})

	t.Run("SetActiveResets", func(t *testing.T) {
		if _, err := repo.RecordAttempt(ctx, "2110001", false, time.Now(), 10); err != nil {
			t.Fatalf("Failed to record attempt: %v", err)
		}
		rec, err := repo.SetActive(ctx, "2110001", true)
		if err != nil {
			t.Fatalf("Failed to toggle enrollment: %v", err)
		}
		if rec.FailedAttempts != 0 {
			t.Errorf("Re-enable did not reset failed attempts: %+v", rec)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.Delete(ctx, "2110001"); err != nil {
			t.Fatalf("Failed to delete enrollment: %v", err)
		}
		if err := repo.Delete(ctx, "2110001"); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("Expected ErrNotFound on second delete, got %v", err)
		}
	})
}

func TestEmbeddingRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewEmbeddingRepository(pool)

	unit := func(axis int) []float32 {
		v := make([]float32, 512)
		v[axis] = 1
		return v
	}

	t.Run("PutAndGet", func(t *testing.T) {
		if err := repo.Put(ctx, "2110001", unit(0)); err != nil {
			t.Fatalf("Failed to put embedding: %v", err)
		}
		got, err := repo.Get(ctx, "2110001")
		if err != nil {
			t.Fatalf("Failed to get embedding: %v", err)
		}
		if len(got) != 512 || got[0] != 1 {
			t.Errorf("Unexpected embedding returned: len=%d", len(got))
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := repo.Get(ctx, "0000000")
		if !errors.Is(err, vectorstore.ErrNotFound) {
			t.Errorf("Expected vectorstore.ErrNotFound, got %v", err)
		}
	})

	t.Run("Search", func(t *testing.T) {
		if err := repo.Put(ctx, "2110002", unit(1)); err != nil {
			t.Fatalf("Failed to put embedding: %v", err)
		}

		query := make([]float32, 512)
		query[0] = 0.9
		query[1] = 0.1

		vectors, distances, err := repo.Search(ctx, query, 10, 0.5)
		if err != nil {
			t.Fatalf("Failed to search embeddings: %v", err)
		}
		if len(vectors) != 1 {
			t.Fatalf("Expected 1 match under threshold, got %d", len(vectors))
		}
		if vectors[0].Key != "2110001" {
			t.Errorf("Expected key '2110001', got %q", vectors[0].Key)
		}
		if distances[0] >= 0.5 {
			t.Errorf("Distance %f not below threshold", distances[0])
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.Delete(ctx, "2110001"); err != nil {
			t.Fatalf("Failed to delete embedding: %v", err)
		}
		if err := repo.Delete(ctx, "2110001"); err != nil {
			t.Errorf("Deleting an absent key must not error, got %v", err)
		}
	})
}

func TestAttendanceRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	seedReference(t, pool)

	ctx := context.Background()
	repo := NewAttendanceRepository(pool)
	directory := NewReferenceRepository(pool)

	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	key := attendance.SessionKey{CourseCode: "IF101", Date: date, MeetingNo: 3}

	students, err := directory.ClassStudents(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to list class students: %v", err)
	}
	if len(students) != 2 {
		t.Fatalf("Expected 2 seeded students, got %d", len(students))
	}

	var records []attendance.Record
	for _, s := range students {
		records = append(records, attendance.Record{
			NIM:        s.NIM,
			CourseCode: key.CourseCode,
			Date:       key.Date,
			MeetingNo:  key.MeetingNo,
			Status:     attendance.StatusUnmarked,
			StartTime:  "08:00",
			EndTime:    "10:00",
		})
	}
	if err := repo.CreateRecords(ctx, records); err != nil {
		t.Fatalf("Failed to create records: %v", err)
	}

	t.Run("SessionExists", func(t *testing.T) {
		exists, err := repo.SessionExists(ctx, key)
		if err != nil {
			t.Fatalf("Failed to check session: %v", err)
		}
		if !exists {
			t.Error("Expected session to exist")
		}
	})

	t.Run("CreateRecordsDuplicate", func(t *testing.T) {
		// A second insert of the same session hits the unique constraint
		// and must surface as the duplicate sentinel, not a raw pq error.
		err := repo.CreateRecords(ctx, records)
		if !errors.Is(err, attendance.ErrDuplicateSession) {
			t.Errorf("Expected ErrDuplicateSession, got %v", err)
		}
	})

	t.Run("SessionRecordsJoinName", func(t *testing.T) {
		got, err := repo.SessionRecords(ctx, key)
		if err != nil {
			t.Fatalf("Failed to read session records: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("Expected 2 records, got %d", len(got))
		}
		if got[0].NIM != "2110001" || got[0].StudentName != "Budi Santoso" {
			t.Errorf("Unexpected first record: %+v", got[0])
		}
	})

	t.Run("MarkAndExpire", func(t *testing.T) {
		got, err := repo.SessionRecords(ctx, key)
		if err != nil {
			t.Fatalf("Failed to read session records: %v", err)
		}
		if _, err := repo.MarkRecord(ctx, got[0].ID, attendance.StatusPresent, time.Now()); err != nil {
			t.Fatalf("Failed to mark record: %v", err)
		}

		// Sweep at 10:01 on the session day flips only the unmarked record.
		now := time.Date(2026, 3, 2, 10, 1, 0, 0, time.UTC)
		n, err := repo.ExpireUnmarked(ctx, key, now)
		if err != nil {
			t.Fatalf("Failed to expire records: %v", err)
		}
		if n != 1 {
			t.Errorf("Expected 1 record expired, got %d", n)
		}

		n, err = repo.ExpireUnmarked(ctx, key, now)
		if err != nil {
			t.Fatalf("Failed to re-run expiry: %v", err)
		}
		if n != 0 {
			t.Errorf("Expected idempotent sweep, got %d", n)
		}
	})

	t.Run("ListSummaries", func(t *testing.T) {
		summaries, err := repo.ListSummaries(ctx, attendance.Filter{})
		if err != nil {
			t.Fatalf("Failed to list summaries: %v", err)
		}
		if len(summaries) != 1 {
			t.Fatalf("Expected 1 summary, got %d", len(summaries))
		}
		s := summaries[0]
		if s.Total != 2 || s.Present != 1 || s.Absent != 1 {
			t.Errorf("Unexpected counts: %+v", s)
		}
		if s.CourseName != "Algoritma dan Pemrograman" || s.ClassName != "TI-3A" {
			t.Errorf("Expected joined names, got %+v", s)
		}
	})

	t.Run("ListSummariesNormalizedClassFilter", func(t *testing.T) {
		// The engine hands the store a normalized filter; the stored
		// "TI-3A" must match it through unaccent + lower.
		filtered, err := repo.ListSummaries(ctx, attendance.Filter{
			ClassName: database.NormalizeName("  TÍ-3a "),
		})
		if err != nil {
			t.Fatalf("Failed to list filtered summaries: %v", err)
		}
		if len(filtered) != 1 {
			t.Errorf("Expected 1 summary for normalized class filter, got %d", len(filtered))
		}

		none, err := repo.ListSummaries(ctx, attendance.Filter{
			ClassName: database.NormalizeName("TI-3B"),
		})
		if err != nil {
			t.Fatalf("Failed to list filtered summaries: %v", err)
		}
		if len(none) != 0 {
			t.Errorf("Expected no summaries for other class, got %d", len(none))
		}
	})

	t.Run("DeleteSession", func(t *testing.T) {
		n, err := repo.DeleteSession(ctx, key)
		if err != nil {
			t.Fatalf("Failed to delete session: %v", err)
		}
		if n != 2 {
			t.Errorf("Expected 2 records deleted, got %d", n)
		}
	})
}
