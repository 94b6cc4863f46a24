package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aditpras/campus-attendance/internal/database"
)

// EnrollmentRepository provides PostgreSQL-backed face enrollment metadata.
type EnrollmentRepository struct {
	pool *Pool
}

// NewEnrollmentRepository creates a new enrollment repository.
func NewEnrollmentRepository(pool *Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

const enrollmentColumns = `nim, embedding_ref, registered_at, last_verified, verification_count, failed_attempts, is_active`

func scanEnrollment(row interface{ Scan(...any) error }) (*database.EnrollmentRecord, error) {
	var rec database.EnrollmentRecord
	var lastVerified sql.NullTime
	err := row.Scan(
		&rec.NIM,
		&rec.EmbeddingRef,
		&rec.RegisteredAt,
		&lastVerified,
		&rec.VerificationCount,
		&rec.FailedAttempts,
		&rec.IsActive,
	)
	if err != nil {
		return nil, err
	}
	if lastVerified.Valid {
		rec.LastVerified = &lastVerified.Time
	}
	return &rec, nil
}

// Get retrieves the enrollment record for a NIM.
func (r *EnrollmentRepository) Get(ctx context.Context, nim string) (*database.EnrollmentRecord, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM face_enrollments WHERE nim = $1`

	rec, err := scanEnrollment(r.pool.QueryRow(ctx, query, nim))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query enrollment: %w", err)
	}
	return rec, nil
}

// List returns enrollment records newest first, optionally filtered by the
// is_active flag.
func (r *EnrollmentRepository) List(ctx context.Context, active *bool) ([]database.EnrollmentRecord, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM face_enrollments`
	var args []any
	if active != nil {
		query += ` WHERE is_active = $1`
		args = append(args, *active)
	}
	query += ` ORDER BY registered_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var records []database.EnrollmentRecord
	for rows.Next() {
		rec, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollments: %w", err)
	}
	return records, nil
}

// Upsert creates or replaces the enrollment for a NIM. Re-enrollment resets
// failed_attempts and reactivates the record; verification_count survives.
func (r *EnrollmentRepository) Upsert(ctx context.Context, nim, embeddingRef string, registeredAt time.Time) (*database.EnrollmentRecord, error) {
	query := `
		INSERT INTO face_enrollments (nim, embedding_ref, registered_at, verification_count, failed_attempts, is_active)
		VALUES ($1, $2, $3, 0, 0, TRUE)
		ON CONFLICT (nim) DO UPDATE SET
			embedding_ref = EXCLUDED.embedding_ref,
			registered_at = EXCLUDED.registered_at,
			failed_attempts = 0,
			is_active = TRUE
		RETURNING ` + enrollmentColumns

	rec, err := scanEnrollment(r.pool.QueryRow(ctx, query, nim, embeddingRef, registeredAt))
	if err != nil {
		return nil, fmt.Errorf("upsert enrollment: %w", err)
	}
	return rec, nil
}

// RecordAttempt applies one verification attempt inside a transaction. The
// row is locked so concurrent attempts cannot lose counter updates.
func (r *EnrollmentRepository) RecordAttempt(ctx context.Context, nim string, success bool, at time.Time, lockoutLimit int) (*database.EnrollmentRecord, error) {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+enrollmentColumns+` FROM face_enrollments WHERE nim = $1 AND is_active FOR UPDATE`, nim)
	rec, err := scanEnrollment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock enrollment: %w", err)
	}

	if success {
		rec.LastVerified = &at
		rec.VerificationCount++
		rec.FailedAttempts = 0
	} else {
		rec.FailedAttempts++
		if rec.FailedAttempts >= lockoutLimit {
			rec.IsActive = false
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE face_enrollments
		SET last_verified = $2, verification_count = $3, failed_attempts = $4, is_active = $5
		WHERE nim = $1`,
		nim, rec.LastVerified, rec.VerificationCount, rec.FailedAttempts, rec.IsActive)
	if err != nil {
		return nil, fmt.Errorf("update enrollment counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit verification attempt: %w", err)
	}
	return rec, nil
}

// SetActive toggles the is_active flag; enabling resets failed_attempts.
func (r *EnrollmentRepository) SetActive(ctx context.Context, nim string, active bool) (*database.EnrollmentRecord, error) {
	query := `
		UPDATE face_enrollments
		SET is_active = $2,
		    failed_attempts = CASE WHEN $2 THEN 0 ELSE failed_attempts END
		WHERE nim = $1
		RETURNING ` + enrollmentColumns

	rec, err := scanEnrollment(r.pool.QueryRow(ctx, query, nim, active))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("toggle enrollment: %w", err)
	}
	return rec, nil
}

// Delete removes the enrollment row.
func (r *EnrollmentRepository) Delete(ctx context.Context, nim string) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM face_enrollments WHERE nim = $1", nim)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if affected == 0 {
		return database.ErrNotFound
	}
	return nil
}
