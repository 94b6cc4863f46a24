package postgres

import (
	"context"
	"fmt"

	"github.com/aditpras/campus-attendance/internal/database"
)

// EventRepository appends verification attempts to the audit trail.
type EventRepository struct {
	pool *Pool
}

// NewEventRepository creates a new verification event repository.
func NewEventRepository(pool *Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// SaveEvent inserts one verification attempt.
func (r *EventRepository) SaveEvent(ctx context.Context, event database.VerificationEvent) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO face_verification_events (id, nim, confidence, success, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.NIM, event.Confidence, event.Success, event.Message, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert verification event: %w", err)
	}
	return nil
}

// EventsByNIM returns the most recent events for a student, newest first.
// A non-positive limit returns everything.
func (r *EventRepository) EventsByNIM(ctx context.Context, nim string, limit int) ([]database.VerificationEvent, error) {
	query := `
		SELECT id, nim, confidence, success, message, created_at
		FROM face_verification_events
		WHERE nim = $1
		ORDER BY created_at DESC`
	args := []any{nim}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query verification events: %w", err)
	}
	defer rows.Close()

	var events []database.VerificationEvent
	for rows.Next() {
		var e database.VerificationEvent
		if err := rows.Scan(&e.ID, &e.NIM, &e.Confidence, &e.Success, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan verification event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification events: %w", err)
	}
	return events, nil
}
