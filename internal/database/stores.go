package database

import (
	"context"
	"time"
)

// EnrollmentStore persists face-registration metadata rows.
type EnrollmentStore interface {
	// Get retrieves the enrollment record for a NIM.
	// Returns ErrNotFound if the student has no enrollment.
	Get(ctx context.Context, nim string) (*EnrollmentRecord, error)

	// List returns all enrollment records ordered by registration time,
	// newest first. When active is non-nil, only records with a matching
	// is_active flag are returned.
	List(ctx context.Context, active *bool) ([]EnrollmentRecord, error)

	// Upsert creates or replaces the enrollment record for a NIM. On an
	// existing record the embedding reference and registration time are
	// overwritten, failed_attempts is reset to zero and is_active set true;
	// verification counters survive re-enrollment.
	Upsert(ctx context.Context, nim, embeddingRef string, registeredAt time.Time) (*EnrollmentRecord, error)

	// RecordAttempt applies one verification attempt to the record inside a
	// single transaction (the counters race otherwise). On success the
	// record gets last_verified=at, verification_count+1 and
	// failed_attempts=0; on failure failed_attempts+1 and, once the count
	// reaches lockoutLimit, is_active=false. Returns ErrNotFound when no
	// active enrollment exists for the NIM.
	RecordAttempt(ctx context.Context, nim string, success bool, at time.Time, lockoutLimit int) (*EnrollmentRecord, error)

	// SetActive toggles the is_active flag. Enabling also resets
	// failed_attempts to zero so a stale counter cannot re-trigger lockout
	// on the next failure. Returns ErrNotFound for unknown NIMs.
	SetActive(ctx context.Context, nim string, active bool) (*EnrollmentRecord, error)

	// Delete removes the enrollment record. Returns ErrNotFound when no row
	// was deleted. The embedding vector is owned by the embedding store and
	// must be removed separately by the caller.
	Delete(ctx context.Context, nim string) error
}

// VerificationEventStore appends verification attempts to the audit trail.
type VerificationEventStore interface {
	SaveEvent(ctx context.Context, event VerificationEvent) error

	// EventsByNIM returns the most recent events for a student, newest first.
	EventsByNIM(ctx context.Context, nim string, limit int) ([]VerificationEvent, error)
}

// ReferenceDirectory resolves students, classes and courses. The directory is
// owned by the campus academic system; this service only reads it.
type ReferenceDirectory interface {
	StudentExists(ctx context.Context, nim string) (bool, error)

	// Student returns the directory entry for a NIM, ErrNotFound if unknown.
	Student(ctx context.Context, nim string) (*StudentRef, error)

	// ClassStudents returns all students of a class ordered by NIM.
	ClassStudents(ctx context.Context, classID int64) ([]StudentRef, error)

	// Class returns the class entry, ErrNotFound if unknown.
	Class(ctx context.Context, classID int64) (*ClassRef, error)

	// Course returns the course entry, ErrNotFound if unknown.
	Course(ctx context.Context, code string) (*CourseRef, error)
}
