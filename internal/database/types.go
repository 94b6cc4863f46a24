package database

import (
	"time"
)

// EnrollmentRecord is the face-registration row for one student. Exactly one
// record exists per NIM (the institutional student number).
type EnrollmentRecord struct {
	NIM               string
	EmbeddingRef      string // key of the stored vector in the embedding store
	RegisteredAt      time.Time
	LastVerified      *time.Time
	VerificationCount int
	FailedAttempts    int
	IsActive          bool
}

// VerificationEvent is one persisted verification attempt, kept as an audit
// trail alongside the counters on the enrollment record.
type VerificationEvent struct {
	ID         string // uuid
	NIM        string
	Confidence float64 // percent scale, as submitted by the caller
	Success    bool
	Message    string
	CreatedAt  time.Time
}

// StudentRef is a student as known to the campus reference directory.
type StudentRef struct {
	ID      int64
	NIM     string
	Name    string
	ClassID int64
}

// CourseRef is a course as known to the campus reference directory.
type CourseRef struct {
	Code string
	Name string
}

// ClassRef is a class (student group) as known to the campus reference directory.
type ClassRef struct {
	ID   int64
	Name string
}
