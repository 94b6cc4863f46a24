package attendance

import (
	"context"
	"time"
)

// Store persists attendance records. Implementations live in
// internal/database/postgres and internal/database/mock.
type Store interface {
	// SessionExists reports whether any record exists for the session key.
	SessionExists(ctx context.Context, key SessionKey) (bool, error)

	// CreateRecords inserts the generated records for one session. Returns
	// ErrDuplicateSession when a concurrent generate already inserted the
	// session between the existence check and this call.
	CreateRecords(ctx context.Context, records []Record) error

	// SessionRecords returns all records of a session with student names
	// joined in, ordered by NIM. An unknown session yields an empty slice.
	SessionRecords(ctx context.Context, key SessionKey) ([]Record, error)

	// ExpireUnmarked transitions every unmarked record of the session whose
	// window has elapsed at now to absent, in one statement. Returns the
	// number of rows changed; calling it again is a no-op.
	ExpireUnmarked(ctx context.Context, key SessionKey, now time.Time) (int, error)

	// MarkRecord overwrites a record's status unconditionally and stamps
	// the given time. Returns database.ErrNotFound for unknown IDs.
	MarkRecord(ctx context.Context, recordID int64, status Status, at time.Time) (*Record, error)

	// DeleteSession removes all records of a session, returning the count.
	DeleteSession(ctx context.Context, key SessionKey) (int, error)

	// ListSummaries aggregates sessions matching the filter, newest first.
	// Filter.ClassName arrives already normalized (database.NormalizeName);
	// implementations must apply the same normalization to stored class
	// names before comparing.
	ListSummaries(ctx context.Context, filter Filter) ([]Summary, error)
}
