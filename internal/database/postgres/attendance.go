package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/aditpras/campus-attendance/internal/attendance"
	"github.com/aditpras/campus-attendance/internal/database"
)

// isUniqueViolation reports whether err is a unique-constraint violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// AttendanceRepository is the PostgreSQL attendance.Store.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

const dateLayout = "2006-01-02"

// SessionExists reports whether any record exists for the session key.
func (r *AttendanceRepository) SessionExists(ctx context.Context, key attendance.SessionKey) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM attendance
			WHERE course_code = $1 AND date = $2 AND meeting_no = $3
		)`,
		key.CourseCode, key.Date.Format(dateLayout), key.MeetingNo).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check session exists: %w", err)
	}
	return exists, nil
}

// CreateRecords inserts the generated records for one session in a single
// transaction.
func (r *AttendanceRepository) CreateRecords(ctx context.Context, records []attendance.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO attendance (nim, course_code, date, meeting_no, status, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if err != nil {
		return fmt.Errorf("prepare attendance insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.ExecContext(ctx,
			rec.NIM, rec.CourseCode, rec.Date.Format(dateLayout),
			rec.MeetingNo, rec.Status, rec.StartTime, rec.EndTime)
		if err != nil {
			// Two concurrent generates can both pass the existence check;
			// the loser trips the session unique constraint here.
			if isUniqueViolation(err) {
				return attendance.ErrDuplicateSession
			}
			return fmt.Errorf("insert attendance record for %s: %w", rec.NIM, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attendance records: %w", err)
	}
	return nil
}

func scanAttendance(row interface{ Scan(...any) error }) (*attendance.Record, error) {
	var rec attendance.Record
	var name sql.NullString
	var markedAt sql.NullTime
	err := row.Scan(
		&rec.ID,
		&rec.NIM,
		&name,
		&rec.CourseCode,
		&rec.Date,
		&rec.MeetingNo,
		&rec.Status,
		&rec.StartTime,
		&rec.EndTime,
		&markedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.StudentName = name.String
	if markedAt.Valid {
		rec.MarkedAt = &markedAt.Time
	}
	return &rec, nil
}

// SessionRecords returns the session's records with student names joined in,
// ordered by NIM.
func (r *AttendanceRepository) SessionRecords(ctx context.Context, key attendance.SessionKey) ([]attendance.Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.nim, s.name, a.course_code, a.date, a.meeting_no,
		       a.status, a.start_time, a.end_time, a.marked_at
		FROM attendance a
		LEFT JOIN students s ON s.nim = a.nim
		WHERE a.course_code = $1 AND a.date = $2 AND a.meeting_no = $3
		ORDER BY a.nim`,
		key.CourseCode, key.Date.Format(dateLayout), key.MeetingNo)
	if err != nil {
		return nil, fmt.Errorf("query session records: %w", err)
	}
	defer rows.Close()

	var records []attendance.Record
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance records: %w", err)
	}
	return records, nil
}

// ExpireUnmarked flips the session's stale unmarked records to absent in one
// statement. The end-of-window comparison uses the stored "HH:MM" strings,
// which order lexicographically.
func (r *AttendanceRepository) ExpireUnmarked(ctx context.Context, key attendance.SessionKey, now time.Time) (int, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE attendance
		SET status = $4
		WHERE course_code = $1 AND date = $2 AND meeting_no = $3
		  AND status = $5
		  AND (date < $6::date OR (date = $6::date AND end_time < $7))`,
		key.CourseCode, key.Date.Format(dateLayout), key.MeetingNo,
		attendance.StatusAbsent, attendance.StatusUnmarked,
		now.Format(dateLayout), now.Format("15:04"))
	if err != nil {
		return 0, fmt.Errorf("expire unmarked records: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire unmarked records: %w", err)
	}
	return int(affected), nil
}

// MarkRecord overwrites a record's status unconditionally.
func (r *AttendanceRepository) MarkRecord(ctx context.Context, recordID int64, status attendance.Status, at time.Time) (*attendance.Record, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		UPDATE attendance
		SET status = $2, marked_at = $3
		WHERE id = $1
		RETURNING id`,
		recordID, status, at).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mark attendance record: %w", err)
	}

	rec, err := scanAttendance(r.pool.QueryRow(ctx, `
		SELECT a.id, a.nim, s.name, a.course_code, a.date, a.meeting_no,
		       a.status, a.start_time, a.end_time, a.marked_at
		FROM attendance a
		LEFT JOIN students s ON s.nim = a.nim
		WHERE a.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("read marked record: %w", err)
	}
	return rec, nil
}

// DeleteSession removes all records of a session.
func (r *AttendanceRepository) DeleteSession(ctx context.Context, key attendance.SessionKey) (int, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM attendance
		WHERE course_code = $1 AND date = $2 AND meeting_no = $3`,
		key.CourseCode, key.Date.Format(dateLayout), key.MeetingNo)
	if err != nil {
		return 0, fmt.Errorf("delete session records: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete session records: %w", err)
	}
	return int(affected), nil
}

// ListSummaries aggregates sessions matching the filter, newest first.
func (r *AttendanceRepository) ListSummaries(ctx context.Context, filter attendance.Filter) ([]attendance.Summary, error) {
	query := `
		SELECT a.course_code,
		       COALESCE(MIN(c.name), ''),
		       COALESCE(MIN(cl.name), ''),
		       a.date, a.meeting_no,
		       MIN(a.start_time), MIN(a.end_time),
		       COUNT(*),
		       COUNT(*) FILTER (WHERE a.status = $1),
		       COUNT(*) FILTER (WHERE a.status = $2)
		FROM attendance a
		LEFT JOIN courses c ON c.code = a.course_code
		LEFT JOIN students s ON s.nim = a.nim
		LEFT JOIN classes cl ON cl.id = s.class_id
		WHERE 1=1`
	args := []any{attendance.StatusPresent, attendance.StatusAbsent}

	if filter.CourseCode != "" {
		args = append(args, filter.CourseCode)
		query += fmt.Sprintf(" AND a.course_code = $%d", len(args))
	}
	if filter.MeetingNo != 0 {
		args = append(args, filter.MeetingNo)
		query += fmt.Sprintf(" AND a.meeting_no = $%d", len(args))
	}
	if filter.ClassName != "" {
		// Filter.ClassName arrives normalized (database.NormalizeName);
		// unaccent mirrors the diacritics stripping on the stored name.
		args = append(args, filter.ClassName)
		query += fmt.Sprintf(" AND LOWER(unaccent(TRIM(cl.name))) = $%d", len(args))
	}

	query += `
		GROUP BY a.course_code, a.date, a.meeting_no
		ORDER BY a.date DESC, a.meeting_no DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list session summaries: %w", err)
	}
	defer rows.Close()

	var summaries []attendance.Summary
	for rows.Next() {
		var s attendance.Summary
		err := rows.Scan(
			&s.CourseCode, &s.CourseName, &s.ClassName,
			&s.Date, &s.MeetingNo, &s.StartTime, &s.EndTime,
			&s.Total, &s.Present, &s.Absent,
		)
		if err != nil {
			return nil, fmt.Errorf("scan session summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session summaries: %w", err)
	}
	return summaries, nil
}
