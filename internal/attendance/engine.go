package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aditpras/campus-attendance/internal/database"
)

var (
	// ErrCourseNotFound means the course code does not resolve.
	ErrCourseNotFound = errors.New("course not found")
	// ErrClassNotFound means the class ID does not resolve.
	ErrClassNotFound = errors.New("class not found")
	// ErrEmptyClass means the class has no students to generate records for.
	ErrEmptyClass = errors.New("class has no students")
	// ErrDuplicateSession means a session already exists for the key.
	ErrDuplicateSession = errors.New("session already generated")
	// ErrSessionNotFound means no records exist for the session key.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRecordNotFound means the attendance record ID does not exist.
	ErrRecordNotFound = errors.New("attendance record not found")
)

// maxMeetingNo bounds the meeting number; a semester has at most 16 course
// meetings including exams.
const maxMeetingNo = 16

// Engine drives the attendance session lifecycle against the record store
// and the campus reference directory.
type Engine struct {
	store     Store
	directory database.ReferenceDirectory

	now func() time.Time
}

// NewEngine creates the session engine.
func NewEngine(store Store, directory database.ReferenceDirectory) *Engine {
	return &Engine{store: store, directory: directory, now: time.Now}
}

// parseClock validates an "HH:MM" string.
func parseClock(s string) (time.Time, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	return t, nil
}

// validateGenerate checks the request fields before touching storage.
func validateGenerate(req GenerateRequest) error {
	if req.CourseCode == "" {
		return errors.New("course code is required")
	}
	if req.MeetingNo < 1 || req.MeetingNo > maxMeetingNo {
		return fmt.Errorf("meeting number %d out of range 1-%d", req.MeetingNo, maxMeetingNo)
	}
	if req.Date.IsZero() {
		return errors.New("date is required")
	}
	start, err := parseClock(req.StartTime)
	if err != nil {
		return err
	}
	end, err := parseClock(req.EndTime)
	if err != nil {
		return err
	}
	if !end.After(start) {
		return fmt.Errorf("end time %s is not after start time %s", req.EndTime, req.StartTime)
	}
	return nil
}

// GenerateSession creates one unmarked record per student of the class for
// the requested meeting. At most one session may exist per (course, date,
// meeting) triple.
func (e *Engine) GenerateSession(ctx context.Context, req GenerateRequest) (*GenerateSummary, error) {
	if err := validateGenerate(req); err != nil {
		return nil, err
	}

	course, err := e.directory.Course(ctx, req.CourseCode)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve course %s: %w", req.CourseCode, err)
	}

	class, err := e.directory.Class(ctx, req.ClassID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrClassNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve class %d: %w", req.ClassID, err)
	}

	key := SessionKey{CourseCode: req.CourseCode, Date: req.Date, MeetingNo: req.MeetingNo}
	exists, err := e.store.SessionExists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("check existing session: %w", err)
	}
	if exists {
		return nil, ErrDuplicateSession
	}

	students, err := e.directory.ClassStudents(ctx, req.ClassID)
	if err != nil {
		return nil, fmt.Errorf("list students of class %d: %w", req.ClassID, err)
	}
	if len(students) == 0 {
		return nil, ErrEmptyClass
	}

	records := make([]Record, 0, len(students))
	for _, student := range students {
		records = append(records, Record{
			NIM:        student.NIM,
			CourseCode: req.CourseCode,
			Date:       req.Date,
			MeetingNo:  req.MeetingNo,
			Status:     StatusUnmarked,
			StartTime:  req.StartTime,
			EndTime:    req.EndTime,
		})
	}

	if err := e.store.CreateRecords(ctx, records); err != nil {
		return nil, fmt.Errorf("create attendance records: %w", err)
	}

	return &GenerateSummary{
		ClassName:  class.Name,
		CourseCode: course.Code,
		CourseName: course.Name,
		Date:       req.Date,
		MeetingNo:  req.MeetingNo,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Students:   len(records),
	}, nil
}

// SweepExpired transitions the session's stale unmarked records to absent.
// Idempotent; returns the number of records flipped this call.
func (e *Engine) SweepExpired(ctx context.Context, key SessionKey) (int, error) {
	n, err := e.store.ExpireUnmarked(ctx, key, e.now())
	if err != nil {
		return 0, fmt.Errorf("expire unmarked records: %w", err)
	}
	return n, nil
}

// SessionDetail returns per-student statuses for a session, ordered by NIM.
// This read mutates: it first runs the expiry sweep so records whose window
// elapsed come back absent and stay absent.
func (e *Engine) SessionDetail(ctx context.Context, key SessionKey) ([]MemberStatus, error) {
	if _, err := e.SweepExpired(ctx, key); err != nil {
		return nil, err
	}

	records, err := e.store.SessionRecords(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read session records: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrSessionNotFound
	}

	members := make([]MemberStatus, 0, len(records))
	for _, r := range records {
		members = append(members, MemberStatus{
			RecordID:    r.ID,
			NIM:         r.NIM,
			StudentName: r.StudentName,
			Status:      r.Status,
			MarkedAt:    r.MarkedAt,
		})
	}
	return members, nil
}

// MarkStatus overwrites a record's status and stamps the given time.
// Deliberately unconditional: a lecturer may flip an auto-expired absent
// record back to present as a manual correction.
func (e *Engine) MarkStatus(ctx context.Context, recordID int64, status Status, at time.Time) (*Record, error) {
	if status != StatusPresent && status != StatusAbsent {
		return nil, fmt.Errorf("status %q cannot be set explicitly", status)
	}

	record, err := e.store.MarkRecord(ctx, recordID, status, at)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mark record %d: %w", recordID, err)
	}
	return record, nil
}

// DeleteSession removes every record of the session and reports the count.
func (e *Engine) DeleteSession(ctx context.Context, key SessionKey) (int, error) {
	count, err := e.store.DeleteSession(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("delete session records: %w", err)
	}
	if count == 0 {
		return 0, ErrSessionNotFound
	}
	return count, nil
}

// ListSessions returns session summaries matching the filter, newest first.
// The class filter is normalized before it reaches the store (lowercase, no
// diacritics, collapsed whitespace), so a typed "tí-3a " still finds "TI-3A".
func (e *Engine) ListSessions(ctx context.Context, filter Filter) ([]Summary, error) {
	filter.ClassName = database.NormalizeName(filter.ClassName)
	summaries, err := e.store.ListSummaries(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return summaries, nil
}
