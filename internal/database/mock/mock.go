// Package mock provides in-memory implementations of the store interfaces
// for handler and service tests.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aditpras/campus-attendance/internal/attendance"
	"github.com/aditpras/campus-attendance/internal/database"
)

// EnrollmentStore is an in-memory database.EnrollmentStore.
type EnrollmentStore struct {
	mu      sync.RWMutex
	records map[string]*database.EnrollmentRecord

	// Error injection
	GetError     error
	ListError    error
	UpsertError  error
	AttemptError error
	DeleteError  error
}

// NewEnrollmentStore creates an empty enrollment store.
func NewEnrollmentStore() *EnrollmentStore {
	return &EnrollmentStore{records: make(map[string]*database.EnrollmentRecord)}
}

// Add seeds a record directly, bypassing Upsert semantics.
func (m *EnrollmentStore) Add(record database.EnrollmentRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.NIM] = &record
}

func (m *EnrollmentStore) Get(ctx context.Context, nim string) (*database.EnrollmentRecord, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[nim]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (m *EnrollmentStore) List(ctx context.Context, active *bool) ([]database.EnrollmentRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []database.EnrollmentRecord
	for _, record := range m.records {
		if active != nil && record.IsActive != *active {
			continue
		}
		records = append(records, *record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].RegisteredAt.After(records[j].RegisteredAt)
	})
	return records, nil
}

func (m *EnrollmentStore) Upsert(ctx context.Context, nim, embeddingRef string, registeredAt time.Time) (*database.EnrollmentRecord, error) {
	if m.UpsertError != nil {
		return nil, m.UpsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[nim]
	if !ok {
		record = &database.EnrollmentRecord{NIM: nim}
		m.records[nim] = record
	}
	record.EmbeddingRef = embeddingRef
	record.RegisteredAt = registeredAt
	record.FailedAttempts = 0
	record.IsActive = true

	copied := *record
	return &copied, nil
}

func (m *EnrollmentStore) RecordAttempt(ctx context.Context, nim string, success bool, at time.Time, lockoutLimit int) (*database.EnrollmentRecord, error) {
	if m.AttemptError != nil {
		return nil, m.AttemptError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[nim]
	if !ok || !record.IsActive {
		return nil, database.ErrNotFound
	}

	if success {
		t := at
		record.LastVerified = &t
		record.VerificationCount++
		record.FailedAttempts = 0
	} else {
		record.FailedAttempts++
		if record.FailedAttempts >= lockoutLimit {
			record.IsActive = false
		}
	}

	copied := *record
	return &copied, nil
}

func (m *EnrollmentStore) SetActive(ctx context.Context, nim string, active bool) (*database.EnrollmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[nim]
	if !ok {
		return nil, database.ErrNotFound
	}
	record.IsActive = active
	if active {
		record.FailedAttempts = 0
	}
	copied := *record
	return &copied, nil
}

func (m *EnrollmentStore) Delete(ctx context.Context, nim string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[nim]; !ok {
		return database.ErrNotFound
	}
	delete(m.records, nim)
	return nil
}

// VerificationEventStore is an in-memory database.VerificationEventStore.
type VerificationEventStore struct {
	mu     sync.RWMutex
	events []database.VerificationEvent

	SaveError error
}

// NewVerificationEventStore creates an empty event store.
func NewVerificationEventStore() *VerificationEventStore {
	return &VerificationEventStore{}
}

func (m *VerificationEventStore) SaveEvent(ctx context.Context, event database.VerificationEvent) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *VerificationEventStore) EventsByNIM(ctx context.Context, nim string, limit int) ([]database.VerificationEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var events []database.VerificationEvent
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].NIM != nim {
			continue
		}
		events = append(events, m.events[i])
		if limit > 0 && len(events) >= limit {
			break
		}
	}
	return events, nil
}

// All returns every saved event in insertion order.
func (m *VerificationEventStore) All() []database.VerificationEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]database.VerificationEvent(nil), m.events...)
}

// ReferenceDirectory is an in-memory database.ReferenceDirectory.
type ReferenceDirectory struct {
	mu       sync.RWMutex
	students map[string]database.StudentRef
	classes  map[int64]database.ClassRef
	courses  map[string]database.CourseRef

	StudentError error
}

// NewReferenceDirectory creates an empty directory.
func NewReferenceDirectory() *ReferenceDirectory {
	return &ReferenceDirectory{
		students: make(map[string]database.StudentRef),
		classes:  make(map[int64]database.ClassRef),
		courses:  make(map[string]database.CourseRef),
	}
}

// AddStudent seeds a student.
func (m *ReferenceDirectory) AddStudent(student database.StudentRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[student.NIM] = student
}

// AddClass seeds a class.
func (m *ReferenceDirectory) AddClass(class database.ClassRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classes[class.ID] = class
}

// AddCourse seeds a course.
func (m *ReferenceDirectory) AddCourse(course database.CourseRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courses[course.Code] = course
}

func (m *ReferenceDirectory) StudentExists(ctx context.Context, nim string) (bool, error) {
	if m.StudentError != nil {
		return false, m.StudentError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.students[nim]
	return ok, nil
}

func (m *ReferenceDirectory) Student(ctx context.Context, nim string) (*database.StudentRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	student, ok := m.students[nim]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &student, nil
}

func (m *ReferenceDirectory) ClassStudents(ctx context.Context, classID int64) ([]database.StudentRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var students []database.StudentRef
	for _, student := range m.students {
		if student.ClassID == classID {
			students = append(students, student)
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].NIM < students[j].NIM })
	return students, nil
}

func (m *ReferenceDirectory) Class(ctx context.Context, classID int64) (*database.ClassRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	class, ok := m.classes[classID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &class, nil
}

func (m *ReferenceDirectory) Course(ctx context.Context, code string) (*database.CourseRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	course, ok := m.courses[code]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &course, nil
}

// AttendanceStore is an in-memory attendance.Store.
type AttendanceStore struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]*attendance.Record

	directory *ReferenceDirectory // for joining student names, may be nil

	CreateError error
	ListError   error
}

// NewAttendanceStore creates an empty attendance store. The directory is
// used to join student and class names into reads, mirroring the SQL joins.
func NewAttendanceStore(directory *ReferenceDirectory) *AttendanceStore {
	return &AttendanceStore{
		nextID:    1,
		records:   make(map[int64]*attendance.Record),
		directory: directory,
	}
}

func sameSession(r *attendance.Record, key attendance.SessionKey) bool {
	return r.CourseCode == key.CourseCode &&
		r.Date.Format("2006-01-02") == key.Date.Format("2006-01-02") &&
		r.MeetingNo == key.MeetingNo
}

func (m *AttendanceStore) SessionExists(ctx context.Context, key attendance.SessionKey) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records {
		if sameSession(r, key) {
			return true, nil
		}
	}
	return false, nil
}

func (m *AttendanceStore) CreateRecords(ctx context.Context, records []attendance.Record) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range records {
		r := records[i]
		r.ID = m.nextID
		m.nextID++
		m.records[r.ID] = &r
	}
	return nil
}

func (m *AttendanceStore) SessionRecords(ctx context.Context, key attendance.SessionKey) ([]attendance.Record, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []attendance.Record
	for _, r := range m.records {
		if !sameSession(r, key) {
			continue
		}
		copied := *r
		if m.directory != nil {
			if student, err := m.directory.Student(ctx, r.NIM); err == nil {
				copied.StudentName = student.Name
			}
		}
		records = append(records, copied)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].NIM < records[j].NIM })
	return records, nil
}

func (m *AttendanceStore) ExpireUnmarked(ctx context.Context, key attendance.SessionKey, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, r := range m.records {
		if sameSession(r, key) && r.ExpiredAt(now) {
			r.Status = attendance.StatusAbsent
			count++
		}
	}
	return count, nil
}

func (m *AttendanceStore) MarkRecord(ctx context.Context, recordID int64, status attendance.Status, at time.Time) (*attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[recordID]
	if !ok {
		return nil, database.ErrNotFound
	}
	r.Status = status
	t := at
	r.MarkedAt = &t

	copied := *r
	return &copied, nil
}

func (m *AttendanceStore) DeleteSession(ctx context.Context, key attendance.SessionKey) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for id, r := range m.records {
		if sameSession(r, key) {
			delete(m.records, id)
			count++
		}
	}
	return count, nil
}

func (m *AttendanceStore) ListSummaries(ctx context.Context, filter attendance.Filter) ([]attendance.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type aggKey struct {
		course  string
		date    string
		meeting int
	}
	aggregates := make(map[aggKey]*attendance.Summary)

	for _, r := range m.records {
		if filter.CourseCode != "" && r.CourseCode != filter.CourseCode {
			continue
		}
		if filter.MeetingNo != 0 && r.MeetingNo != filter.MeetingNo {
			continue
		}

		k := aggKey{r.CourseCode, r.Date.Format("2006-01-02"), r.MeetingNo}
		summary, ok := aggregates[k]
		if !ok {
			summary = &attendance.Summary{
				CourseCode: r.CourseCode,
				Date:       r.Date,
				MeetingNo:  r.MeetingNo,
				StartTime:  r.StartTime,
				EndTime:    r.EndTime,
			}
			if m.directory != nil {
				if course, err := m.directory.Course(ctx, r.CourseCode); err == nil {
					summary.CourseName = course.Name
				}
				if student, err := m.directory.Student(ctx, r.NIM); err == nil {
					if class, err := m.directory.Class(ctx, student.ClassID); err == nil {
						summary.ClassName = class.Name
					}
				}
			}
			aggregates[k] = summary
		}

		summary.Total++
		switch r.Status {
		case attendance.StatusPresent:
			summary.Present++
		case attendance.StatusAbsent:
			summary.Absent++
		}
	}

	var summaries []attendance.Summary
	for _, s := range aggregates {
		// Filter.ClassName arrives pre-normalized per the Store contract.
		if filter.ClassName != "" && database.NormalizeName(s.ClassName) != filter.ClassName {
			continue
		}
		summaries = append(summaries, *s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].Date.Equal(summaries[j].Date) {
			return summaries[i].Date.After(summaries[j].Date)
		}
		return summaries[i].MeetingNo > summaries[j].MeetingNo
	})
	return summaries, nil
}
