package attendance

import "time"

// SessionKey identifies one class meeting: at most one session may exist
// per (course, date, meeting number) triple.
type SessionKey struct {
	CourseCode string
	Date       time.Time // date component only
	MeetingNo  int
}

// Record is one student's attendance row for a session. Every record
// carries the session's scheduled window so the expiry sweep can evaluate
// it without a separate session table.
type Record struct {
	ID          int64      `json:"id"`
	NIM         string     `json:"nim"`
	StudentName string     `json:"student_name,omitempty"`
	CourseCode  string     `json:"course_code"`
	Date        time.Time  `json:"date"`
	MeetingNo   int        `json:"meeting_no"`
	Status      Status     `json:"status"`
	StartTime   string     `json:"start_time"` // "HH:MM"
	EndTime     string     `json:"end_time"`   // "HH:MM"
	MarkedAt    *time.Time `json:"marked_at,omitempty"`
}

// ExpiredAt reports whether an unmarked record's session window has elapsed
// at the given time: the session date is in the past, or it is today and the
// clock is past the end time. Non-unmarked records never expire.
func (r Record) ExpiredAt(now time.Time) bool {
	if r.Status != StatusUnmarked {
		return false
	}
	recDate := time.Date(r.Date.Year(), r.Date.Month(), r.Date.Day(), 0, 0, 0, 0, now.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if recDate.Before(today) {
		return true
	}
	if !recDate.Equal(today) {
		return false
	}
	end, err := time.Parse("15:04", r.EndTime)
	if err != nil {
		return false
	}
	endAt := time.Date(now.Year(), now.Month(), now.Day(), end.Hour(), end.Minute(), 0, 0, now.Location())
	return now.After(endAt)
}

// MemberStatus is one row of a session detail read.
type MemberStatus struct {
	RecordID    int64      `json:"record_id"`
	NIM         string     `json:"nim"`
	StudentName string     `json:"student_name"`
	Status      Status     `json:"status"`
	MarkedAt    *time.Time `json:"marked_at,omitempty"`
}

// Summary aggregates one session for list views.
type Summary struct {
	CourseCode string    `json:"course_code"`
	CourseName string    `json:"course_name"`
	ClassName  string    `json:"class_name"`
	Date       time.Time `json:"date"`
	MeetingNo  int       `json:"meeting_no"`
	StartTime  string    `json:"start_time"`
	EndTime    string    `json:"end_time"`
	Total      int       `json:"total"`
	Present    int       `json:"present"`
	Absent     int       `json:"absent"`
}

// Filter narrows ListSessions output. Zero values mean no filtering.
type Filter struct {
	ClassName  string
	CourseCode string
	MeetingNo  int
}

// GenerateRequest describes the session to generate.
type GenerateRequest struct {
	ClassID    int64     `json:"class_id"`
	CourseCode string    `json:"course_code"`
	Date       time.Time `json:"date"`
	MeetingNo  int       `json:"meeting_no"`
	StartTime  string    `json:"start_time"` // "HH:MM"
	EndTime    string    `json:"end_time"`   // "HH:MM"
}

// GenerateSummary reports what a successful generation created.
type GenerateSummary struct {
	ClassName  string    `json:"class_name"`
	CourseCode string    `json:"course_code"`
	CourseName string    `json:"course_name"`
	Date       time.Time `json:"date"`
	MeetingNo  int       `json:"meeting_no"`
	StartTime  string    `json:"start_time"`
	EndTime    string    `json:"end_time"`
	Students   int       `json:"students"`
}
