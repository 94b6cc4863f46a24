package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aditpras/campus-attendance/internal/attendance"
)

// AttendanceHandler handles attendance session endpoints.
type AttendanceHandler struct {
	engine *attendance.Engine
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(engine *attendance.Engine) *AttendanceHandler {
	return &AttendanceHandler{engine: engine}
}

const dateLayout = "2006-01-02"

// GenerateRequest is the session generation payload.
type GenerateRequest struct {
	ClassID    int64  `json:"class_id"`
	CourseCode string `json:"course_code"`
	Date       string `json:"date"` // YYYY-MM-DD
	MeetingNo  int    `json:"meeting_no"`
	StartTime  string `json:"start_time"` // HH:MM
	EndTime    string `json:"end_time"`   // HH:MM
}

// Generate creates one unmarked record per student of the class.
func (h *AttendanceHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	summary, err := h.engine.GenerateSession(r.Context(), attendance.GenerateRequest{
		ClassID:    req.ClassID,
		CourseCode: req.CourseCode,
		Date:       date,
		MeetingNo:  req.MeetingNo,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
	})
	switch {
	case errors.Is(err, attendance.ErrCourseNotFound):
		respondError(w, http.StatusNotFound, "course not found")
		return
	case errors.Is(err, attendance.ErrClassNotFound):
		respondError(w, http.StatusNotFound, "class not found")
		return
	case errors.Is(err, attendance.ErrEmptyClass):
		respondError(w, http.StatusBadRequest, "class has no students")
		return
	case errors.Is(err, attendance.ErrDuplicateSession):
		respondError(w, http.StatusConflict, "session already generated")
		return
	case err != nil:
		if isValidationError(err) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("generating session: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to generate session")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "attendance session generated",
		"session": summary,
	})
}

// isValidationError distinguishes request validation failures from storage
// faults. Validation errors surface before any store call and carry no
// wrapped cause.
func isValidationError(err error) bool {
	return errors.Unwrap(err) == nil
}

// sessionKeyFromURL parses the {course}/{date}/{meeting} path segments.
func sessionKeyFromURL(w http.ResponseWriter, r *http.Request) (attendance.SessionKey, bool) {
	course := chi.URLParam(r, "course")

	date, err := time.Parse(dateLayout, chi.URLParam(r, "date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return attendance.SessionKey{}, false
	}

	meeting, err := strconv.Atoi(chi.URLParam(r, "meeting"))
	if err != nil || meeting < 1 {
		respondError(w, http.StatusBadRequest, "meeting must be a positive integer")
		return attendance.SessionKey{}, false
	}

	return attendance.SessionKey{CourseCode: course, Date: date, MeetingNo: meeting}, true
}

// List returns session summaries matching the query filters.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := attendance.Filter{
		ClassName:  r.URL.Query().Get("class"),
		CourseCode: r.URL.Query().Get("course"),
	}
	if raw := r.URL.Query().Get("meeting"); raw != "" {
		meeting, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "meeting must be an integer")
			return
		}
		filter.MeetingNo = meeting
	}

	summaries, err := h.engine.ListSessions(r.Context(), filter)
	if err != nil {
		log.Printf("listing sessions: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"sessions": summaries,
		"count":    len(summaries),
	})
}

// Detail returns per-student statuses for a session, sweeping expired
// records first.
func (h *AttendanceHandler) Detail(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKeyFromURL(w, r)
	if !ok {
		return
	}

	members, err := h.engine.SessionDetail(r.Context(), key)
	if errors.Is(err, attendance.ErrSessionNotFound) {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		log.Printf("reading session detail: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to read session")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"course_code": key.CourseCode,
		"date":        key.Date.Format(dateLayout),
		"meeting_no":  key.MeetingNo,
		"members":     members,
		"count":       len(members),
	})
}

// MarkRequest sets a record's attendance status.
type MarkRequest struct {
	Status string `json:"status"`
}

// Mark overwrites one record's status.
func (h *AttendanceHandler) Mark(w http.ResponseWriter, r *http.Request) {
	recordID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "record id must be an integer")
		return
	}

	var req MarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	status, err := attendance.ParseStatus(req.Status)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.engine.MarkStatus(r.Context(), recordID, status, time.Now())
	if errors.Is(err, attendance.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "attendance record not found")
		return
	}
	if err != nil {
		log.Printf("marking record %d: %v", recordID, err)
		respondError(w, http.StatusInternalServerError, "failed to mark attendance")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message": "attendance updated",
		"record":  record,
	})
}

// Delete removes every record of a session.
func (h *AttendanceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKeyFromURL(w, r)
	if !ok {
		return
	}

	count, err := h.engine.DeleteSession(r.Context(), key)
	if errors.Is(err, attendance.ErrSessionNotFound) {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		log.Printf("deleting session: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message": "session deleted",
		"deleted": count,
	})
}
