package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aditpras/campus-attendance/internal/database"
	"github.com/aditpras/campus-attendance/internal/face"
)

// FacesHandler handles enrollment, identification and verification endpoints.
type FacesHandler struct {
	enrollment   *face.EnrollmentService
	verification *face.VerificationService
	matcher      *face.Matcher
	enrollments  database.EnrollmentStore
	events       database.VerificationEventStore

	matchThreshold float64
}

// NewFacesHandler creates a new faces handler.
func NewFacesHandler(
	enrollment *face.EnrollmentService,
	verification *face.VerificationService,
	matcher *face.Matcher,
	enrollments database.EnrollmentStore,
	events database.VerificationEventStore,
	matchThreshold float64,
) *FacesHandler {
	return &FacesHandler{
		enrollment:     enrollment,
		verification:   verification,
		matcher:        matcher,
		enrollments:    enrollments,
		events:         events,
		matchThreshold: matchThreshold,
	}
}

// EnrollmentResponse represents a face enrollment in API responses.
type EnrollmentResponse struct {
	NIM               string     `json:"nim"`
	EmbeddingRef      string     `json:"embedding_ref"`
	RegisteredAt      time.Time  `json:"registered_at"`
	LastVerified      *time.Time `json:"last_verified,omitempty"`
	VerificationCount int        `json:"verification_count"`
	FailedAttempts    int        `json:"failed_attempts"`
	IsActive          bool       `json:"is_active"`
}

func enrollmentToResponse(rec *database.EnrollmentRecord) EnrollmentResponse {
	return EnrollmentResponse{
		NIM:               rec.NIM,
		EmbeddingRef:      rec.EmbeddingRef,
		RegisteredAt:      rec.RegisteredAt,
		LastVerified:      rec.LastVerified,
		VerificationCount: rec.VerificationCount,
		FailedAttempts:    rec.FailedAttempts,
		IsActive:          rec.IsActive,
	}
}

// readImageUpload pulls the "image" file out of a multipart request.
func readImageUpload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return nil, false
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "image file is required")
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read image")
		return nil, false
	}
	return data, true
}

// Enroll registers a student face from an uploaded image.
func (h *FacesHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	imageData, ok := readImageUpload(w, r)
	if !ok {
		return
	}

	nim := r.FormValue("student_nim")
	if nim == "" {
		respondError(w, http.StatusBadRequest, "student_nim is required")
		return
	}

	record, err := h.enrollment.Enroll(r.Context(), nim, imageData)
	switch {
	case errors.Is(err, face.ErrIdentityNotFound):
		respondError(w, http.StatusNotFound, "student not found")
		return
	case errors.Is(err, face.ErrNoFaceDetected):
		respondError(w, http.StatusBadRequest, "no face detected in image")
		return
	case err != nil:
		log.Printf("enrolling %s: %v", sanitizeForLog(nim), err)
		respondError(w, http.StatusInternalServerError, "failed to enroll face")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"message":    "face enrolled successfully",
		"enrollment": enrollmentToResponse(record),
	})
}

// MatchResponse is one ranked gallery candidate.
type MatchResponse struct {
	NIM               string  `json:"nim"`
	Distance          float64 `json:"distance"`
	Confidence        float64 `json:"confidence"`
	ConfidencePercent float64 `json:"confidence_percent"`
}

// Identify extracts a face from the uploaded image and ranks the gallery.
func (h *FacesHandler) Identify(w http.ResponseWriter, r *http.Request) {
	imageData, ok := readImageUpload(w, r)
	if !ok {
		return
	}

	vector, err := h.enrollment.ExtractEmbedding(r.Context(), imageData)
	switch {
	case errors.Is(err, face.ErrNoFaceDetected):
		respondError(w, http.StatusBadRequest, "no face detected in image")
		return
	case err != nil:
		log.Printf("identifying face: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to process image")
		return
	}

	candidates, err := h.matcher.Match(r.Context(), vector, h.matchThreshold)
	if err != nil {
		log.Printf("matching face: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to match face")
		return
	}

	matches := make([]MatchResponse, 0, len(candidates))
	for _, c := range candidates {
		matches = append(matches, MatchResponse{
			NIM:               c.NIM,
			Distance:          c.Distance,
			Confidence:        float64(c.Confidence),
			ConfidencePercent: float64(c.Confidence.Percent()),
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"matches": matches,
		"count":   len(matches),
	})
}

// List returns enrollments, optionally filtered by the active flag.
func (h *FacesHandler) List(w http.ResponseWriter, r *http.Request) {
	var active *bool
	if raw := r.URL.Query().Get("active"); raw != "" {
		switch raw {
		case "true":
			v := true
			active = &v
		case "false":
			v := false
			active = &v
		default:
			respondError(w, http.StatusBadRequest, "active must be true or false")
			return
		}
	}

	records, err := h.enrollments.List(r.Context(), active)
	if err != nil {
		log.Printf("listing enrollments: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list enrollments")
		return
	}

	enrollments := make([]EnrollmentResponse, 0, len(records))
	for i := range records {
		enrollments = append(enrollments, enrollmentToResponse(&records[i]))
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"enrollments": enrollments,
		"count":       len(enrollments),
	})
}

// Get returns one enrollment with its recent verification history.
func (h *FacesHandler) Get(w http.ResponseWriter, r *http.Request) {
	nim := chi.URLParam(r, "nim")

	record, err := h.enrollments.Get(r.Context(), nim)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "enrollment not found")
		return
	}
	if err != nil {
		log.Printf("getting enrollment %s: %v", sanitizeForLog(nim), err)
		respondError(w, http.StatusInternalServerError, "failed to get enrollment")
		return
	}

	events, err := h.events.EventsByNIM(r.Context(), nim, 10)
	if err != nil {
		log.Printf("getting verification events for %s: %v", sanitizeForLog(nim), err)
		events = nil
	}

	history := make([]map[string]any, 0, len(events))
	for _, e := range events {
		history = append(history, map[string]any{
			"confidence": e.Confidence,
			"success":    e.Success,
			"message":    e.Message,
			"created_at": e.CreatedAt,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"enrollment":     enrollmentToResponse(record),
		"recent_history": history,
	})
}

// VerifyRequest is the verification attempt reported by the mobile app.
type VerifyRequest struct {
	NIM             string  `json:"nim"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// Verify records one verification attempt and applies the confidence policy.
func (h *FacesHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.NIM == "" {
		respondError(w, http.StatusBadRequest, "nim is required")
		return
	}

	score := face.Percent(req.ConfidenceScore)
	if !score.Valid() {
		respondError(w, http.StatusBadRequest, "confidence_score must be between 0 and 100")
		return
	}

	outcome, err := h.verification.RecordVerification(r.Context(), req.NIM, score)
	if err != nil {
		log.Printf("verifying %s: %v", sanitizeForLog(req.NIM), err)
		respondError(w, http.StatusInternalServerError, "failed to record verification")
		return
	}

	resp := map[string]any{
		"success": outcome.Success,
		"message": outcome.Message,
	}
	if outcome.Record != nil {
		resp["enrollment"] = enrollmentToResponse(outcome.Record)
	}
	respondJSON(w, http.StatusOK, resp)
}

// ToggleActiveRequest sets the enrollment active flag.
type ToggleActiveRequest struct {
	Active *bool `json:"active"`
}

// ToggleActive enables or disables face verification for a student.
func (h *FacesHandler) ToggleActive(w http.ResponseWriter, r *http.Request) {
	nim := chi.URLParam(r, "nim")

	var req ToggleActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	record, err := h.verification.SetActive(r.Context(), nim, *req.Active)
	if errors.Is(err, face.ErrEnrollmentNotFound) {
		respondError(w, http.StatusNotFound, "enrollment not found")
		return
	}
	if err != nil {
		log.Printf("toggling enrollment %s: %v", sanitizeForLog(nim), err)
		respondError(w, http.StatusInternalServerError, "failed to update enrollment")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"enrollment": enrollmentToResponse(record),
	})
}

// Delete removes an enrollment and its stored vector.
func (h *FacesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	nim := chi.URLParam(r, "nim")

	err := h.enrollment.Remove(r.Context(), nim)
	if errors.Is(err, face.ErrEnrollmentNotFound) {
		respondError(w, http.StatusNotFound, "enrollment not found")
		return
	}
	if err != nil {
		log.Printf("deleting enrollment %s: %v", sanitizeForLog(nim), err)
		respondError(w, http.StatusInternalServerError, "failed to delete enrollment")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "enrollment deleted",
	})
}
