package face

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/aditpras/campus-attendance/internal/database"
)

// Outcome is the non-throwing result of a verification attempt. Business
// rejections (unregistered, inactive, low confidence) come back as
// Success=false, never as an error.
type Outcome struct {
	Success bool                       `json:"success"`
	Message string                     `json:"message"`
	Record  *database.EnrollmentRecord `json:"-"`
}

// VerificationService applies the confidence policy to verification
// attempts reported by the mobile app and maintains the per-student
// counters, including lockout after repeated failures.
type VerificationService struct {
	enrollments database.EnrollmentStore
	events      database.VerificationEventStore

	confidenceThreshold Percent
	lockoutLimit        int

	now func() time.Time
}

// NewVerificationService wires the verification dependencies. The threshold
// and lockout limit come from the embedded policy config.
func NewVerificationService(
	enrollments database.EnrollmentStore,
	events database.VerificationEventStore,
	confidenceThreshold float64,
	lockoutLimit int,
) *VerificationService {
	return &VerificationService{
		enrollments:         enrollments,
		events:              events,
		confidenceThreshold: Percent(confidenceThreshold),
		lockoutLimit:        lockoutLimit,
		now:                 time.Now,
	}
}

// RecordVerification applies one attempt with the given confidence score
// (percent scale; matcher ratios must be converted by the caller via
// Ratio.Percent). Scores at or above the threshold reset failed_attempts
// and bump verification_count; scores below increment failed_attempts and
// deactivate the registration once the lockout limit is reached. The
// lockout itself does not change the outcome shape.
func (s *VerificationService) RecordVerification(ctx context.Context, nim string, score Percent) (Outcome, error) {
	if !score.Valid() {
		return Outcome{}, fmt.Errorf("confidence score %v out of range 0-100", float64(score))
	}

	success := score >= s.confidenceThreshold
	at := s.now()

	record, err := s.enrollments.RecordAttempt(ctx, nim, success, at, s.lockoutLimit)
	if errors.Is(err, database.ErrNotFound) {
		return Outcome{
			Success: false,
			Message: "face not registered or inactive",
		}, nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("record verification for %s: %w", nim, err)
	}

	outcome := Outcome{Success: success, Record: record}
	if success {
		outcome.Message = "face verified successfully"
	} else {
		outcome.Message = fmt.Sprintf("face verification failed, confidence too low: %s", score)
	}

	s.saveEvent(ctx, nim, score, outcome)
	return outcome, nil
}

// saveEvent appends the attempt to the audit trail. Best effort: a failed
// audit write must not fail the verification itself.
func (s *VerificationService) saveEvent(ctx context.Context, nim string, score Percent, outcome Outcome) {
	if s.events == nil {
		return
	}
	event := database.VerificationEvent{
		ID:         uuid.NewString(),
		NIM:        nim,
		Confidence: float64(score),
		Success:    outcome.Success,
		Message:    outcome.Message,
		CreatedAt:  s.now(),
	}
	if err := s.events.SaveEvent(ctx, event); err != nil {
		log.Printf("saving verification event for %s: %v", nim, err)
	}
}

// SetActive toggles face verification for a student. Re-enabling resets
// failed_attempts so a stale counter cannot immediately re-trigger lockout.
func (s *VerificationService) SetActive(ctx context.Context, nim string, active bool) (*database.EnrollmentRecord, error) {
	record, err := s.enrollments.SetActive(ctx, nim, active)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrEnrollmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("toggle enrollment for %s: %w", nim, err)
	}
	return record, nil
}
