package face

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aditpras/campus-attendance/internal/database"
	"github.com/aditpras/campus-attendance/internal/database/mock"
)

const (
	testThreshold = 70.0
	testLockout   = 10
)

func newVerifyFixture() (*VerificationService, *mock.EnrollmentStore, *mock.VerificationEventStore) {
	enrollments := mock.NewEnrollmentStore()
	events := mock.NewVerificationEventStore()
	service := NewVerificationService(enrollments, events, testThreshold, testLockout)
	service.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	return service, enrollments, events
}

func activeEnrollment(nim string) database.EnrollmentRecord {
	return database.EnrollmentRecord{
		NIM:          nim,
		EmbeddingRef: nim + ".vec",
		RegisteredAt: time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC),
		IsActive:     true,
	}
}

func TestRecordVerification_Success(t *testing.T) {
	service, enrollments, events := newVerifyFixture()
	enrollments.Add(activeEnrollment("2110001"))

	outcome, err := service.RecordVerification(context.Background(), "2110001", 85.5)
	if err != nil {
		t.Fatalf("RecordVerification failed: %v", err)
	}

	if !outcome.Success {
		t.Error("score above threshold must succeed")
	}
	if outcome.Message != "face verified successfully" {
		t.Errorf("unexpected message: %q", outcome.Message)
	}
	if outcome.Record.VerificationCount != 1 {
		t.Errorf("expected verification count 1, got %d", outcome.Record.VerificationCount)
	}
	if outcome.Record.LastVerified == nil {
		t.Error("successful verification must stamp last_verified")
	}

	saved := events.All()
	if len(saved) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(saved))
	}
	if !saved[0].Success || saved[0].NIM != "2110001" || saved[0].Confidence != 85.5 {
		t.Errorf("unexpected audit event: %+v", saved[0])
	}
}

func TestRecordVerification_AtThreshold(t *testing.T) {
	service, enrollments, _ := newVerifyFixture()
	enrollments.Add(activeEnrollment("2110001"))

	outcome, err := service.RecordVerification(context.Background(), "2110001", testThreshold)
	if err != nil {
		t.Fatalf("RecordVerification failed: %v", err)
	}
	if !outcome.Success {
		t.Error("score exactly at threshold must succeed")
	}
}

func TestRecordVerification_LowConfidence(t *testing.T) {
	service, enrollments, _ := newVerifyFixture()
	enrollments.Add(activeEnrollment("2110001"))

	outcome, err := service.RecordVerification(context.Background(), "2110001", 42.0)
	if err != nil {
		t.Fatalf("RecordVerification failed: %v", err)
	}

	if outcome.Success {
		t.Error("score below threshold must fail")
	}
	if !strings.Contains(outcome.Message, "confidence too low") {
		t.Errorf("unexpected message: %q", outcome.Message)
	}
	if !strings.Contains(outcome.Message, "42.00%") {
		t.Errorf("message must carry the score, got %q", outcome.Message)
	}
	if outcome.Record.FailedAttempts != 1 {
		t.Errorf("expected 1 failed attempt, got %d", outcome.Record.FailedAttempts)
	}
	if outcome.Record.LastVerified != nil {
		t.Error("failed verification must not stamp last_verified")
	}
}

func TestRecordVerification_SuccessResetsFailures(t *testing.T) {
	service, enrollments, _ := newVerifyFixture()
	record := activeEnrollment("2110001")
	record.FailedAttempts = 9
	enrollments.Add(record)

	outcome, err := service.RecordVerification(context.Background(), "2110001", 90.0)
	if err != nil {
		t.Fatalf("RecordVerification failed: %v", err)
	}
	if !outcome.Success {
		t.Fatal("expected success")
	}
	if outcome.Record.FailedAttempts != 0 {
		t.Errorf("success must reset failed attempts, got %d", outcome.Record.FailedAttempts)
	}
}

func TestRecordVerification_Lockout(t *testing.T) {
	service, enrollments, _ := newVerifyFixture()
	enrollments.Add(activeEnrollment("2110001"))
	ctx := context.Background()

	var outcome Outcome
	var err error
	for range testLockout {
		outcome, err = service.RecordVerification(ctx, "2110001", 10.0)
		if err != nil {
			t.Fatalf("RecordVerification failed: %v", err)
		}
	}

	// The attempt that trips the lockout is still an ordinary failure.
	if outcome.Success {
		t.Error("lockout-tripping attempt must report failure")
	}
	if outcome.Record == nil || outcome.Record.IsActive {
		t.Error("registration must be inactive after reaching the lockout limit")
	}
	if outcome.Record.FailedAttempts != testLockout {
		t.Errorf("expected %d failed attempts, got %d", testLockout, outcome.Record.FailedAttempts)
	}

	// Further attempts are rejected outright, even with a passing score.
	outcome, err = service.RecordVerification(ctx, "2110001", 99.0)
	if err != nil {
		t.Fatalf("RecordVerification failed: %v", err)
	}
	if outcome.Success {
		t.Error("locked-out registration must reject verification")
	}
	if outcome.Message != "face not registered or inactive" {
		t.Errorf("unexpected message: %q", outcome.Message)
	}
}

func TestRecordVerification_Unregistered(t *testing.T) {
	service, _, events := newVerifyFixture()

	outcome, err := service.RecordVerification(context.Background(), "9999999", 90.0)
	if err != nil {
		t.Fatalf("RecordVerification failed: %v", err)
	}
	if outcome.Success {
		t.Error("unregistered student must fail verification")
	}
	if outcome.Message != "face not registered or inactive" {
		t.Errorf("unexpected message: %q", outcome.Message)
	}
	if len(events.All()) != 0 {
		t.Error("no audit event for unregistered students")
	}
}

func TestRecordVerification_InvalidScore(t *testing.T) {
	service, enrollments, _ := newVerifyFixture()
	enrollments.Add(activeEnrollment("2110001"))

	for _, score := range []Percent{-1, 100.01, 250} {
		if _, err := service.RecordVerification(context.Background(), "2110001", score); err == nil {
			t.Errorf("score %v out of range must be rejected", float64(score))
		}
	}
}

func TestRecordVerification_AuditFailureIsNotFatal(t *testing.T) {
	service, enrollments, events := newVerifyFixture()
	enrollments.Add(activeEnrollment("2110001"))
	events.SaveError = context.DeadlineExceeded

	outcome, err := service.RecordVerification(context.Background(), "2110001", 90.0)
	if err != nil {
		t.Fatalf("RecordVerification failed: %v", err)
	}
	if !outcome.Success {
		t.Error("audit write failure must not fail the verification")
	}
}

func TestSetActive_ReenableResetsFailures(t *testing.T) {
	service, enrollments, _ := newVerifyFixture()
	record := activeEnrollment("2110001")
	record.FailedAttempts = 10
	record.IsActive = false
	enrollments.Add(record)

	got, err := service.SetActive(context.Background(), "2110001", true)
	if err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}
	if !got.IsActive {
		t.Error("registration must be active after re-enable")
	}
	if got.FailedAttempts != 0 {
		t.Errorf("re-enable must reset failed attempts, got %d", got.FailedAttempts)
	}
}

func TestSetActive_Missing(t *testing.T) {
	service, _, _ := newVerifyFixture()

	_, err := service.SetActive(context.Background(), "2110001", false)
	if err != ErrEnrollmentNotFound {
		t.Fatalf("expected ErrEnrollmentNotFound, got %v", err)
	}
}
