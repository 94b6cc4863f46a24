package face

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aditpras/campus-attendance/internal/database"
	"github.com/aditpras/campus-attendance/internal/vectorstore"
)

// EnrollmentService registers student faces: it validates the student
// against the campus directory, extracts an embedding from the submitted
// image, stores the vector and upserts the registration metadata.
type EnrollmentService struct {
	enrollments database.EnrollmentStore
	vectors     vectorstore.Store
	directory   database.ReferenceDirectory
	detector    Detector
	embedder    Embedder

	now func() time.Time
}

// NewEnrollmentService wires the enrollment dependencies.
func NewEnrollmentService(
	enrollments database.EnrollmentStore,
	vectors vectorstore.Store,
	directory database.ReferenceDirectory,
	detector Detector,
	embedder Embedder,
) *EnrollmentService {
	return &EnrollmentService{
		enrollments: enrollments,
		vectors:     vectors,
		directory:   directory,
		detector:    detector,
		embedder:    embedder,
		now:         time.Now,
	}
}

// embeddingRef derives the vector-store key recorded on the enrollment row.
func embeddingRef(nim string) string {
	return nim + ".vec"
}

// ExtractEmbedding decodes the image, picks the first detected face and
// embeds it. Multi-face images are common in classroom captures; taking the
// first box is the documented policy so repeated submissions of the same
// image always produce the same embedding.
func (s *EnrollmentService) ExtractEmbedding(ctx context.Context, imageData []byte) ([]float32, error) {
	img, err := DecodeImage(imageData)
	if err != nil {
		return nil, err
	}

	boxes, err := s.detector.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("detect face: %w", err)
	}
	if len(boxes) == 0 {
		return nil, ErrNoFaceDetected
	}

	crop, err := CropFace(img, boxes[0])
	if err != nil {
		return nil, err
	}

	vector, err := s.embedder.Embed(ctx, crop)
	if err != nil {
		return nil, fmt.Errorf("embed face: %w", err)
	}
	return vector, nil
}

// Enroll registers the face on the image for the given NIM. Re-enrollment
// overwrites the stored vector, resets failed_attempts and reactivates the
// registration, even from lockout.
func (s *EnrollmentService) Enroll(ctx context.Context, nim string, imageData []byte) (*database.EnrollmentRecord, error) {
	vector, err := s.ExtractEmbedding(ctx, imageData)
	if err != nil {
		return nil, err
	}
	return s.EnrollVector(ctx, nim, vector)
}

// EnrollVector registers a pre-computed embedding for the given NIM. Used by
// the batch CLI and by callers that run the pipeline themselves.
func (s *EnrollmentService) EnrollVector(ctx context.Context, nim string, vector []float32) (*database.EnrollmentRecord, error) {
	exists, err := s.directory.StudentExists(ctx, nim)
	if err != nil {
		return nil, fmt.Errorf("check student %s: %w", nim, err)
	}
	if !exists {
		return nil, ErrIdentityNotFound
	}

	ref := embeddingRef(nim)
	if err := s.vectors.Put(ctx, nim, vector); err != nil {
		return nil, fmt.Errorf("store embedding for %s: %w", nim, err)
	}

	record, err := s.enrollments.Upsert(ctx, nim, ref, s.now())
	if err != nil {
		// Vector landed but metadata did not; remove the orphan so the
		// gallery never matches a student without a registration row.
		if delErr := s.vectors.Delete(ctx, nim); delErr != nil {
			log.Printf("compensating vector delete for %s failed: %v", nim, delErr)
		}
		return nil, fmt.Errorf("save enrollment for %s: %w", nim, err)
	}
	return record, nil
}

// Remove deletes both the enrollment row and the stored vector. The original
// system left the vector file behind as a manual cleanup step; here the two
// deletes are one operation, with the vector removal reported but not fatal.
func (s *EnrollmentService) Remove(ctx context.Context, nim string) error {
	err := s.enrollments.Delete(ctx, nim)
	if errors.Is(err, database.ErrNotFound) {
		return ErrEnrollmentNotFound
	}
	if err != nil {
		return fmt.Errorf("delete enrollment for %s: %w", nim, err)
	}

	if err := s.vectors.Delete(ctx, nim); err != nil {
		log.Printf("deleting vector for %s after enrollment delete: %v", nim, err)
	}
	return nil
}
