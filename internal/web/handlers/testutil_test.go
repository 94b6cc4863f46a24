package handlers

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aditpras/campus-attendance/internal/attendance"
	"github.com/aditpras/campus-attendance/internal/database"
	"github.com/aditpras/campus-attendance/internal/database/mock"
	"github.com/aditpras/campus-attendance/internal/face"
	"github.com/aditpras/campus-attendance/internal/vectorstore"
)

const (
	testMatchThreshold      = 0.4
	testConfidenceThreshold = 70.0
	testLockoutLimit        = 10
)

type stubDetector struct {
	boxes []image.Rectangle
}

func (d *stubDetector) Detect(ctx context.Context, img image.Image) ([]image.Rectangle, error) {
	return d.boxes, nil
}

type stubEmbedder struct {
	vector []float32
}

func (e *stubEmbedder) Embed(ctx context.Context, region image.Image) ([]float32, error) {
	return e.vector, nil
}

// fixture wires handlers against in-memory stores.
type fixture struct {
	faces       *FacesHandler
	attendance  *AttendanceHandler
	enrollments *mock.EnrollmentStore
	events      *mock.VerificationEventStore
	directory   *mock.ReferenceDirectory
	store       *mock.AttendanceStore
	vectors     vectorstore.Store
	engine      *attendance.Engine
	detector    *stubDetector
	embedder    *stubEmbedder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	vectors, err := vectorstore.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create vector store: %v", err)
	}

	enrollments := mock.NewEnrollmentStore()
	events := mock.NewVerificationEventStore()
	directory := mock.NewReferenceDirectory()
	store := mock.NewAttendanceStore(directory)

	directory.AddClass(database.ClassRef{ID: 1, Name: "TI-3A"})
	directory.AddCourse(database.CourseRef{Code: "IF101", Name: "Algoritma dan Pemrograman"})
	directory.AddStudent(database.StudentRef{ID: 1, NIM: "2110001", Name: "Budi Santoso", ClassID: 1})
	directory.AddStudent(database.StudentRef{ID: 2, NIM: "2110002", Name: "Siti Rahma", ClassID: 1})

	detector := &stubDetector{boxes: []image.Rectangle{image.Rect(8, 8, 56, 56)}}
	embedder := &stubEmbedder{vector: []float32{1, 0, 0}}

	enrollment := face.NewEnrollmentService(enrollments, vectors, directory, detector, embedder)
	verification := face.NewVerificationService(enrollments, events, testConfidenceThreshold, testLockoutLimit)
	matcher := face.NewMatcher(vectors)
	engine := attendance.NewEngine(store, directory)

	return &fixture{
		faces:       NewFacesHandler(enrollment, verification, matcher, enrollments, events, testMatchThreshold),
		attendance:  NewAttendanceHandler(engine),
		enrollments: enrollments,
		events:      events,
		directory:   directory,
		store:       store,
		vectors:     vectors,
		engine:      engine,
		detector:    detector,
		embedder:    embedder,
	}
}

// activeRecord seeds an active enrollment for a NIM.
func (f *fixture) activeRecord(nim string) {
	f.enrollments.Add(database.EnrollmentRecord{
		NIM:          nim,
		EmbeddingRef: nim + ".vec",
		RegisteredAt: time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC),
		IsActive:     true,
	})
}

// requestWithChiParams creates a request with chi URL parameters.
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// multipartImageRequest builds a multipart request with an "image" file and
// optional extra form fields.
func multipartImageRequest(t *testing.T, path string, fields map[string]string) *http.Request {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := range 64 {
		for x := range 64 {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 128, A: 255})
		}
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("image", "face.jpg")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if err := face.EncodeJPEG(part, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed to write form field: %v", err)
		}
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
