package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/aditpras/campus-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	facesHandler := handlers.NewFacesHandler(
		s.deps.Enrollment,
		s.deps.Verification,
		s.deps.Matcher,
		s.deps.Enrollments,
		s.deps.Events,
		s.deps.MatchThreshold,
	)
	attendanceHandler := handlers.NewAttendanceHandler(s.deps.Engine)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Face enrollment & verification
		r.Post("/face/enroll", facesHandler.Enroll)
		r.Post("/face/identify", facesHandler.Identify)
		r.Post("/face/verify", facesHandler.Verify)
		r.Get("/face/enrollments", facesHandler.List)
		r.Get("/face/enrollments/{nim}", facesHandler.Get)
		r.Put("/face/enrollments/{nim}/active", facesHandler.ToggleActive)
		r.Delete("/face/enrollments/{nim}", facesHandler.Delete)

		// Attendance sessions
		r.Post("/attendance/sessions", attendanceHandler.Generate)
		r.Get("/attendance/sessions", attendanceHandler.List)
		r.Get("/attendance/sessions/{course}/{date}/{meeting}", attendanceHandler.Detail)
		r.Delete("/attendance/sessions/{course}/{date}/{meeting}", attendanceHandler.Delete)
		r.Put("/attendance/records/{id}", attendanceHandler.Mark)
	})
}
