package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/jsvoboda/rollcall/internal/web/handlers"
	"github.com/jsvoboda/rollcall/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	authHandler := handlers.NewAuthHandler(s.deps.Teachers, s.deps.Issuer, s.log)
	studentsHandler := handlers.NewStudentsHandler(s.config, s.deps.Students, s.deps.Embeddings, s.deps.Embedder, s.log)
	attendanceHandler := handlers.NewAttendanceHandler(s.config, s.deps.Students, s.deps.Embeddings, s.deps.Ledger, s.deps.Matcher, s.deps.Embedder, s.log)
	reportsHandler := handlers.NewReportsHandler(s.deps.Students, s.deps.Ledger, s.log)
	exportHandler := handlers.NewExportHandler(s.deps.Students, s.deps.Ledger, s.log)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)

		// Everything else requires a valid token.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.deps.Issuer))

			r.Get("/auth/status", authHandler.Status)

			// Roster
			r.Get("/students", studentsHandler.List)
			r.Post("/students", studentsHandler.Register)
			r.Get("/students/{studentId}", studentsHandler.Get)
			r.Put("/students/{studentId}", studentsHandler.Rename)
			r.Delete("/students/{studentId}", studentsHandler.Delete)

			// Attendance
			r.Post("/attendance/detect", attendanceHandler.Detect)
			r.Post("/attendance/upload", attendanceHandler.Upload)
			r.Get("/attendance/today", attendanceHandler.Today)
			r.Get("/attendance/day/{date}", attendanceHandler.ByDay)
			r.Get("/attendance/student/{studentId}", attendanceHandler.ForStudent)

			// Reports
			r.Get("/reports/summary", reportsHandler.Summary)
			r.Get("/reports/dashboard", reportsHandler.Dashboard)
			r.Get("/reports/export", exportHandler.Export)
		})
	})
}
