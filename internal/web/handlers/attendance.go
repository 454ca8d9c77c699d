package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jsvoboda/rollcall/internal/attendance"
	"github.com/jsvoboda/rollcall/internal/config"
	"github.com/jsvoboda/rollcall/internal/database"
	"github.com/jsvoboda/rollcall/internal/embedder"
	"github.com/jsvoboda/rollcall/internal/web/middleware"
)

// AttendanceHandler handles class photo uploads and attendance queries.
type AttendanceHandler struct {
	cfg        *config.Config
	students   database.StudentReader
	embeddings database.EmbeddingReader
	ledger     database.LedgerWriter
	matcher    attendance.Matcher
	embed      FaceEmbedder
	log        *zap.Logger
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(cfg *config.Config, students database.StudentReader, embeddings database.EmbeddingReader, ledger database.LedgerWriter, matcher attendance.Matcher, embed FaceEmbedder, log *zap.Logger) *AttendanceHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AttendanceHandler{
		cfg:        cfg,
		students:   students,
		embeddings: embeddings,
		ledger:     ledger,
		matcher:    matcher,
		embed:      embed,
		log:        log,
	}
}

// Upload accepts a class photo, detects its faces, matches them against
// the enrolled gallery and records attendance for the given day (the
// optional date form field, defaulting to today). Re-uploading a photo
// for the same day reports the same matches without duplicating events.
func (h *AttendanceHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Upload.MaxBytes)
	if err := r.ParseMultipartForm(h.cfg.Upload.MaxBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form or file too large")
		return
	}

	day := time.Now().UTC()
	if dateStr := r.FormValue("date"); dateStr != "" {
		parsed, err := attendance.ParseDay(dateStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		day = parsed
	}

	imageData, filename, err := readImageFile(r, "photo")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resized, err := embedder.ResizeImage(imageData, h.cfg.Upload.MaxImageSize)
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not decode image")
		return
	}

	if _, err := h.saveUpload(filename, resized); err != nil {
		h.log.Error("saving upload failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to store photo")
		return
	}

	detected, err := h.embed.DetectFaces(r.Context(), resized)
	if err != nil {
		h.log.Error("face detection failed", zap.Error(err))
		respondError(w, http.StatusBadGateway, "face embedding service unavailable")
		return
	}

	gallery, err := h.loadGallery(r)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load gallery")
		return
	}

	faces := make([]attendance.QueryFace, 0, len(detected.Faces))
	for i, f := range detected.Faces {
		faces = append(faces, attendance.QueryFace{
			Embedding: f.Embedding,
			BBox:      f.BBox,
			Index:     i,
		})
	}

	var recorder string
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		recorder = claims.Username
	}

	session := attendance.NewSession(h.matcher, h.ledger, h.cfg.Attendance.Threshold, h.log)
	result, err := session.MarkAttendance(r.Context(), day, faces, gallery, recorder)
	if err != nil {
		h.log.Error("marking attendance failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to record attendance")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"date":                 attendance.FormatDay(attendance.DayOf(day)),
		"total_faces_detected": result.TotalFaces,
		"present_count":        result.PresentCount,
		"unknown_count":        result.UnknownCount,
		"faces":                result.Faces,
	})
}

// Detect accepts a photo, stores it and returns the detected face
// bounding boxes without touching the attendance ledger. Lets a teacher
// check framing and face count before committing a marking run.
func (h *AttendanceHandler) Detect(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Upload.MaxBytes)
	if err := r.ParseMultipartForm(h.cfg.Upload.MaxBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form or file too large")
		return
	}

	imageData, filename, err := readImageFile(r, "photo")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resized, err := embedder.ResizeImage(imageData, h.cfg.Upload.MaxImageSize)
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not decode image")
		return
	}

	path, err := h.saveUpload(filename, resized)
	if err != nil {
		h.log.Error("saving upload failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to store photo")
		return
	}

	detected, err := h.embed.DetectFaces(r.Context(), resized)
	if err != nil {
		h.log.Error("face detection failed", zap.Error(err))
		respondError(w, http.StatusBadGateway, "face embedding service unavailable")
		return
	}

	type detectedFace struct {
		FaceID   int       `json:"face_id"`
		BBox     []float64 `json:"bbox"`
		DetScore float64   `json:"det_score"`
	}
	faces := make([]detectedFace, 0, len(detected.Faces))
	for i, f := range detected.Faces {
		faces = append(faces, detectedFace{FaceID: i + 1, BBox: f.BBox, DetScore: f.DetScore})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"image_path":  path,
		"faces":       faces,
		"total_faces": len(faces),
	})
}

// ByDay returns the recorded attendance for one day, including derived
// ABSENT entries for roster members without a PRESENT event.
func (h *AttendanceHandler) ByDay(w http.ResponseWriter, r *http.Request) {
	day, err := attendance.ParseDay(chi.URLParam(r, "date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}
	h.respondDay(w, r, day)
}

// Today returns the recorded attendance for the current day.
func (h *AttendanceHandler) Today(w http.ResponseWriter, r *http.Request) {
	h.respondDay(w, r, time.Now().UTC())
}

type dayEntry struct {
	StudentID  string  `json:"student_id"`
	Name       string  `json:"name"`
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence,omitempty"`
	RecordedAt string  `json:"recorded_at,omitempty"`
}

func (h *AttendanceHandler) respondDay(w http.ResponseWriter, r *http.Request, day time.Time) {
	day = attendance.DayOf(day)

	events, err := h.ledger.EventsInRange(r.Context(), day, day)
	if err != nil {
		h.log.Error("querying events failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load attendance")
		return
	}

	students, err := h.students.List(r.Context())
	if err != nil {
		h.log.Error("listing students failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load attendance")
		return
	}

	present := make(map[string]database.AttendanceEvent)
	unknownCount := 0
	for _, ev := range events {
		switch attendance.Status(ev.Status) {
		case attendance.StatusPresent:
			present[ev.StudentID] = ev
		case attendance.StatusUnknown:
			unknownCount++
		}
	}

	entries := make([]dayEntry, 0, len(students))
	presentCount := 0
	for _, s := range students {
		entry := dayEntry{StudentID: s.StudentID, Name: s.Name, Status: string(attendance.StatusAbsent)}
		if ev, ok := present[s.StudentID]; ok {
			entry.Status = string(attendance.StatusPresent)
			entry.Confidence = attendance.Round1(ev.Confidence * 100)
			entry.RecordedAt = ev.RecordedAt.UTC().Format(time.RFC3339)
			presentCount++
		}
		entries = append(entries, entry)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"date":          attendance.FormatDay(day),
		"records":       entries,
		"present_count": presentCount,
		"absent_count":  len(students) - presentCount,
		"unknown_faces": unknownCount,
	})
}

// ForStudent returns one student's attendance history, newest first.
func (h *AttendanceHandler) ForStudent(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentId")

	student, err := h.students.Get(r.Context(), studentID)
	if err != nil {
		h.log.Error("student lookup failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if student == nil {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}

	events, err := h.ledger.EventsForStudent(r.Context(), studentID)
	if err != nil {
		h.log.Error("querying events failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	type historyEntry struct {
		Date       string  `json:"date"`
		Status     string  `json:"status"`
		Confidence float64 `json:"confidence"`
		RecordedAt string  `json:"recorded_at"`
	}
	history := make([]historyEntry, 0, len(events))
	for _, ev := range events {
		history = append(history, historyEntry{
			Date:       attendance.FormatDay(ev.Day),
			Status:     ev.Status,
			Confidence: attendance.Round1(ev.Confidence * 100),
			RecordedAt: ev.RecordedAt.UTC().Format(time.RFC3339),
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"student_id": studentID,
		"name":       student.Name,
		"history":    history,
	})
}

// loadGallery builds the matcher gallery from stored embeddings.
func (h *AttendanceHandler) loadGallery(r *http.Request) ([]attendance.Reference, error) {
	stored, err := h.embeddings.ListAll(r.Context())
	if err != nil {
		h.log.Error("loading gallery failed", zap.Error(err))
		return nil, err
	}
	gallery := make([]attendance.Reference, 0, len(stored))
	for _, emb := range stored {
		gallery = append(gallery, attendance.Reference{
			StudentID: emb.StudentID,
			Embedding: emb.Embedding,
		})
	}
	return gallery, nil
}

// saveUpload writes the class photo under the uploads directory.
func (h *AttendanceHandler) saveUpload(original string, data []byte) (string, error) {
	if err := os.MkdirAll(h.cfg.Upload.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating upload dir: %w", err)
	}

	ext := filepath.Ext(original)
	if ext == "" {
		ext = ".jpg"
	}
	path := filepath.Join(h.cfg.Upload.Dir, uuid.New().String()+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing upload: %w", err)
	}
	return path, nil
}
