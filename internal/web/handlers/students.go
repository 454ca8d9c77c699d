package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jsvoboda/rollcall/internal/config"
	"github.com/jsvoboda/rollcall/internal/database"
	"github.com/jsvoboda/rollcall/internal/embedder"
	"github.com/jsvoboda/rollcall/internal/roster"
	"github.com/jsvoboda/rollcall/internal/web/middleware"
)

// StudentsHandler handles roster management and enrollment.
type StudentsHandler struct {
	cfg        *config.Config
	students   database.StudentWriter
	embeddings database.EmbeddingWriter
	embed      FaceEmbedder
	log        *zap.Logger
}

// NewStudentsHandler creates a new students handler.
func NewStudentsHandler(cfg *config.Config, students database.StudentWriter, embeddings database.EmbeddingWriter, embed FaceEmbedder, log *zap.Logger) *StudentsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &StudentsHandler{
		cfg:        cfg,
		students:   students,
		embeddings: embeddings,
		embed:      embed,
		log:        log,
	}
}

type studentResponse struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	ClassName string `json:"class_name,omitempty"`
	Enrolled  bool   `json:"enrolled"`
	CreatedBy string `json:"created_by,omitempty"`
	CreatedAt string `json:"created_at"`
}

func toStudentResponse(s database.Student, enrolled bool) studentResponse {
	return studentResponse{
		StudentID: s.StudentID,
		Name:      s.Name,
		ClassName: s.ClassName,
		Enrolled:  enrolled,
		CreatedBy: s.CreatedBy,
		CreatedAt: s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// List returns the roster. The optional q parameter filters by name,
// ignoring case and diacritics.
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	students, err := h.students.List(r.Context())
	if err != nil {
		h.log.Error("listing students failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list students")
		return
	}

	enrolled := make(map[string]bool)
	embeddings, err := h.embeddings.ListAll(r.Context())
	if err != nil {
		h.log.Error("listing embeddings failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list students")
		return
	}
	for _, emb := range embeddings {
		enrolled[emb.StudentID] = true
	}

	query := r.URL.Query().Get("q")
	result := make([]studentResponse, 0, len(students))
	for _, s := range students {
		if !roster.MatchesQuery(s.Name, query) {
			continue
		}
		result = append(result, toStudentResponse(s, enrolled[s.StudentID]))
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"students": result,
		"count":    len(result),
	})
}

// Get returns a single student.
func (h *StudentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentId")
	student, err := h.students.Get(r.Context(), studentID)
	if err != nil {
		h.log.Error("student lookup failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load student")
		return
	}
	if student == nil {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}

	emb, err := h.embeddings.Get(r.Context(), studentID)
	if err != nil {
		h.log.Error("embedding lookup failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load student")
		return
	}

	respondJSON(w, http.StatusOK, toStudentResponse(*student, emb != nil))
}

// Register enrolls a new student from a multipart form carrying the
// student_id, name, optional class_name, and a portrait photo. The
// portrait must contain exactly one detectable face.
func (h *StudentsHandler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Upload.MaxBytes)
	if err := r.ParseMultipartForm(h.cfg.Upload.MaxBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form or file too large")
		return
	}

	studentID := strings.TrimSpace(r.FormValue("student_id"))
	name := strings.TrimSpace(r.FormValue("name"))
	if studentID == "" || name == "" {
		respondError(w, http.StatusBadRequest, "student_id and name are required")
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

	face, err := h.embed.EmbedPortrait(r.Context(), resized)
	if errors.Is(err, embedder.ErrNoFace) {
		respondError(w, http.StatusBadRequest, "no face detected in photo")
		return
	}
	if err != nil {
		h.log.Error("portrait embedding failed", zap.Error(err))
		respondError(w, http.StatusBadGateway, "face embedding service unavailable")
		return
	}

	photoPath, err := h.savePortrait(studentID, filename, resized)
	if err != nil {
		h.log.Error("saving portrait failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to store photo")
		return
	}

	var createdBy string
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		createdBy = claims.Username
	}

	student := &database.Student{
		StudentID: studentID,
		Name:      name,
		ClassName: strings.TrimSpace(r.FormValue("class_name")),
		PhotoPath: photoPath,
		CreatedBy: createdBy,
	}
	if err := h.students.Create(r.Context(), student); err != nil {
		if errors.Is(err, database.ErrDuplicateStudent) {
			respondError(w, http.StatusConflict, "student ID already exists")
			return
		}
		h.log.Error("creating student failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to register student")
		return
	}

	emb := database.StoredEmbedding{
		StudentID: studentID,
		Embedding: face.Embedding,
		Model:     h.embed.Model(),
		Dim:       len(face.Embedding),
	}
	if err := h.embeddings.Save(r.Context(), emb); err != nil {
		h.log.Error("saving embedding failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to store embedding")
		return
	}

	h.log.Info("student registered",
		zap.String("student_id", sanitizeForLog(studentID)),
		zap.Int("dim", len(face.Embedding)),
	)
	respondJSON(w, http.StatusCreated, toStudentResponse(*student, true))
}

type renameRequest struct {
	Name string `json:"name"`
}

// Rename updates a student's display name. The identity and its
// embedding are untouched.
func (h *StudentsHandler) Rename(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentId")

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := h.students.Rename(r.Context(), studentID, req.Name); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "student not found")
			return
		}
		h.log.Error("renaming student failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to rename student")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"student_id": studentID, "name": req.Name})
}

// Delete removes a student and its embedding. Ledger history stays; the
// event log is append-only.
func (h *StudentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentId")

	if err := h.students.Delete(r.Context(), studentID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "student not found")
			return
		}
		h.log.Error("deleting student failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to delete student")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": studentID})
}

// savePortrait writes the portrait under the faces directory with a
// random filename so uploads can never collide or traverse paths.
func (h *StudentsHandler) savePortrait(studentID, original string, data []byte) (string, error) {
	if err := os.MkdirAll(h.cfg.Upload.FacesDir, 0o755); err != nil {
		return "", fmt.Errorf("creating faces dir: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(original))
	if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
		ext = ".jpg"
	}
	name := fmt.Sprintf("%s_%s%s", studentID, uuid.New().String(), ext)
	path := filepath.Join(h.cfg.Upload.FacesDir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing portrait: %w", err)
	}
	return path, nil
}

// readImageFile pulls an uploaded image out of a parsed multipart form
// and rejects unsupported extensions.
func readImageFile(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", fmt.Errorf("missing %s file", field)
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png":
	default:
		return nil, "", errors.New("unsupported file type, use jpg, jpeg or png")
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", errors.New("failed to read uploaded file")
	}
	if len(data) == 0 {
		return nil, "", errors.New("uploaded file is empty")
	}
	return data, header.Filename, nil
}
