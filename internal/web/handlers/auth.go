package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/jsvoboda/rollcall/internal/auth"
	"github.com/jsvoboda/rollcall/internal/database"
	"github.com/jsvoboda/rollcall/internal/web/middleware"
)

// AuthHandler handles teacher login and session introspection.
type AuthHandler struct {
	teachers database.TeacherReader
	issuer   *auth.TokenIssuer
	log      *zap.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(teachers database.TeacherReader, issuer *auth.TokenIssuer, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{teachers: teachers, issuer: issuer, log: log}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// Login authenticates a teacher and returns a session token. Unknown
// usernames and wrong passwords produce the same response.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	teacher, err := h.teachers.GetByUsername(r.Context(), req.Username)
	if err != nil {
		h.log.Error("login lookup failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if teacher == nil || auth.CheckPassword(teacher.PasswordHash, req.Password) != nil {
		h.log.Info("rejected login", zap.String("username", sanitizeForLog(req.Username)))
		respondError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, err := h.issuer.Issue(teacher.Username, teacher.Name)
	if err != nil {
		h.log.Error("token issue failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}

	respondJSON(w, http.StatusOK, loginResponse{
		Token:    token,
		Username: teacher.Username,
		Name:     teacher.Name,
	})
}

// Status reports the authenticated account for the current token.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"username": claims.Username,
		"name":     claims.Name,
	})
}
