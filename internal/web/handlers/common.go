package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jsvoboda/rollcall/internal/embedder"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// FaceEmbedder is the slice of the embedding client the handlers need;
// tests substitute a fake.
type FaceEmbedder interface {
	DetectFaces(ctx context.Context, imageData []byte) (*embedder.DetectResponse, error)
	EmbedPortrait(ctx context.Context, imageData []byte) (*embedder.Face, error)
	Model() string
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
