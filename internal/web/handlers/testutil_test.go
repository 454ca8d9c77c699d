package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/jsvoboda/rollcall/internal/auth"
	"github.com/jsvoboda/rollcall/internal/config"
	"github.com/jsvoboda/rollcall/internal/embedder"
	"github.com/jsvoboda/rollcall/internal/web/middleware"
)

// testConfig creates a minimal config for testing.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Attendance: config.AttendanceConfig{Threshold: 0.50},
		Upload: config.UploadConfig{
			Dir:          t.TempDir(),
			FacesDir:     t.TempDir(),
			MaxBytes:     10 * 1024 * 1024,
			MaxImageSize: 512,
		},
	}
}

// fakeEmbedder is a canned FaceEmbedder for handler tests.
type fakeEmbedder struct {
	faces    []embedder.Face
	detectFn func() (*embedder.DetectResponse, error)
	err      error
}

func (f *fakeEmbedder) DetectFaces(ctx context.Context, imageData []byte) (*embedder.DetectResponse, error) {
	if f.detectFn != nil {
		return f.detectFn()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &embedder.DetectResponse{FacesCount: len(f.faces), Faces: f.faces, Model: "arcface"}, nil
}

func (f *fakeEmbedder) EmbedPortrait(ctx context.Context, imageData []byte) (*embedder.Face, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.faces) == 0 {
		return nil, embedder.ErrNoFace
	}
	face := f.faces[0]
	return &face, nil
}

func (f *fakeEmbedder) Model() string { return "arcface" }

var errBoom = errors.New("boom")

// requestWithClaims attaches authenticated-teacher claims to a request.
func requestWithClaims(r *http.Request, username string) *http.Request {
	claims := &auth.Claims{Username: username, Name: username}
	return r.WithContext(middleware.SetClaimsInContext(r.Context(), claims))
}

// requestWithChiParams creates a request with chi URL parameters.
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// multipartImageRequest builds a multipart request with a small JPEG in
// the given file field plus extra form values.
func multipartImageRequest(t *testing.T, path, field string, values map[string]string) *http.Request {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var imgBuf bytes.Buffer
	if err := jpeg.Encode(&imgBuf, img, nil); err != nil {
		t.Fatalf("encode test image: %v", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, "photo.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(imgBuf.Bytes()); err != nil {
		t.Fatalf("write image: %v", err)
	}
	for k, v := range values {
		writer.WriteField(k, v)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// parseJSONResponse parses a JSON response body into the target type.
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code.
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message.
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
