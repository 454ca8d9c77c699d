package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
)

func fakeService(t *testing.T, resp DetectResponse, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("expected multipart form: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("expected file part: %v", err)
		}
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestDetectFaces(t *testing.T) {
	resp := DetectResponse{
		FacesCount: 2,
		Faces: []Face{
			{FaceIndex: 0, Dim: 4, Embedding: []float32{1, 0, 0, 0}, BBox: []float64{10, 10, 50, 50}, DetScore: 0.99},
			{FaceIndex: 1, Dim: 4, Embedding: []float32{0, 1, 0, 0}, BBox: []float64{60, 10, 100, 50}, DetScore: 0.87},
		},
		Model: "arcface",
	}
	server := fakeService(t, resp, http.StatusOK)
	defer server.Close()

	client := NewClient(server.URL, "arcface")
	got, err := client.DetectFaces(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0})
	if err != nil {
		t.Fatalf("DetectFaces: %v", err)
	}
	if got.FacesCount != 2 || len(got.Faces) != 2 {
		t.Errorf("expected 2 faces, got %+v", got)
	}
	if got.Faces[0].Embedding[0] != 1 {
		t.Errorf("unexpected embedding %v", got.Faces[0].Embedding)
	}
}

func TestDetectFaces_ZeroFacesIsValid(t *testing.T) {
	server := fakeService(t, DetectResponse{FacesCount: 0, Model: "arcface"}, http.StatusOK)
	defer server.Close()

	client := NewClient(server.URL, "arcface")
	got, err := client.DetectFaces(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0})
	if err != nil {
		t.Fatalf("DetectFaces: %v", err)
	}
	if got.FacesCount != 0 {
		t.Errorf("expected zero faces, got %d", got.FacesCount)
	}
}

func TestDetectFaces_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "arcface")
	if _, err := client.DetectFaces(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestEmbedPortrait_NoFace(t *testing.T) {
	server := fakeService(t, DetectResponse{FacesCount: 0, Model: "arcface"}, http.StatusOK)
	defer server.Close()

	client := NewClient(server.URL, "arcface")
	_, err := client.EmbedPortrait(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0})
	if !errors.Is(err, ErrNoFace) {
		t.Fatalf("expected ErrNoFace, got %v", err)
	}
}

func TestEmbedPortrait_PicksMostConfidentFace(t *testing.T) {
	resp := DetectResponse{
		FacesCount: 2,
		Faces: []Face{
			{FaceIndex: 0, Embedding: []float32{1, 0}, DetScore: 0.60},
			{FaceIndex: 1, Embedding: []float32{0, 1}, DetScore: 0.95},
		},
	}
	server := fakeService(t, resp, http.StatusOK)
	defer server.Close()

	client := NewClient(server.URL, "arcface")
	face, err := client.EmbedPortrait(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0})
	if err != nil {
		t.Fatalf("EmbedPortrait: %v", err)
	}
	if face.FaceIndex != 1 {
		t.Errorf("expected the higher det_score face, got index %d", face.FaceIndex)
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"short", []byte{0x01}, "application/octet-stream"},
		{"unknown", []byte{1, 2, 3, 4, 5, 6, 7, 8}, "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectMIMEType(tt.data); got != tt.want {
				t.Errorf("detectMIMEType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func encodeTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestResizeImage_ShrinksLargeImage(t *testing.T) {
	data := encodeTestJPEG(t, 400, 200)

	out, err := ResizeImage(data, 100)
	if err != nil {
		t.Fatalf("ResizeImage: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode resized: %v", err)
	}
	if img.Bounds().Dx() != 100 {
		t.Errorf("expected width 100, got %d", img.Bounds().Dx())
	}
	if img.Bounds().Dy() != 50 {
		t.Errorf("expected height 50 to keep aspect ratio, got %d", img.Bounds().Dy())
	}
}

func TestResizeImage_SmallImageUntouchedDimensions(t *testing.T) {
	data := encodeTestJPEG(t, 80, 60)

	out, err := ResizeImage(data, 100)
	if err != nil {
		t.Fatalf("ResizeImage: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 80 || img.Bounds().Dy() != 60 {
		t.Errorf("expected 80x60 unchanged, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestResizeImage_RejectsGarbage(t *testing.T) {
	if _, err := ResizeImage([]byte("not an image"), 100); err == nil {
		t.Fatal("expected decode error")
	}
}
