package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jsvoboda/rollcall/internal/auth"
	"github.com/jsvoboda/rollcall/internal/database"
	"github.com/jsvoboda/rollcall/internal/database/mock"
)

func setupAuthHandler(t *testing.T) (*AuthHandler, *mock.TeacherRepo, *auth.TokenIssuer) {
	t.Helper()
	teachers := mock.NewTeacherRepo()
	issuer, err := auth.NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	return NewAuthHandler(teachers, issuer, nil), teachers, issuer
}

func createTeacher(t *testing.T, teachers *mock.TeacherRepo, username, password string) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := teachers.Create(context.Background(), &database.Teacher{
		Username:     username,
		PasswordHash: hash,
		Name:         "Test Teacher",
	}); err != nil {
		t.Fatalf("create teacher: %v", err)
	}
}

func TestLogin_Success(t *testing.T) {
	handler, teachers, issuer := setupAuthHandler(t)
	createTeacher(t, teachers, "mnovak", "correct-horse")

	body := bytes.NewBufferString(`{"username":"mnovak","password":"correct-horse"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
	rec := httptest.NewRecorder()

	handler.Login(rec, req)
	assertStatusCode(t, rec, http.StatusOK)

	var resp loginResponse
	parseJSONResponse(t, rec, &resp)
	if resp.Token == "" {
		t.Fatal("expected a token")
	}
	claims, err := issuer.Verify(resp.Token)
	if err != nil {
		t.Fatalf("token should verify: %v", err)
	}
	if claims.Username != "mnovak" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	handler, teachers, _ := setupAuthHandler(t)
	createTeacher(t, teachers, "mnovak", "correct-horse")

	body := bytes.NewBufferString(`{"username":"mnovak","password":"wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
	rec := httptest.NewRecorder()

	handler.Login(rec, req)
	assertStatusCode(t, rec, http.StatusUnauthorized)
	assertJSONError(t, rec, "invalid username or password")
}

func TestLogin_UnknownUserSameError(t *testing.T) {
	handler, _, _ := setupAuthHandler(t)

	body := bytes.NewBufferString(`{"username":"ghost","password":"whatever"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
	rec := httptest.NewRecorder()

	handler.Login(rec, req)
	assertStatusCode(t, rec, http.StatusUnauthorized)
	assertJSONError(t, rec, "invalid username or password")
}

func TestLogin_BadBody(t *testing.T) {
	handler, _, _ := setupAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)
	assertStatusCode(t, rec, http.StatusBadRequest)
}

func TestLogin_RepoError(t *testing.T) {
	handler, teachers, _ := setupAuthHandler(t)
	teachers.GetError = errBoom

	body := bytes.NewBufferString(`{"username":"mnovak","password":"pw"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
	rec := httptest.NewRecorder()

	handler.Login(rec, req)
	assertStatusCode(t, rec, http.StatusInternalServerError)
}

func TestStatus_WithClaims(t *testing.T) {
	handler, _, _ := setupAuthHandler(t)

	req := requestWithClaims(httptest.NewRequest(http.MethodGet, "/api/v1/auth/status", nil), "mnovak")
	rec := httptest.NewRecorder()

	handler.Status(rec, req)
	assertStatusCode(t, rec, http.StatusOK)

	var resp map[string]string
	parseJSONResponse(t, rec, &resp)
	if resp["username"] != "mnovak" {
		t.Errorf("expected username in status, got %v", resp)
	}
}

func TestStatus_WithoutClaims(t *testing.T) {
	handler, _, _ := setupAuthHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/status", nil)
	rec := httptest.NewRecorder()

	handler.Status(rec, req)
	assertStatusCode(t, rec, http.StatusUnauthorized)
}
