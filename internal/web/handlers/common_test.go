package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthCheck(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()

	HealthCheck(rec, req)
	assertStatusCode(t, rec, http.StatusOK)

	var resp map[string]string
	parseJSONResponse(t, rec, &resp)
	if resp["status"] != "ok" {
		t.Errorf("expected ok, got %v", resp)
	}
}

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	respondError(rec, http.StatusTeapot, "nope")

	assertStatusCode(t, rec, http.StatusTeapot)
	assertJSONError(t, rec, "nope")
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("line1\nline2\rline3"); got != "line1line2line3" {
		t.Errorf("unexpected %q", got)
	}
}
