package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jsvoboda/rollcall/internal/attendance"
	"github.com/jsvoboda/rollcall/internal/database"
)

// ReportsHandler handles report generation over the attendance ledger.
type ReportsHandler struct {
	students database.StudentReader
	ledger   database.LedgerReader
	log      *zap.Logger
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(students database.StudentReader, ledger database.LedgerReader, log *zap.Logger) *ReportsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReportsHandler{students: students, ledger: ledger, log: log}
}

// parseRange reads start_date and end_date query parameters, defaulting
// to the trailing 30 days.
func parseRange(r *http.Request) (time.Time, time.Time, bool) {
	end := attendance.DayOf(time.Now().UTC())
	start := end.AddDate(0, 0, -29)

	if s := r.URL.Query().Get("start_date"); s != "" {
		parsed, err := attendance.ParseDay(s)
		if err != nil {
			return start, end, false
		}
		start = parsed
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		parsed, err := attendance.ParseDay(s)
		if err != nil {
			return start, end, false
		}
		end = parsed
	}
	return start, end, true
}

// Summary returns the combined daily summary and per-student
// performance for a date range.
func (h *ReportsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	start, end, ok := parseRange(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}
	if end.Before(start) {
		respondError(w, http.StatusBadRequest, "end_date must not precede start_date")
		return
	}

	events, err := h.ledger.EventsInRange(r.Context(), attendance.DayOf(start), attendance.DayOf(end))
	if err != nil {
		h.log.Error("querying events failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to build report")
		return
	}

	students, err := h.students.List(r.Context())
	if err != nil {
		h.log.Error("listing students failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to build report")
		return
	}

	respondJSON(w, http.StatusOK, attendance.BuildReport(events, students, start, end))
}

// Dashboard returns the fixed-window dashboard aggregates: today's
// percentage, the trailing 7-day average, most and least present
// students, and the recognition accuracy proxy.
func (h *ReportsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	events, err := h.ledger.AllEvents(r.Context())
	if err != nil {
		h.log.Error("querying events failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to build dashboard")
		return
	}

	students, err := h.students.List(r.Context())
	if err != nil {
		h.log.Error("listing students failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to build dashboard")
		return
	}

	respondJSON(w, http.StatusOK, attendance.BuildDashboard(events, students, time.Now().UTC()))
}
