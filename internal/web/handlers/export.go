package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/jsvoboda/rollcall/internal/attendance"
	"github.com/jsvoboda/rollcall/internal/database"
)

// ExportHandler writes attendance reports as CSV or XLSX downloads.
type ExportHandler struct {
	students database.StudentReader
	ledger   database.LedgerReader
	log      *zap.Logger
}

// NewExportHandler creates a new export handler.
func NewExportHandler(students database.StudentReader, ledger database.LedgerReader, log *zap.Logger) *ExportHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExportHandler{students: students, ledger: ledger, log: log}
}

var exportHeader = []string{"Date", "Student ID", "Name", "Status", "Confidence", "Timestamp"}

type exportRow struct {
	Date       string
	StudentID  string
	Name       string
	Status     string
	Confidence string
	Timestamp  string
}

// buildRows produces one row per (day, roster member) over the range,
// with ABSENT derived for days without a PRESENT event.
func buildRows(events []database.AttendanceEvent, students []database.Student, start, end time.Time) []exportRow {
	present := make(map[string]map[string]database.AttendanceEvent)
	for _, ev := range events {
		if attendance.Status(ev.Status) != attendance.StatusPresent {
			continue
		}
		key := attendance.FormatDay(ev.Day)
		if present[key] == nil {
			present[key] = make(map[string]database.AttendanceEvent)
		}
		present[key][ev.StudentID] = ev
	}

	var rows []exportRow
	for day := attendance.DayOf(start); !day.After(attendance.DayOf(end)); day = day.AddDate(0, 0, 1) {
		key := attendance.FormatDay(day)
		for _, s := range students {
			row := exportRow{
				Date:      key,
				StudentID: s.StudentID,
				Name:      s.Name,
				Status:    string(attendance.StatusAbsent),
			}
			if ev, ok := present[key][s.StudentID]; ok {
				row.Status = string(attendance.StatusPresent)
				row.Confidence = fmt.Sprintf("%.1f", ev.Confidence*100)
				row.Timestamp = ev.RecordedAt.UTC().Format(time.RFC3339)
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// Export streams the attendance report for a date range. The format
// query parameter selects csv (default) or xlsx.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
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
		respondError(w, http.StatusInternalServerError, "failed to build export")
		return
	}

	students, err := h.students.List(r.Context())
	if err != nil {
		h.log.Error("listing students failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to build export")
		return
	}

	rows := buildRows(events, students, start, end)
	name := fmt.Sprintf("attendance_%s_%s", attendance.FormatDay(start), attendance.FormatDay(end))

	switch r.URL.Query().Get("format") {
	case "xlsx":
		h.writeXLSX(w, name, rows)
	case "", "csv":
		h.writeCSV(w, name, rows)
	default:
		respondError(w, http.StatusBadRequest, "unsupported format, use csv or xlsx")
	}
}

func (h *ExportHandler) writeCSV(w http.ResponseWriter, name string, rows []exportRow) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, name))

	writer := csv.NewWriter(w)
	_ = writer.Write(exportHeader)
	for _, row := range rows {
		_ = writer.Write([]string{row.Date, row.StudentID, row.Name, row.Status, row.Confidence, row.Timestamp})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		h.log.Error("writing csv failed", zap.Error(err))
	}
}

func (h *ExportHandler) writeXLSX(w http.ResponseWriter, name string, rows []exportRow) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Attendance"
	f.SetSheetName("Sheet1", sheet)

	for i, col := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, col)
	}
	for i, row := range rows {
		values := []string{row.Date, row.StudentID, row.Name, row.Status, row.Confidence, row.Timestamp}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, name))
	if err := f.Write(w); err != nil {
		h.log.Error("writing xlsx failed", zap.Error(err))
	}
}
