package attendance

import (
	"sort"
	"time"

	"github.com/jsvoboda/rollcall/internal/database"
)

// DailySummary is the per-day attendance roll-up over a report range.
// Absence is derived: a roster member without a PRESENT event that day
// is ABSENT, so Present+Absent always equals the roster size.
type DailySummary struct {
	Date         string  `json:"date"`
	Present      int     `json:"present"`
	Absent       int     `json:"absent"`
	Percentage   float64 `json:"percentage"`
	UnknownFaces int     `json:"unknown_faces"`
}

// StudentPerformance is one student's attendance over a report range.
type StudentPerformance struct {
	StudentID    string  `json:"student_id"`
	Name         string  `json:"name"`
	PresentDays  int     `json:"present_days"`
	AbsentDays   int     `json:"absent_days"`
	Percentage   float64 `json:"percentage"`
	LastAttended *string `json:"last_attended"` // YYYY-MM-DD, nil if never present in range
}

// Report combines the daily summary and per-student performance for a
// date range.
type Report struct {
	StartDate          string               `json:"start_date"`
	EndDate            string               `json:"end_date"`
	DailySummary       []DailySummary       `json:"daily_summary"`
	StudentPerformance []StudentPerformance `json:"student_performance"`
	AveragePercentage  float64              `json:"average_percentage"`
}

// DashboardStats are the fixed-window aggregates for the dashboard,
// always computed over today and a trailing 7-day window regardless of
// any report's custom range.
type DashboardStats struct {
	RosterSize          int     `json:"roster_size"`
	TodayPercentage     float64 `json:"today_percentage"`
	WeekPercentage      float64 `json:"week_percentage"`
	MostPresentID       string  `json:"most_present_id,omitempty"`
	MostPresentName     string  `json:"most_present_name,omitempty"`
	LeastPresentID      string  `json:"least_present_id,omitempty"`
	LeastPresentName    string  `json:"least_present_name,omitempty"`
	TotalPresentEvents  int     `json:"total_present_events"`
	RecognitionAccuracy float64 `json:"recognition_accuracy"`
}

// eventIndex groups a ledger snapshot for constant-time day lookups.
type eventIndex struct {
	presentByDay map[string]map[string]bool // day -> set of student IDs
	unknownByDay map[string]int             // day -> unknown face count
}

func indexEvents(events []database.AttendanceEvent) eventIndex {
	idx := eventIndex{
		presentByDay: make(map[string]map[string]bool),
		unknownByDay: make(map[string]int),
	}
	for _, ev := range events {
		day := FormatDay(ev.Day)
		switch Status(ev.Status) {
		case StatusPresent:
			set := idx.presentByDay[day]
			if set == nil {
				set = make(map[string]bool)
				idx.presentByDay[day] = set
			}
			set[ev.StudentID] = true
		case StatusUnknown:
			idx.unknownByDay[day]++
		}
	}
	return idx
}

// BuildReport computes the daily summary and per-student performance
// for the inclusive range [start, end]. It holds no state and never
// mutates the ledger; callers pass consistent snapshots. An empty
// roster yields empty per-day percentages and a zero average rather
// than dividing by zero. An inverted range yields an empty report.
func BuildReport(events []database.AttendanceEvent, roster []database.Student, start, end time.Time) *Report {
	start, end = DayOf(start), DayOf(end)
	idx := indexEvents(events)

	report := &Report{
		StartDate:          FormatDay(start),
		EndDate:            FormatDay(end),
		DailySummary:       []DailySummary{},
		StudentPerformance: []StudentPerformance{},
	}

	rosterSize := len(roster)
	var pctSum float64
	var dayCount int

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		key := FormatDay(day)
		present := 0
		for _, s := range roster {
			if idx.presentByDay[key][s.StudentID] {
				present++
			}
		}

		var pct float64
		if rosterSize > 0 {
			pct = float64(present) / float64(rosterSize) * 100
		}
		pctSum += pct
		dayCount++

		report.DailySummary = append(report.DailySummary, DailySummary{
			Date:         key,
			Present:      present,
			Absent:       rosterSize - present,
			Percentage:   Round1(pct),
			UnknownFaces: idx.unknownByDay[key],
		})
	}

	if dayCount > 0 && rosterSize > 0 {
		report.AveragePercentage = Round1(pctSum / float64(dayCount))
	}

	for _, s := range roster {
		report.StudentPerformance = append(report.StudentPerformance, studentPerformance(idx, s, start, end, dayCount))
	}

	return report
}

func studentPerformance(idx eventIndex, s database.Student, start, end time.Time, rangeDays int) StudentPerformance {
	perf := StudentPerformance{
		StudentID: s.StudentID,
		Name:      s.Name,
	}

	var last time.Time
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if idx.presentByDay[FormatDay(day)][s.StudentID] {
			perf.PresentDays++
			last = day
		}
	}

	perf.AbsentDays = rangeDays - perf.PresentDays
	if rangeDays > 0 {
		perf.Percentage = Round1(float64(perf.PresentDays) / float64(rangeDays) * 100)
	}
	if perf.PresentDays > 0 {
		formatted := FormatDay(last)
		perf.LastAttended = &formatted
	}

	return perf
}

// BuildDashboard computes the dashboard aggregates from the full event
// log. Week average counts only days that actually have events, so an
// empty week reports 0 instead of NaN. "Recognition accuracy" is the
// share of all-time PRESENT events with confidence above 0.9; a proxy
// metric, not a calibrated accuracy.
func BuildDashboard(events []database.AttendanceEvent, roster []database.Student, today time.Time) *DashboardStats {
	today = DayOf(today)
	idx := indexEvents(events)
	rosterSize := len(roster)

	stats := &DashboardStats{RosterSize: rosterSize}

	// Today's presence percentage over the roster.
	todayKey := FormatDay(today)
	if rosterSize > 0 {
		presentToday := 0
		for _, s := range roster {
			if idx.presentByDay[todayKey][s.StudentID] {
				presentToday++
			}
		}
		stats.TodayPercentage = Round1(float64(presentToday) / float64(rosterSize) * 100)
	}

	// Trailing 7-day window: total PRESENT events over roster-size times
	// the number of distinct days that saw any presence.
	weekStart := today.AddDate(0, 0, -6)
	weekPresent := 0
	activeDays := 0
	for day := weekStart; !day.After(today); day = day.AddDate(0, 0, 1) {
		n := len(idx.presentByDay[FormatDay(day)])
		if n > 0 {
			activeDays++
			weekPresent += n
		}
	}
	if rosterSize > 0 && activeDays > 0 {
		stats.WeekPercentage = Round1(float64(weekPresent) / float64(rosterSize*activeDays) * 100)
	}

	// All-time PRESENT counts per roster member. The left-join over the
	// roster keeps never-seen students eligible for "least present".
	counts := make(map[string]int, rosterSize)
	highConfidence := 0
	for _, ev := range events {
		if Status(ev.Status) != StatusPresent {
			continue
		}
		stats.TotalPresentEvents++
		counts[ev.StudentID]++
		if ev.Confidence > 0.9 {
			highConfidence++
		}
	}
	if stats.TotalPresentEvents > 0 {
		stats.RecognitionAccuracy = Round1(float64(highConfidence) / float64(stats.TotalPresentEvents) * 100)
	}

	if rosterSize > 0 {
		// Ties break by ascending student ID so repeated queries agree.
		sorted := make([]database.Student, len(roster))
		copy(sorted, roster)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].StudentID < sorted[j].StudentID })

		most, least := sorted[0], sorted[0]
		for _, s := range sorted[1:] {
			if counts[s.StudentID] > counts[most.StudentID] {
				most = s
			}
			if counts[s.StudentID] < counts[least.StudentID] {
				least = s
			}
		}

		if stats.TotalPresentEvents > 0 {
			stats.MostPresentID = most.StudentID
			stats.MostPresentName = most.Name
		}
		stats.LeastPresentID = least.StudentID
		stats.LeastPresentName = least.Name
	}

	return stats
}
