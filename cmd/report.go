package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jsvoboda/rollcall/internal/attendance"
	"github.com/jsvoboda/rollcall/internal/config"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print an attendance report for a date range",
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("start", "", "Start date as YYYY-MM-DD (default 29 days ago)")
	reportCmd.Flags().String("end", "", "End date as YYYY-MM-DD (default today)")
}

func runReport(cmd *cobra.Command, args []string) error {
	end := attendance.DayOf(time.Now().UTC())
	start := end.AddDate(0, 0, -29)

	if s := mustGetString(cmd, "start"); s != "" {
		parsed, err := attendance.ParseDay(s)
		if err != nil {
			return fmt.Errorf("invalid start date %q", s)
		}
		start = parsed
	}
	if s := mustGetString(cmd, "end"); s != "" {
		parsed, err := attendance.ParseDay(s)
		if err != nil {
			return fmt.Errorf("invalid end date %q", s)
		}
		end = parsed
	}
	if end.Before(start) {
		return fmt.Errorf("end date precedes start date")
	}

	cfg := config.Load()
	r, err := openRepos(cfg)
	if err != nil {
		return err
	}
	defer r.close()

	events, err := r.ledger.EventsInRange(cmd.Context(), start, end)
	if err != nil {
		return err
	}
	students, err := r.students.List(cmd.Context())
	if err != nil {
		return err
	}

	report := attendance.BuildReport(events, students, start, end)

	fmt.Printf("Attendance %s to %s (average %.1f%%)\n\n", report.StartDate, report.EndDate, report.AveragePercentage)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tPRESENT\tABSENT\tPERCENT\tUNKNOWN FACES")
	for _, d := range report.DailySummary {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.1f%%\t%d\n", d.Date, d.Present, d.Absent, d.Percentage, d.UnknownFaces)
	}
	w.Flush()

	fmt.Println()
	w = tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STUDENT\tNAME\tPRESENT\tABSENT\tPERCENT\tLAST SEEN")
	for _, p := range report.StudentPerformance {
		last := "-"
		if p.LastAttended != nil {
			last = *p.LastAttended
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.1f%%\t%s\n", p.StudentID, p.Name, p.PresentDays, p.AbsentDays, p.Percentage, last)
	}
	w.Flush()
	return nil
}
