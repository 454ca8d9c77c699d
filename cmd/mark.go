package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jsvoboda/rollcall/internal/attendance"
	"github.com/jsvoboda/rollcall/internal/config"
	"github.com/jsvoboda/rollcall/internal/embedder"
	"github.com/jsvoboda/rollcall/internal/logger"
)

var markCmd = &cobra.Command{
	Use:   "mark [class-photo]",
	Short: "Mark attendance from a class photo",
	Long: `Detect faces in a class photo, match them against the enrolled
gallery and record attendance. Re-running on the same day never
creates duplicate presence records.`,
	Args: cobra.ExactArgs(1),
	RunE: runMark,
}

func init() {
	rootCmd.AddCommand(markCmd)

	markCmd.Flags().String("date", "", "Attendance date as YYYY-MM-DD (defaults to today)")
	markCmd.Flags().String("recorder", "", "Recorder attribution for the ledger")
}

func runMark(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	day := time.Now().UTC()
	if dateStr := mustGetString(cmd, "date"); dateStr != "" {
		parsed, err := attendance.ParseDay(dateStr)
		if err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", dateStr)
		}
		day = parsed
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading photo: %w", err)
	}
	resized, err := embedder.ResizeImage(data, cfg.Upload.MaxImageSize)
	if err != nil {
		return fmt.Errorf("decoding photo: %w", err)
	}

	client := embedder.NewClient(cfg.Embedder.URL, cfg.Embedder.Model)
	detected, err := client.DetectFaces(cmd.Context(), resized)
	if err != nil {
		return fmt.Errorf("detecting faces: %w", err)
	}

	r, err := openRepos(cfg)
	if err != nil {
		return err
	}
	defer r.close()

	stored, err := r.embeddings.ListAll(cmd.Context())
	if err != nil {
		return err
	}
	gallery := make([]attendance.Reference, 0, len(stored))
	for _, emb := range stored {
		gallery = append(gallery, attendance.Reference{StudentID: emb.StudentID, Embedding: emb.Embedding})
	}

	faces := make([]attendance.QueryFace, 0, len(detected.Faces))
	for i, f := range detected.Faces {
		faces = append(faces, attendance.QueryFace{Embedding: f.Embedding, BBox: f.BBox, Index: i})
	}

	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		return err
	}
	defer log.Sync()

	session := attendance.NewSession(attendance.NewScanMatcher(log), r.ledger, cfg.Attendance.Threshold, log)
	result, err := session.MarkAttendance(cmd.Context(), day, faces, gallery, mustGetString(cmd, "recorder"))
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d faces, %d present, %d unknown\n",
		attendance.FormatDay(attendance.DayOf(day)), result.TotalFaces, result.PresentCount, result.UnknownCount)
	for _, fr := range result.Faces {
		if fr.Status == attendance.StatusPresent {
			fmt.Printf("  face %d: %s (confidence %.1f%%)\n", fr.FaceID, fr.StudentID, fr.Confidence*100)
		} else {
			fmt.Printf("  face %d: unknown\n", fr.FaceID)
		}
	}
	return nil
}
