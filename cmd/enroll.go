package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/jsvoboda/rollcall/internal/config"
	"github.com/jsvoboda/rollcall/internal/database"
	"github.com/jsvoboda/rollcall/internal/embedder"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll [photo]",
	Short: "Enroll a student from a portrait photo",
	Long: `Enroll a single student. The photo must contain exactly one
detectable face; its embedding becomes the student's reference vector.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

var enrollBatchCmd = &cobra.Command{
	Use:   "batch [directory]",
	Short: "Enroll every portrait in a directory",
	Long: `Enroll students in bulk. Each file must be named
<student_id>_<name>.jpg (underscores in the name become spaces),
for example S042_Jana_Novakova.jpg.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnrollBatch,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
	enrollCmd.AddCommand(enrollBatchCmd)

	enrollCmd.Flags().String("id", "", "Student ID (required)")
	enrollCmd.Flags().String("name", "", "Student name (required)")
	enrollCmd.Flags().String("class", "", "Class name")
}

// enrollOne embeds a portrait and stores the student with its vector.
func enrollOne(cmd *cobra.Command, cfg *config.Config, r *repos, client *embedder.Client, path, id, name, class string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	resized, err := embedder.ResizeImage(data, cfg.Upload.MaxImageSize)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}

	face, err := client.EmbedPortrait(cmd.Context(), resized)
	if err != nil {
		return fmt.Errorf("embedding %s: %w", path, err)
	}

	student := &database.Student{StudentID: id, Name: name, ClassName: class, PhotoPath: path}
	if err := r.students.Create(cmd.Context(), student); err != nil {
		return err
	}

	return r.embeddings.Save(cmd.Context(), database.StoredEmbedding{
		StudentID: id,
		Embedding: face.Embedding,
		Model:     client.Model(),
		Dim:       len(face.Embedding),
	})
}

func runEnroll(cmd *cobra.Command, args []string) error {
	id := mustGetString(cmd, "id")
	name := mustGetString(cmd, "name")
	if id == "" || name == "" {
		return errors.New("--id and --name are required")
	}

	cfg := config.Load()
	r, err := openRepos(cfg)
	if err != nil {
		return err
	}
	defer r.close()

	client := embedder.NewClient(cfg.Embedder.URL, cfg.Embedder.Model)
	if err := enrollOne(cmd, cfg, r, client, args[0], id, name, mustGetString(cmd, "class")); err != nil {
		return err
	}

	fmt.Printf("Enrolled %s (%s)\n", name, id)
	return nil
}

// parsePortraitName splits <student_id>_<name>.<ext> into its parts.
func parsePortraitName(filename string) (id, name string, err error) {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	parts := strings.SplitN(base, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("file %s is not named <student_id>_<name>", filename)
	}
	return parts[0], strings.ReplaceAll(parts[1], "_", " "), nil
}

func runEnrollBatch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	r, err := openRepos(cfg)
	if err != nil {
		return err
	}
	defer r.close()

	entries, err := os.ReadDir(args[0])
	if err != nil {
		return fmt.Errorf("reading directory: %w", err)
	}

	var portraits []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png":
			portraits = append(portraits, entry.Name())
		}
	}
	if len(portraits) == 0 {
		return errors.New("no portraits found")
	}

	client := embedder.NewClient(cfg.Embedder.URL, cfg.Embedder.Model)
	bar := progressbar.Default(int64(len(portraits)), "enrolling")

	enrolled, skipped := 0, 0
	for _, filename := range portraits {
		bar.Add(1)

		id, name, err := parsePortraitName(filename)
		if err != nil {
			fmt.Printf("\nSkipping: %v\n", err)
			skipped++
			continue
		}

		err = enrollOne(cmd, cfg, r, client, filepath.Join(args[0], filename), id, name, "")
		switch {
		case errors.Is(err, database.ErrDuplicateStudent):
			fmt.Printf("\nSkipping %s: already enrolled\n", id)
			skipped++
		case errors.Is(err, embedder.ErrNoFace):
			fmt.Printf("\nSkipping %s: no face detected\n", filename)
			skipped++
		case err != nil:
			return err
		default:
			enrolled++
		}
	}

	fmt.Printf("Enrolled %d students (%d skipped)\n", enrolled, skipped)
	return nil
}
