package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jsvoboda/rollcall/internal/config"
)

var studentsCmd = &cobra.Command{
	Use:   "students",
	Short: "Manage the student roster",
}

var studentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled students",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		r, err := openRepos(cfg)
		if err != nil {
			return err
		}
		defer r.close()

		students, err := r.students.List(cmd.Context())
		if err != nil {
			return err
		}

		enrolled := make(map[string]bool)
		embeddings, err := r.embeddings.ListAll(cmd.Context())
		if err != nil {
			return err
		}
		for _, emb := range embeddings {
			enrolled[emb.StudentID] = true
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCLASS\tFACE")
		for _, s := range students {
			face := "-"
			if enrolled[s.StudentID] {
				face = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.StudentID, s.Name, s.ClassName, face)
		}
		w.Flush()
		fmt.Printf("%d students\n", len(students))
		return nil
	},
}

var studentsRenameCmd = &cobra.Command{
	Use:   "rename [student-id] [new-name]",
	Short: "Change a student's display name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		r, err := openRepos(cfg)
		if err != nil {
			return err
		}
		defer r.close()

		if err := r.students.Rename(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Renamed %s to %q\n", args[0], args[1])
		return nil
	},
}

var studentsDeleteCmd = &cobra.Command{
	Use:   "delete [student-id]",
	Short: "Remove a student and their reference embedding",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return errors.New("refusing to delete without --yes")
		}

		cfg := config.Load()
		r, err := openRepos(cfg)
		if err != nil {
			return err
		}
		defer r.close()

		if err := r.students.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s (attendance history kept)\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(studentsCmd)
	studentsCmd.AddCommand(studentsListCmd)
	studentsCmd.AddCommand(studentsRenameCmd)
	studentsCmd.AddCommand(studentsDeleteCmd)

	studentsDeleteCmd.Flags().Bool("yes", false, "Confirm deletion")
}
