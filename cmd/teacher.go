package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jsvoboda/rollcall/internal/auth"
	"github.com/jsvoboda/rollcall/internal/config"
	"github.com/jsvoboda/rollcall/internal/database"
)

var teacherCmd = &cobra.Command{
	Use:   "teacher",
	Short: "Manage teacher accounts",
}

var teacherCreateCmd = &cobra.Command{
	Use:   "create [username]",
	Short: "Create a teacher account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password := mustGetString(cmd, "password")
		name := mustGetString(cmd, "name")
		if password == "" {
			return errors.New("--password is required")
		}
		if name == "" {
			name = args[0]
		}

		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}

		cfg := config.Load()
		r, err := openRepos(cfg)
		if err != nil {
			return err
		}
		defer r.close()

		existing, err := r.teachers.GetByUsername(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("account %q already exists", args[0])
		}

		teacher := &database.Teacher{
			Username:     args[0],
			PasswordHash: hash,
			Name:         name,
			Email:        mustGetString(cmd, "email"),
		}
		if err := r.teachers.Create(cmd.Context(), teacher); err != nil {
			return err
		}
		fmt.Printf("Created account %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(teacherCmd)
	teacherCmd.AddCommand(teacherCreateCmd)

	teacherCreateCmd.Flags().String("password", "", "Account password (required)")
	teacherCreateCmd.Flags().String("name", "", "Display name (defaults to username)")
	teacherCreateCmd.Flags().String("email", "", "Contact email")
}
