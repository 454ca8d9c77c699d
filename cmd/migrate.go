package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jsvoboda/rollcall/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()

		r, err := openRepos(cfg)
		if err != nil {
			return err
		}
		defer r.close()

		if err := r.migrate(cmd.Context()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		fmt.Printf("Schema ready (embedding model %s, dim %d)\n", cfg.Embedder.Model, cfg.Embedder.Dim)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
