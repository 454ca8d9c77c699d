package cmd

import (
	"context"
	"fmt"

	"github.com/jsvoboda/rollcall/internal/config"
	"github.com/jsvoboda/rollcall/internal/database"
	"github.com/jsvoboda/rollcall/internal/database/mysql"
	"github.com/jsvoboda/rollcall/internal/database/postgres"
)

// repos bundles the storage repositories behind their interfaces so the
// commands work the same over either backend.
type repos struct {
	students   database.StudentWriter
	embeddings database.EmbeddingWriter
	ledger     database.LedgerWriter
	teachers   database.TeacherWriter

	migrate func(ctx context.Context) error
	close   func() error
}

// openRepos connects to the configured database backend.
func openRepos(cfg *config.Config) (*repos, error) {
	switch cfg.Database.Driver {
	case "", "postgres":
		pool, err := postgres.NewPool(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
		}
		return &repos{
			students:   postgres.NewStudentRepository(pool),
			embeddings: postgres.NewEmbeddingRepository(pool),
			ledger:     postgres.NewLedgerRepository(pool),
			teachers:   postgres.NewTeacherRepository(pool),
			migrate: func(ctx context.Context) error {
				return pool.Migrate(ctx, cfg.Embedder.Dim)
			},
			close: pool.Close,
		}, nil

	case "mysql":
		pool, err := mysql.NewPool(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to MySQL: %w", err)
		}
		return &repos{
			students:   mysql.NewStudentRepository(pool),
			embeddings: mysql.NewEmbeddingRepository(pool),
			ledger:     mysql.NewLedgerRepository(pool),
			teachers:   mysql.NewTeacherRepository(pool),
			migrate:    pool.Migrate,
			close:      pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}
