// Package mysql provides a MySQL/MariaDB alternative to the postgres
// backend for deployments without the pgvector extension. Embeddings
// are stored as JSON arrays in a TEXT column; similarity is always
// computed in-process, so the database only needs to round-trip the
// vectors faithfully.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/jsvoboda/rollcall/internal/config"
)

// Pool manages a MySQL connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new MySQL connection pool from a DSN. The DSN
// must carry parseTime=true so DATE and TIMESTAMP columns scan into
// time.Time.
func NewPool(cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg.MySQLDSN == "" {
		return nil, errors.New("MySQL DSN is required")
	}

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// Migrate creates the schema.
func (p *Pool) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS students (
			id          BIGINT AUTO_INCREMENT PRIMARY KEY,
			student_id  VARCHAR(255) UNIQUE NOT NULL,
			name        VARCHAR(255) NOT NULL,
			class_name  VARCHAR(255) NOT NULL DEFAULT '',
			photo_path  VARCHAR(1024) NOT NULL DEFAULT '',
			created_by  VARCHAR(255) NOT NULL DEFAULT '',
			created_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS embeddings (
			student_id  VARCHAR(255) PRIMARY KEY,
			embedding   MEDIUMTEXT NOT NULL,
			model       VARCHAR(255) NOT NULL,
			dim         INT NOT NULL,
			created_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT fk_embeddings_student
				FOREIGN KEY (student_id) REFERENCES students(student_id)
				ON DELETE CASCADE
		)`,
		// MySQL has no partial unique indexes. present_key is the
		// (student, day) pair for PRESENT events and NULL otherwise;
		// NULLs never collide under a UNIQUE constraint, so UNKNOWN
		// events can repeat while a second PRESENT becomes a no-op
		// via INSERT IGNORE.
		`CREATE TABLE IF NOT EXISTS attendance_events (
			id          BIGINT AUTO_INCREMENT PRIMARY KEY,
			student_id  VARCHAR(255) NOT NULL DEFAULT '',
			day         DATE NOT NULL,
			status      VARCHAR(16) NOT NULL,
			confidence  DOUBLE NOT NULL DEFAULT 0,
			recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			recorded_by VARCHAR(255) NOT NULL DEFAULT '',
			present_key VARCHAR(300)
				AS (IF(status = 'PRESENT', CONCAT(student_id, '|', day), NULL)) STORED,
			UNIQUE KEY attendance_present_once (present_key),
			KEY attendance_events_day_idx (day)
		)`,
		`CREATE TABLE IF NOT EXISTS teachers (
			id            BIGINT AUTO_INCREMENT PRIMARY KEY,
			username      VARCHAR(255) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			name          VARCHAR(255) NOT NULL,
			email         VARCHAR(255) NOT NULL DEFAULT '',
			created_at    TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range statements {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}
	return nil
}

func encodeVector(v []float32) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode embedding: %w", err)
	}
	return string(data), nil
}

func decodeVector(s string) ([]float32, error) {
	var v []float32
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	return v, nil
}

func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
