package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{
		cfg: cfg,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// CommitTx commits a transaction
func (s *SQLiteStore) CommitTx(tx *sql.Tx) error {
	return tx.Commit()
}

// RollbackTx rolls back a transaction
func (s *SQLiteStore) RollbackTx(tx *sql.Tx) error {
	return tx.Rollback()
}

// CreateValidationRun creates a new validation run record
func (s *SQLiteStore) CreateValidationRun(ctx context.Context, run *ValidationRun) error {
	query := `
		INSERT INTO validation_runs (
			id, stack_name, environment, source_path, status,
			error_count, violation_count, errors, started_at, completed_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.StackName,
		run.Environment,
		run.SourcePath,
		run.Status,
		run.ErrorCount,
		run.ViolationCount,
		run.Errors,
		run.StartedAt,
		run.CompletedAt,
		run.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create validation run: %w", err)
	}

	return nil
}

// GetValidationRun retrieves a validation run by ID
func (s *SQLiteStore) GetValidationRun(ctx context.Context, id string) (*ValidationRun, error) {
	query := `
		SELECT id, stack_name, environment, source_path, status,
			   error_count, violation_count, errors, started_at, completed_at, created_at
		FROM validation_runs
		WHERE id = ?
	`

	run := &ValidationRun{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.StackName,
		&run.Environment,
		&run.SourcePath,
		&run.Status,
		&run.ErrorCount,
		&run.ViolationCount,
		&run.Errors,
		&run.StartedAt,
		&run.CompletedAt,
		&run.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("validation run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get validation run: %w", err)
	}

	return run, nil
}

// ListValidationRuns lists validation runs, newest first, optionally
// filtered to a single stack.
func (s *SQLiteStore) ListValidationRuns(ctx context.Context, stackName *string, limit, offset int) ([]*ValidationRun, error) {
	query := `
		SELECT id, stack_name, environment, source_path, status,
			   error_count, violation_count, errors, started_at, completed_at, created_at
		FROM validation_runs
		WHERE (? IS NULL OR stack_name = ?)
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, stackName, stackName, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list validation runs: %w", err)
	}
	defer rows.Close()

	runs := []*ValidationRun{}
	for rows.Next() {
		run := &ValidationRun{}
		err := rows.Scan(
			&run.ID,
			&run.StackName,
			&run.Environment,
			&run.SourcePath,
			&run.Status,
			&run.ErrorCount,
			&run.ViolationCount,
			&run.Errors,
			&run.StartedAt,
			&run.CompletedAt,
			&run.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan validation run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating validation runs: %w", err)
	}

	return runs, nil
}

// DeleteValidationRun deletes a validation run by ID
func (s *SQLiteStore) DeleteValidationRun(ctx context.Context, id string) error {
	query := `DELETE FROM validation_runs WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete validation run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("validation run not found: %s", id)
	}

	return nil
}

// PruneValidationRuns deletes runs that started before the cutoff and
// returns how many were removed.
func (s *SQLiteStore) PruneValidationRuns(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM validation_runs WHERE started_at < ?`

	result, err := s.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune validation runs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// SaveOutputSnapshot inserts a new output snapshot
func (s *SQLiteStore) SaveOutputSnapshot(ctx context.Context, snap *OutputSnapshot) error {
	query := `
		INSERT INTO output_snapshots (id, run_id, stack_name, source, outputs, derived_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		snap.ID,
		snap.RunID,
		snap.StackName,
		snap.Source,
		snap.Outputs,
		snap.DerivedAt,
		snap.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save output snapshot: %w", err)
	}

	return nil
}

// GetOutputSnapshot retrieves an output snapshot by ID
func (s *SQLiteStore) GetOutputSnapshot(ctx context.Context, id string) (*OutputSnapshot, error) {
	query := `
		SELECT id, run_id, stack_name, source, outputs, derived_at, created_at
		FROM output_snapshots
		WHERE id = ?
	`

	snap := &OutputSnapshot{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&snap.ID,
		&snap.RunID,
		&snap.StackName,
		&snap.Source,
		&snap.Outputs,
		&snap.DerivedAt,
		&snap.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("output snapshot not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get output snapshot: %w", err)
	}

	return snap, nil
}

// LatestOutputSnapshot retrieves the most recent snapshot for a stack
func (s *SQLiteStore) LatestOutputSnapshot(ctx context.Context, stackName string) (*OutputSnapshot, error) {
	query := `
		SELECT id, run_id, stack_name, source, outputs, derived_at, created_at
		FROM output_snapshots
		WHERE stack_name = ?
		ORDER BY derived_at DESC
		LIMIT 1
	`

	snap := &OutputSnapshot{}
	err := s.db.QueryRowContext(ctx, query, stackName).Scan(
		&snap.ID,
		&snap.RunID,
		&snap.StackName,
		&snap.Source,
		&snap.Outputs,
		&snap.DerivedAt,
		&snap.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no output snapshots for stack: %s", stackName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest output snapshot: %w", err)
	}

	return snap, nil
}

// ListOutputSnapshots lists snapshots, newest first, optionally filtered
// to a single stack.
func (s *SQLiteStore) ListOutputSnapshots(ctx context.Context, stackName *string, limit, offset int) ([]*OutputSnapshot, error) {
	query := `
		SELECT id, run_id, stack_name, source, outputs, derived_at, created_at
		FROM output_snapshots
		WHERE (? IS NULL OR stack_name = ?)
		ORDER BY derived_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, stackName, stackName, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list output snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []*OutputSnapshot{}
	for rows.Next() {
		snap := &OutputSnapshot{}
		err := rows.Scan(
			&snap.ID,
			&snap.RunID,
			&snap.StackName,
			&snap.Source,
			&snap.Outputs,
			&snap.DerivedAt,
			&snap.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan output snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating output snapshots: %w", err)
	}

	return snaps, nil
}

// DeleteOutputSnapshot deletes an output snapshot by ID
func (s *SQLiteStore) DeleteOutputSnapshot(ctx context.Context, id string) error {
	query := `DELETE FROM output_snapshots WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete output snapshot: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("output snapshot not found: %s", id)
	}

	return nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
