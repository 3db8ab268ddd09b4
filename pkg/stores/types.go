package stores

import (
	"context"
	"database/sql"
	"time"
)

// RunStatus represents the outcome of a validation run.
type RunStatus string

const (
	RunStatusPassed RunStatus = "passed"
	RunStatusFailed RunStatus = "failed"
)

// SnapshotSource identifies where a topology was resolved from.
type SnapshotSource string

const (
	SnapshotSourceStateFile SnapshotSource = "state-file"
	SnapshotSourceAWS       SnapshotSource = "aws"
)

// ValidationRun records one validation of a stack configuration.
type ValidationRun struct {
	ID             string     `json:"id"`
	StackName      string     `json:"stack_name"`
	Environment    string     `json:"environment"`
	SourcePath     string     `json:"source_path"`
	Status         RunStatus  `json:"status"`
	ErrorCount     int        `json:"error_count"`
	ViolationCount int        `json:"violation_count"`
	Errors         string     `json:"errors"` // JSON array of field errors
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// OutputSnapshot records the outputs derived for a stack at a point in time.
type OutputSnapshot struct {
	ID        string         `json:"id"`
	RunID     *string        `json:"run_id,omitempty"`
	StackName string         `json:"stack_name"`
	Source    SnapshotSource `json:"source"`
	Outputs   string         `json:"outputs"` // JSON object of derived outputs
	DerivedAt time.Time      `json:"derived_at"`
	CreatedAt time.Time      `json:"created_at"`
}

// Store defines the interface for the persistence layer.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Validation run operations
	CreateValidationRun(ctx context.Context, run *ValidationRun) error
	GetValidationRun(ctx context.Context, id string) (*ValidationRun, error)
	ListValidationRuns(ctx context.Context, stackName *string, limit, offset int) ([]*ValidationRun, error)
	DeleteValidationRun(ctx context.Context, id string) error
	PruneValidationRuns(ctx context.Context, before time.Time) (int64, error)

	// Output snapshot operations
	SaveOutputSnapshot(ctx context.Context, snap *OutputSnapshot) error
	GetOutputSnapshot(ctx context.Context, id string) (*OutputSnapshot, error)
	LatestOutputSnapshot(ctx context.Context, stackName string) (*OutputSnapshot, error)
	ListOutputSnapshots(ctx context.Context, stackName *string, limit, offset int) ([]*OutputSnapshot, error)
	DeleteOutputSnapshot(ctx context.Context, id string) error

	// Utility
	HealthCheck(ctx context.Context) error
}
