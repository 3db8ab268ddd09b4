package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sitestack/sitestack/pkg/stores"
)

// ExampleNewSQLiteStore demonstrates creating and initializing a new SQLite store.
func ExampleNewSQLiteStore() {
	store, err := stores.NewSQLiteStore(stores.Config{
		Path:            ":memory:", // Use in-memory database for example
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}

	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	defer store.Close()

	fmt.Println("Store initialized successfully")
	// Output: Store initialized successfully
}

// ExampleSQLiteStore_CreateValidationRun demonstrates recording a validation run.
func ExampleSQLiteStore_CreateValidationRun() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	run := &stores.ValidationRun{
		ID:          "run-001",
		StackName:   "acme-site",
		Environment: "prod",
		SourcePath:  "./stacks/acme-site",
		Status:      stores.RunStatusPassed,
		Errors:      "[]",
		StartedAt:   time.Now(),
		CreatedAt:   time.Now(),
	}

	if err := store.CreateValidationRun(ctx, run); err != nil {
		log.Fatal(err)
	}

	retrieved, err := store.GetValidationRun(ctx, "run-001")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Run ID: %s, Status: %s\n", retrieved.ID, retrieved.Status)
	// Output: Run ID: run-001, Status: passed
}

// ExampleSQLiteStore_SaveOutputSnapshot demonstrates storing derived outputs.
func ExampleSQLiteStore_SaveOutputSnapshot() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	snap := &stores.OutputSnapshot{
		ID:        "snap-001",
		StackName: "acme-site",
		Source:    stores.SnapshotSourceStateFile,
		Outputs:   `{"cloudfront_distribution_id":"E2ABCDEFGHIJKL"}`,
		DerivedAt: time.Now(),
		CreatedAt: time.Now(),
	}

	if err := store.SaveOutputSnapshot(ctx, snap); err != nil {
		log.Fatal(err)
	}

	latest, err := store.LatestOutputSnapshot(ctx, "acme-site")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Snapshot: %s from %s\n", latest.ID, latest.Source)
	// Output: Snapshot: snap-001 from state-file
}
