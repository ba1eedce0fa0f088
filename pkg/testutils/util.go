// SPDX-License-Identifier: Apache-2.0

package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pgmirror/pgmirror/pkg/db"
	"github.com/pgmirror/pgmirror/pkg/slot"
)

// The version of postgres against which the tests are run
// if the POSTGRES_VERSION environment variable is not set.
const defaultPostgresVersion = "15.3"

// tConnStr holds the connection string to the test container created in TestMain.
var tConnStr string

// SharedTestMain starts a postgres container to be used by all tests in a package.
// Each test then connects to the container and creates a new database.
func SharedTestMain(m *testing.M) {
	ctx := context.Background()

	waitForLogs := wait.
		ForLog("database system is ready to accept connections").
		WithOccurrence(2).
		WithStartupTimeout(5 * time.Second)

	pgVersion := os.Getenv("POSTGRES_VERSION")
	if pgVersion == "" {
		pgVersion = defaultPostgresVersion
	}

	ctr, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:"+pgVersion),
		testcontainers.WithWaitStrategy(waitForLogs),
	)
	if err != nil {
		os.Exit(1)
	}

	tConnStr, err = ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		os.Exit(1)
	}

	db, err := sql.Open("postgres", tConnStr)
	if err != nil {
		os.Exit(1)
	}

	// create handy role for tests
	_, err = db.ExecContext(ctx, "CREATE ROLE pgmirror")
	if err != nil {
		os.Exit(1)
	}

	_, err = db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS test_decoding")
	if err != nil {
		log.Printf("test_decoding extension unavailable (bundled, safe to ignore): %v", err)
	}

	exitCode := m.Run()

	if err := ctr.Terminate(ctx); err != nil {
		log.Printf("Failed to terminate container: %v", err)
	}

	os.Exit(exitCode)
}

// TestSchema returns the schema new test databases are created in. By
// default, test fixtures live in the "public" schema.
func TestSchema() string {
	testSchema := os.Getenv("PGMIRROR_TEST_SCHEMA")
	if testSchema != "" {
		return testSchema
	}
	return "public"
}

func WithConnectionToContainer(t *testing.T, fn func(*sql.DB, string)) {
	t.Helper()

	sqlDB, connStr, _ := setupTestDatabase(t)

	fn(sqlDB, connStr)
}

// WithSlotAndConnectionToContainer creates a fresh test database, wraps
// it in a retrying db.RDB, and hands the caller a slot Manager for the
// named (database, index) pair alongside the raw connection.
func WithSlotAndConnectionToContainer(t *testing.T, database, index string, fn func(*slot.Manager, *sql.DB)) {
	t.Helper()
	ctx := context.Background()

	sqlDB, _, _ := setupTestDatabase(t)

	rdb := &db.RDB{DB: sqlDB}
	slotMgr := slot.NewManager(rdb, database, index)

	t.Cleanup(func() {
		_ = slotMgr.Drop(ctx)
	})

	fn(slotMgr, sqlDB)
}

// setupTestDatabase creates a new database in the test container and returns:
// - a connection to the new database
// - the connection string to the new database
// - the name of the new database
func setupTestDatabase(t *testing.T) (*sql.DB, string, string) {
	t.Helper()
	ctx := context.Background()

	tDB, err := sql.Open("postgres", tConnStr)
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		if err := tDB.Close(); err != nil {
			t.Fatalf("Failed to close database connection: %v", err)
		}
	})

	dbName := randomDBName()

	_, err = tDB.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(dbName)))
	if err != nil {
		t.Fatal(err)
	}

	u, err := url.Parse(tConnStr)
	if err != nil {
		t.Fatal(err)
	}

	u.Path = "/" + dbName
	connStr := u.String()

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("Failed to close database connection: %v", err)
		}
	})

	return db, connStr, dbName
}
