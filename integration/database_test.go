//go:build database

package integration

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestRewatchWithMySQL tests the rewatch CLI with a MySQL backend.
func TestRewatchWithMySQL(t *testing.T) {
	ctx := context.Background()

	// Start MySQL container
	req := testcontainers.ContainerRequest{
		Image:        "mysql:8",
		ExposedPorts: []string{"3306:3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "secret123",
			"MYSQL_DATABASE":      "rewatch",
		},
		WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").WithStartupTimeout(30 * time.Second),
	}
	mysqlC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer func() { _ = mysqlC.Terminate(ctx) }()

	// Get connection details
	host, err := mysqlC.Host(ctx)
	require.NoError(t, err)
	port, err := mysqlC.MappedPort(ctx, "3306")
	require.NoError(t, err)

	connStr := fmt.Sprintf("root:secret123@tcp(%s:%s)/rewatch?parseTime=true", host, port.Port())

	// Set environment variables
	_ = os.Setenv("REWATCH_CACHE_BACKEND", "mysql")
	_ = os.Setenv("REWATCH_CACHE_DB_CONNECT", connStr)
	_ = os.Setenv("REWATCH_RUNS_BACKEND", "mysql")
	_ = os.Setenv("REWATCH_RUNS_DB_CONNECT", connStr)
	defer func() { _ = os.Unsetenv("REWATCH_CACHE_BACKEND") }()
	defer func() { _ = os.Unsetenv("REWATCH_CACHE_DB_CONNECT") }()
	defer func() { _ = os.Unsetenv("REWATCH_RUNS_BACKEND") }()
	defer func() { _ = os.Unsetenv("REWATCH_RUNS_DB_CONNECT") }()

	runBackendSmoke(t)
}

// TestRewatchWithPostgres tests the rewatch CLI with a PostgreSQL backend.
func TestRewatchWithPostgres(t *testing.T) {
	ctx := context.Background()

	// Start Postgres container
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432:5432/tcp"},
		Env: map[string]string{
			"POSTGRES_HOST_AUTH_METHOD": "trust",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer func() { _ = pgC.Terminate(ctx) }()
	time.Sleep(5 * time.Second)

	// Get connection details
	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connStr := fmt.Sprintf("host=%s port=%s user=postgres dbname=postgres", host, port.Port())

	// Set environment variables
	_ = os.Setenv("REWATCH_CACHE_BACKEND", "postgresql")
	_ = os.Setenv("REWATCH_CACHE_DB_CONNECT", connStr)
	_ = os.Setenv("REWATCH_RUNS_BACKEND", "postgresql")
	_ = os.Setenv("REWATCH_RUNS_DB_CONNECT", connStr)
	defer func() { _ = os.Unsetenv("REWATCH_CACHE_BACKEND") }()
	defer func() { _ = os.Unsetenv("REWATCH_CACHE_DB_CONNECT") }()
	defer func() { _ = os.Unsetenv("REWATCH_RUNS_BACKEND") }()
	defer func() { _ = os.Unsetenv("REWATCH_RUNS_DB_CONNECT") }()

	runBackendSmoke(t)
}

// runBackendSmoke drives the full command surface against whatever backend
// the environment variables point at.
func runBackendSmoke(t *testing.T) {
	t.Helper()

	// Generate a small deterministic dataset
	eventsPath := filepath.Join(t.TempDir(), "events.csv")
	err := runRewatchCommand(t, "simulate", eventsPath, "--viewers", "200", "--days", "14")
	require.NoError(t, err)

	// Run rewatch cache clear
	err = runRewatchCommand(t, "cache", "clear")
	require.NoError(t, err)

	// Run rewatch runs clear
	err = runRewatchCommand(t, "runs", "clear")
	require.NoError(t, err)

	// Run the full pipeline against the dataset
	err = runRewatchCommand(t, "run", eventsPath, "--limit", "5")
	require.NoError(t, err)

	// Re-run to exercise the warm session cache
	err = runRewatchCommand(t, "run", eventsPath, "--limit", "5")
	require.NoError(t, err)

	// Run rewatch cache status
	err = runRewatchCommand(t, "cache", "status")
	require.NoError(t, err)

	// Run rewatch runs status
	err = runRewatchCommand(t, "runs", "status")
	require.NoError(t, err)

	// Run rewatch runs list
	err = runRewatchCommand(t, "runs", "list", "--limit", "5")
	require.NoError(t, err)
}

func runRewatchCommand(t *testing.T, args ...string) error {
	rewatchPath := getRewatchBinary()
	cmd := exec.Command(rewatchPath, args...)
	cmd.Dir = "../" // Run from project root
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Logf("Command failed: %s\nOutput: %s", cmd.String(), string(output))
		return err
	}
	return nil
}
