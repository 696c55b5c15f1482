package postgres

import (
	"database/sql"
	"fmt"
	"os"
	"testing"

	_ "github.com/lib/pq"

	"github.com/asakaida/kanmon/internal/infrastructure/config"
	"github.com/asakaida/kanmon/internal/infrastructure/database"
)

// SetupTestDB creates a test database connection and runs migrations.
// The test is skipped unless KANMON_DB_TESTS is set.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	if os.Getenv("KANMON_DB_TESTS") == "" {
		t.Skip("KANMON_DB_TESTS not set, skipping database test")
	}

	if err := config.InitConfig("test"); err != nil {
		t.Fatalf("Failed to init config: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	pg, err := database.NewPostgres(&cfg.Database)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := pg.RunMigrations("../../../internal/infrastructure/database/migrations/postgres"); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return pg.DB
}

// CleanupTestDB closes the database connection and cleans up test data
func CleanupTestDB(t *testing.T, db *sql.DB) {
	t.Helper()

	tables := []string{"permissions", "permission_changes", "roles"}
	for _, table := range tables {
		_, err := db.Exec(fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("Warning: Failed to clean up table %s: %v", table, err)
		}
	}

	if err := db.Close(); err != nil {
		t.Logf("Warning: Failed to close database: %v", err)
	}
}
