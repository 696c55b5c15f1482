package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/asakaida/kanmon/internal/infrastructure/config"
	"github.com/asakaida/kanmon/internal/infrastructure/database"
	"github.com/asakaida/kanmon/internal/infrastructure/logging"
)

var (
	envFlag string
	pg      *database.Postgres
	logger  = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration tool for kanmon",
	Long: `Database migration tool for kanmon.
Manages the roles and permissions PostgreSQL schema using golang-migrate.`,
	PersistentPreRunE: setupDatabase,
	SilenceUsage:      true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Long:  `Apply all pending migrations to the database.`,
	RunE:  runUp,
}

var downCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Rollback migrations",
	Long:  `Rollback the specified number of migrations (default: 1).`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDown,
}

var gotoCmd = &cobra.Command{
	Use:   "goto <version>",
	Short: "Migrate to a specific version",
	Long:  `Migrate to a specific version number.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runGoto,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show current migration version",
	Long:  `Display the current migration version of the database.`,
	RunE:  runVersion,
}

var forceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Force set migration version (use with caution)",
	Long:  `Force set the migration version without running migrations. Use with caution.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runForce,
}

func init() {
	// Add global --env flag to all commands
	rootCmd.PersistentFlags().StringVarP(&envFlag, "env", "e", "dev", "Environment to use (dev, test, prod)")

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(downCmd)
	rootCmd.AddCommand(gotoCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(forceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Fatalf("Failed to execute command: %v", err)
	}
}

func setupDatabase(cmd *cobra.Command, args []string) error {
	// Initialize configuration from .env.{env} file
	if err := config.InitConfig(envFlag); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger = logging.New(cfg.Log)
	logger.WithField("env", envFlag).Info("using environment")

	pg, err = database.NewPostgres(&cfg.Database)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"user":     cfg.Database.User,
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Database,
	}).Info("connected to database")
	return nil
}

// newMigrator opens a migrator on the project migrations directory
func newMigrator() (*migrate.Migrate, error) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to find project root: %w", err)
	}

	migrationsPath := filepath.Join(projectRoot, database.MigrationsPath)
	logger.WithField("path", migrationsPath).Debug("using migrations path")
	return pg.NewMigrator(migrationsPath)
}

func runUp(cmd *cobra.Command, args []string) error {
	m, err := newMigrator()
	if err != nil {
		return err
	}
	defer m.Close()

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("no migrations to apply")
	case err != nil:
		return fmt.Errorf("migration up failed: %w", err)
	default:
		logger.Info("migration up completed successfully")
	}
	return nil
}

func runDown(cmd *cobra.Command, args []string) error {
	steps := 1 // Default: rollback 1 migration
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid steps %q: must be a positive integer", args[0])
		}
		steps = n
	}

	m, err := newMigrator()
	if err != nil {
		return err
	}
	defer m.Close()

	err = m.Steps(-steps)
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("no migrations to rollback")
	case err != nil:
		return fmt.Errorf("migration down failed: %w", err)
	default:
		logger.WithField("steps", steps).Info("migration down completed successfully")
	}
	return nil
}

func runGoto(cmd *cobra.Command, args []string) error {
	version, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", args[0], err)
	}

	m, err := newMigrator()
	if err != nil {
		return err
	}
	defer m.Close()

	err = m.Migrate(uint(version))
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.WithField("version", version).Info("already at version")
	case err != nil:
		return fmt.Errorf("migration goto failed: %w", err)
	default:
		logger.WithField("version", version).Info("migration goto completed successfully")
	}
	return nil
}

func runVersion(cmd *cobra.Command, args []string) error {
	m, err := newMigrator()
	if err != nil {
		return err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		logger.Info("no migrations applied yet")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}

	logger.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info("current version")
	return nil
}

func runForce(cmd *cobra.Command, args []string) error {
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", args[0], err)
	}

	m, err := newMigrator()
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Force(version); err != nil {
		return fmt.Errorf("migration force failed: %w", err)
	}

	logger.WithField("version", version).Warn("migration version forced")
	return nil
}

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	// Walk up the directory tree until we find go.mod
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}
