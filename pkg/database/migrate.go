package database

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// ResolveMigrationsPath looks for the migrations directory relative to the working directory and its parent.
func ResolveMigrationsPath(configured string) string {
	if filepath.IsAbs(configured) {
		return configured
	}

	workDir, err := os.Getwd()
	if err != nil {
		return configured
	}

	for _, candidate := range []string{
		filepath.Join(workDir, configured),
		filepath.Join(workDir, "..", configured),
	} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return configured
}

var ErrMigrationsMissing = errors.New("migrations directory does not exist")

// RunMigrations applies every pending up migration found in migrationsPath and logs
// the schema version the database ends at.
func RunMigrations(logger *slog.Logger, databaseURL, migrationsPath string) (err error) {
	absPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		return fmt.Errorf("resolve migrations path %q: %w", migrationsPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrMigrationsMissing, absPath)
	}

	migrator, err := migrate.New("file://"+absPath, databaseURL)
	if err != nil {
		return fmt.Errorf("open migrator: %w", err)
	}
	defer func() {
		srcErr, dbErr := migrator.Close()
		if closeErr := errors.Join(srcErr, dbErr); closeErr != nil && err == nil {
			err = fmt.Errorf("close migrator: %w", closeErr)
		}
	}()

	switch err = migrator.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		err = nil
	case err != nil:
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, verErr := migrator.Version()
	if verErr != nil && !errors.Is(verErr, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", verErr)
	}

	logger.Info("Database schema up to date", "path", absPath, "version", version, "dirty", dirty)
	return nil
}
