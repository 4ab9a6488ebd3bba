package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration commands",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Run all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openMigrationDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := createMigrationsTable(db); err != nil {
			return fmt.Errorf("create migrations table: %w", err)
		}

		applied, err := appliedMigrations(db)
		if err != nil {
			return fmt.Errorf("list applied migrations: %w", err)
		}

		files, err := migrationFiles()
		if err != nil {
			return err
		}

		pending := 0
		for _, file := range files {
			version, name, err := parseMigrationFilename(filepath.Base(file))
			if err != nil {
				fmt.Printf("  skipping invalid migration file: %s (%v)\n", file, err)
				continue
			}
			if applied[version] {
				continue
			}

			content, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read migration %s: %w", file, err)
			}

			tx, err := db.Begin()
			if err != nil {
				return fmt.Errorf("begin migration transaction: %w", err)
			}
			if _, err := tx.Exec(string(content)); err != nil {
				tx.Rollback()
				return fmt.Errorf("apply migration %s: %w", file, err)
			}
			if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, version, name); err != nil {
				tx.Rollback()
				return fmt.Errorf("record migration %s: %w", file, err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("commit migration %s: %w", file, err)
			}

			pending++
			fmt.Printf("  applied %s\n", filepath.Base(file))
		}

		if pending == 0 {
			fmt.Println("no pending migrations")
		} else {
			fmt.Printf("applied %d migration(s)\n", pending)
		}
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openMigrationDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := createMigrationsTable(db); err != nil {
			return fmt.Errorf("create migrations table: %w", err)
		}

		applied, err := appliedMigrations(db)
		if err != nil {
			return fmt.Errorf("list applied migrations: %w", err)
		}

		files, err := migrationFiles()
		if err != nil {
			return err
		}

		for _, file := range files {
			version, _, err := parseMigrationFilename(filepath.Base(file))
			if err != nil {
				continue
			}
			status := "pending"
			if applied[version] {
				status = "applied"
			}
			fmt.Printf("%s [%s]\n", filepath.Base(file), status)
		}
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func openMigrationDB() (*sql.DB, error) {
	dsn := os.Getenv("FHIRSTORE_DATABASE_URL")
	if dsn == "" {
		return nil, fmt.Errorf("FHIRSTORE_DATABASE_URL environment variable not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func createMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
	version BIGINT PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`)
	return err
}

func appliedMigrations(db *sql.DB) (map[int64]bool, error) {
	rows, err := db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int64]bool)
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func migrationFiles() ([]string, error) {
	files, err := filepath.Glob("migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("glob migrations directory: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// parseMigrationFilename extracts the version and name from a
// {version}_{name}.sql migration filename, e.g. 001_create_resources.sql.
func parseMigrationFilename(filename string) (int64, string, error) {
	name := strings.TrimSuffix(filename, ".sql")
	parts := strings.SplitN(name, "_", 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("expected {version}_{name}.sql, got %s", filename)
	}
	version, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid version number: %w", err)
	}
	return version, parts[1], nil
}
