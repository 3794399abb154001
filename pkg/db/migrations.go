package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const migrationsLogPrefix = "db:migrations"

const downSuffix = ".down.sql"

// Migration is one schema step. Down is empty when the step cannot be undone.
type Migration struct {
	Name string
	Up   string
	Down string
}

// MigrationState reports whether a migration has been applied.
type MigrationState struct {
	Name    string
	Applied bool
}

// LoadMigrationFiles reads the migrations in dir, sorted by file name.
// "NNN_name.sql" holds the up step and an optional "NNN_name.down.sql" the
// matching down step.
func LoadMigrationFiles(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read migration dir %s: %w", migrationsLogPrefix, dir, err)
	}

	ups := make(map[string]string)
	downs := make(map[string]string)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".sql" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%s - failed to read %s: %w", migrationsLogPrefix, name, err)
		}
		if strings.HasSuffix(name, downSuffix) {
			downs[strings.TrimSuffix(name, downSuffix)] = string(data)
			continue
		}
		ups[strings.TrimSuffix(name, ".sql")] = string(data)
	}

	names := make([]string, 0, len(ups))
	for name := range ups {
		names = append(names, name)
	}
	sort.Strings(names)

	for name := range downs {
		if _, ok := ups[name]; !ok {
			return nil, fmt.Errorf("%s - %s%s has no matching up migration", migrationsLogPrefix, name, downSuffix)
		}
	}

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		out = append(out, Migration{Name: name, Up: ups[name], Down: downs[name]})
	}
	slog.Info(fmt.Sprintf("%s - Loaded %d migrations from %s", migrationsLogPrefix, len(out), dir))
	return out, nil
}

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	name    TEXT PRIMARY KEY,
	applied TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func appliedMigrations(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	if _, err := pool.Exec(ctx, createMigrationsTable); err != nil {
		return nil, fmt.Errorf("%s - failed to create schema_migrations: %w", migrationsLogPrefix, err)
	}
	rows, err := pool.Query(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read schema_migrations: %w", migrationsLogPrefix, err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read schema_migrations: %w", migrationsLogPrefix, err)
	}
	applied := make(map[string]bool, len(names))
	for _, n := range names {
		applied[n] = true
	}
	return applied, nil
}

// pending returns the migrations not yet applied, in order.
func pending(all []Migration, applied map[string]bool) []Migration {
	var out []Migration
	for _, m := range all {
		if !applied[m.Name] {
			out = append(out, m)
		}
	}
	return out
}

// RunMigrations applies the migrations that have not been applied yet, each
// in its own transaction.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) error {
	applied, err := appliedMigrations(ctx, pool)
	if err != nil {
		return err
	}
	todo := pending(migrations, applied)
	slog.Info(fmt.Sprintf("%s - %d of %d migrations pending", migrationsLogPrefix, len(todo), len(migrations)))

	for _, m := range todo {
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.Up); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, m.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%s - migration %s failed: %w", migrationsLogPrefix, m.Name, err)
		}
		slog.Info(fmt.Sprintf("%s - Applied %s", migrationsLogPrefix, m.Name))
	}
	return nil
}

// MigrationStatus lists every migration found in migrationPath with whether
// it has been applied.
func MigrationStatus(ctx context.Context, pool *pgxpool.Pool, migrationPath string) ([]MigrationState, error) {
	all, err := LoadMigrationFiles(migrationPath)
	if err != nil {
		return nil, err
	}
	applied, err := appliedMigrations(ctx, pool)
	if err != nil {
		return nil, err
	}
	out := make([]MigrationState, 0, len(all))
	for _, m := range all {
		out = append(out, MigrationState{Name: m.Name, Applied: applied[m.Name]})
	}
	return out, nil
}

// ErrNoDownMigration is returned when the last applied migration has no down step.
var ErrNoDownMigration = errors.New("migration has no down step")

// MigrationDown rolls back the most recently applied migration and returns
// its name. It returns "" when nothing is applied.
func MigrationDown(ctx context.Context, pool *pgxpool.Pool, migrationPath string) (string, error) {
	all, err := LoadMigrationFiles(migrationPath)
	if err != nil {
		return "", err
	}
	applied, err := appliedMigrations(ctx, pool)
	if err != nil {
		return "", err
	}

	last, ok := lastApplied(all, applied)
	if !ok {
		slog.Info(fmt.Sprintf("%s - No applied migrations to roll back", migrationsLogPrefix))
		return "", nil
	}
	if last.Down == "" {
		return "", fmt.Errorf("%s - %s: %w", migrationsLogPrefix, last.Name, ErrNoDownMigration)
	}

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, last.Down); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE name = $1`, last.Name)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%s - rollback of %s failed: %w", migrationsLogPrefix, last.Name, err)
	}
	slog.Info(fmt.Sprintf("%s - Rolled back %s", migrationsLogPrefix, last.Name))
	return last.Name, nil
}

func lastApplied(all []Migration, applied map[string]bool) (Migration, bool) {
	for i := len(all) - 1; i >= 0; i-- {
		if applied[all[i].Name] {
			return all[i], true
		}
	}
	return Migration{}, false
}
