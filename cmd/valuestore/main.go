// Package main is the entrypoint for the valuestore service (binary name "valuestore" in Docker).
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"sigs.k8s.io/yaml"

	"github.com/morezero/valuestore/internal/config"
	"github.com/morezero/valuestore/internal/server"
	"github.com/morezero/valuestore/pkg/catalog"
	"github.com/morezero/valuestore/pkg/db"
	"github.com/morezero/valuestore/pkg/library"
)

const usage = `Usage: valuestore [command]
       valuestore serve                 Start the value store (COMMS, HTTP, document API).
       valuestore migrate up            Apply pending database migrations.
       valuestore migrate down          Roll back the last applied migration (needs its .down.sql).
       valuestore migrate status        Show migration status.
       valuestore ensure-db [name]      Create database if missing (default: the database in DATABASE_URL).
       valuestore clear [collection]    Delete stored documents; schema is preserved.
       valuestore catalog [file]        Print the resolved type catalog as YAML.

Commands:
  serve              (default) Start the value store.
  migrate up         Apply pending database migrations.
  migrate down       Roll back the last applied migration.
  migrate status     Show current migration status.
  ensure-db [name]   Create database (e.g. valuestore_test) on same host as DATABASE_URL.
  clear [collection] Delete all documents, or those of one collection.
  catalog [file]     Load the catalog manifest (file, CATALOG_FILE or config/catalog.yaml) and print it.

Environment: DATABASE_URL (required), MIGRATION_PATH, COMMS_URL, REDIS_ADDR, CATALOG_FILE, HTTP_PORT. See README.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}
	arg := func(i int) string {
		if len(args) > i {
			return args[i]
		}
		return ""
	}

	switch cmd {
	case "migrate":
		if len(args) < 2 {
			log.Fatalf("valuestore migrate: require subcommand (up, down, status)")
		}
		sub := args[1]
		switch sub {
		case "up":
			if err := runMigrateUp(); err != nil {
				log.Fatalf("valuestore migrate up: %v", err)
			}
		case "status":
			if err := runMigrateStatus(); err != nil {
				log.Fatalf("valuestore migrate status: %v", err)
			}
		case "down":
			if err := runMigrateDown(); err != nil {
				log.Fatalf("valuestore migrate down: %v", err)
			}
		default:
			log.Fatalf("valuestore migrate: unknown subcommand %q (use up, down, status)", sub)
		}
		return
	case "clear":
		if err := runClear(arg(1)); err != nil {
			log.Fatalf("valuestore clear: %v", err)
		}
		return
	case "ensure-db":
		if err := runEnsureDB(arg(1)); err != nil {
			log.Fatalf("valuestore ensure-db: %v", err)
		}
		return
	case "catalog":
		if err := runCatalog(os.Stdout, arg(1)); err != nil {
			log.Fatalf("valuestore catalog: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		// serve (explicit or default)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("valuestore: %v", err)
	}
}

// withPool loads config and runs fn against a fresh pool.
func withPool(fn func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	server.SetupLogging(cfg.LogLevel)
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	return fn(ctx, cfg, pool)
}

func runMigrateUp() error {
	return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
		migrations, err := db.LoadMigrationFiles(cfg.MigrationPath)
		if err != nil {
			return fmt.Errorf("load migrations: %w", err)
		}
		if err := db.RunMigrations(ctx, pool, migrations); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		return nil
	})
}

func runMigrateStatus() error {
	return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
		states, err := db.MigrationStatus(ctx, pool, cfg.MigrationPath)
		if err != nil {
			return err
		}
		printMigrationStatus(os.Stdout, states)
		return nil
	})
}

func printMigrationStatus(w io.Writer, states []db.MigrationState) {
	if len(states) == 0 {
		fmt.Fprintln(w, "No migrations found.")
		return
	}
	pendingCount := 0
	for _, s := range states {
		mark := "applied"
		if !s.Applied {
			mark = "pending"
			pendingCount++
		}
		fmt.Fprintf(w, "  %-8s %s\n", mark, s.Name)
	}
	fmt.Fprintf(w, "%d applied, %d pending\n", len(states)-pendingCount, pendingCount)
}

func runMigrateDown() error {
	return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
		name, err := db.MigrationDown(ctx, pool, cfg.MigrationPath)
		if err != nil {
			return err
		}
		if name == "" {
			fmt.Println("Nothing to roll back.")
			return nil
		}
		fmt.Printf("Rolled back %s.\n", name)
		return nil
	})
}

func runClear(collection string) error {
	return withPool(func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
		n, err := db.ClearDocuments(ctx, pool, collection)
		if err != nil {
			return fmt.Errorf("clear documents: %w", err)
		}
		fmt.Printf("Deleted %d documents.\n", n)
		return nil
	})
}

func runEnsureDB(dbName string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	name, err := db.EnsureDatabase(context.Background(), cfg.DatabaseURL, dbName)
	if err != nil {
		return err
	}
	fmt.Printf("Database %q is ready.\n", name)
	return nil
}

// catalogDump is the YAML shape printed by the catalog command.
type catalogDump struct {
	Name    string                    `json:"name"`
	Version string                    `json:"version"`
	Types   []catalog.TypeDescription `json:"types"`
}

func runCatalog(w io.Writer, file string) error {
	m, err := catalog.LoadManifest(file)
	if err != nil {
		return err
	}
	lib := library.New()
	if err := lib.ApplyManifest(m); err != nil {
		return err
	}
	out, err := yaml.Marshal(catalogDump{Name: m.Name, Version: m.Version, Types: lib.Catalog().Describe()})
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	_, err = w.Write(out)
	return err
}
