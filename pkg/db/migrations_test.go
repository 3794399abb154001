package db

import (
	"os"
	"path/filepath"
	"testing"
)

const migrationsTestPrefix = "db:migrations_test"

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("%s - write %s: %v", migrationsTestPrefix, name, err)
		}
	}
}

func TestLoadMigrationFiles_PairsDownFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"002_index.sql":          "CREATE INDEX i ON documents (runtime_type);",
		"001_documents.sql":      "CREATE TABLE documents ();",
		"001_documents.down.sql": "DROP TABLE documents;",
		"README.md":              "not a migration",
	})
	if err := os.Mkdir(filepath.Join(dir, "003_dir.sql"), 0o755); err != nil {
		t.Fatalf("%s - mkdir: %v", migrationsTestPrefix, err)
	}

	got, err := LoadMigrationFiles(dir)
	if err != nil {
		t.Fatalf("%s - LoadMigrationFiles: %v", migrationsTestPrefix, err)
	}
	if len(got) != 2 {
		t.Fatalf("%s - got %d migrations, want 2", migrationsTestPrefix, len(got))
	}
	if got[0].Name != "001_documents" || got[0].Down != "DROP TABLE documents;" {
		t.Errorf("%s - first = %+v", migrationsTestPrefix, got[0])
	}
	if got[1].Name != "002_index" || got[1].Down != "" {
		t.Errorf("%s - second = %+v", migrationsTestPrefix, got[1])
	}
}

func TestLoadMigrationFiles_OrphanDown(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"004_gone.down.sql": "DROP TABLE x;"})
	if _, err := LoadMigrationFiles(dir); err == nil {
		t.Fatalf("%s - expected error for down file without up file", migrationsTestPrefix)
	}
}

func TestLoadMigrationFiles_EmptyAndMissingDir(t *testing.T) {
	got, err := LoadMigrationFiles(t.TempDir())
	if err != nil || len(got) != 0 {
		t.Errorf("%s - empty dir = %v, %v", migrationsTestPrefix, got, err)
	}
	if _, err := LoadMigrationFiles(filepath.Join(t.TempDir(), "nonexistent")); err == nil {
		t.Errorf("%s - expected error for missing dir", migrationsTestPrefix)
	}
}

func TestLoadMigrationFiles_RepositoryMigrations(t *testing.T) {
	got, err := LoadMigrationFiles(filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatalf("%s - LoadMigrationFiles: %v", migrationsTestPrefix, err)
	}
	for _, m := range got {
		if m.Down == "" {
			t.Errorf("%s - %s has no down step", migrationsTestPrefix, m.Name)
		}
	}
}

func TestPendingAndLastApplied(t *testing.T) {
	all := []Migration{{Name: "001_a"}, {Name: "002_b"}, {Name: "003_c"}}

	todo := pending(all, map[string]bool{"001_a": true, "003_c": true})
	if len(todo) != 1 || todo[0].Name != "002_b" {
		t.Errorf("%s - pending = %+v", migrationsTestPrefix, todo)
	}
	if got := pending(all, nil); len(got) != 3 {
		t.Errorf("%s - pending with nothing applied = %d, want 3", migrationsTestPrefix, len(got))
	}

	last, ok := lastApplied(all, map[string]bool{"001_a": true, "002_b": true})
	if !ok || last.Name != "002_b" {
		t.Errorf("%s - lastApplied = %+v, %v", migrationsTestPrefix, last, ok)
	}
	if _, ok := lastApplied(all, map[string]bool{"999_unknown": true}); ok {
		t.Errorf("%s - lastApplied should ignore rows with no file", migrationsTestPrefix)
	}
}
