package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sigs.k8s.io/yaml"

	"github.com/morezero/valuestore/pkg/db"
)

const mainTestPrefix = "cmd/valuestore:main_test"

func TestUsage_ContainsCommands(t *testing.T) {
	required := []string{"serve", "migrate", "ensure-db", "clear", "catalog", "DATABASE_URL"}
	for _, word := range required {
		if !strings.Contains(usage, word) {
			t.Errorf("%s - usage should contain %q", mainTestPrefix, word)
		}
	}
}

func TestRunCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	manifest := `name: shapes
version: 1.0.0
types:
  com.example.Shape:
    kind: interface
  com.example.Circle:
    supertypes: [com.example.Shape]
aliases:
  com.example.Round: com.example.Circle
`
	if err := os.WriteFile(path, []byte(manifest), 0o600); err != nil {
		t.Fatalf("%s - write manifest: %v", mainTestPrefix, err)
	}

	var buf bytes.Buffer
	if err := runCatalog(&buf, path); err != nil {
		t.Fatalf("%s - runCatalog: %v", mainTestPrefix, err)
	}

	var dump catalogDump
	if err := yaml.Unmarshal(buf.Bytes(), &dump); err != nil {
		t.Fatalf("%s - output is not YAML: %v\n%s", mainTestPrefix, err, buf.String())
	}
	if dump.Name != "shapes" || dump.Version != "1.0.0" {
		t.Errorf("%s - name/version = %s/%s", mainTestPrefix, dump.Name, dump.Version)
	}

	var circle bool
	for _, d := range dump.Types {
		if d.Name == "com.example.Circle" {
			circle = true
			if len(d.Supertypes) != 1 || d.Supertypes[0] != "com.example.Shape" {
				t.Errorf("%s - Circle supertypes = %v", mainTestPrefix, d.Supertypes)
			}
			if len(d.Aliases) != 1 || d.Aliases[0] != "com.example.Round" {
				t.Errorf("%s - Circle aliases = %v", mainTestPrefix, d.Aliases)
			}
		}
	}
	if !circle {
		t.Errorf("%s - Circle missing from output:\n%s", mainTestPrefix, buf.String())
	}
}

func TestRunCatalog_UnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("name: x\nversion: 3.1.0\ntypes: {}\n"), 0o600); err != nil {
		t.Fatalf("%s - write manifest: %v", mainTestPrefix, err)
	}
	var buf bytes.Buffer
	if err := runCatalog(&buf, path); err == nil {
		t.Errorf("%s - expected error for manifest version 3.1.0", mainTestPrefix)
	}
}

func TestPrintMigrationStatus(t *testing.T) {
	var buf bytes.Buffer
	printMigrationStatus(&buf, []db.MigrationState{
		{Name: "001_documents", Applied: true},
		{Name: "002_index", Applied: false},
	})
	out := buf.String()
	for _, want := range []string{"applied  001_documents", "pending  002_index", "1 applied, 1 pending"} {
		if !strings.Contains(out, want) {
			t.Errorf("%s - status output missing %q:\n%s", mainTestPrefix, want, out)
		}
	}

	buf.Reset()
	printMigrationStatus(&buf, nil)
	if !strings.Contains(buf.String(), "No migrations found") {
		t.Errorf("%s - empty status = %q", mainTestPrefix, buf.String())
	}
}
