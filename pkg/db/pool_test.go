package db

import (
	"context"
	"testing"
)

const poolTestPrefix = "db:pool_test"

func TestPoolConfig_Defaults(t *testing.T) {
	cfg, err := poolConfig("postgres://u:p@localhost:5432/valuestore?sslmode=disable")
	if err != nil {
		t.Fatalf("%s - poolConfig: %v", poolTestPrefix, err)
	}
	if cfg.MaxConns != 20 || cfg.MinConns != 2 {
		t.Errorf("%s - conns = %d/%d, want 20/2", poolTestPrefix, cfg.MaxConns, cfg.MinConns)
	}
	if got := cfg.ConnConfig.RuntimeParams["application_name"]; got != "valuestore" {
		t.Errorf("%s - application_name = %q", poolTestPrefix, got)
	}
	if cfg.ConnConfig.Database != "valuestore" {
		t.Errorf("%s - database = %q", poolTestPrefix, cfg.ConnConfig.Database)
	}
}

func TestPoolConfig_Options(t *testing.T) {
	cfg, err := poolConfig("postgres://localhost/valuestore",
		WithMaxConns(4, 1), WithApplicationName("valuestore-migrate"))
	if err != nil {
		t.Fatalf("%s - poolConfig: %v", poolTestPrefix, err)
	}
	if cfg.MaxConns != 4 || cfg.MinConns != 1 {
		t.Errorf("%s - conns = %d/%d, want 4/1", poolTestPrefix, cfg.MaxConns, cfg.MinConns)
	}
	if got := cfg.ConnConfig.RuntimeParams["application_name"]; got != "valuestore-migrate" {
		t.Errorf("%s - application_name = %q", poolTestPrefix, got)
	}
}

func TestNewPool_InvalidURL(t *testing.T) {
	pool, err := NewPool(context.Background(), "invalid://not-a-valid-database-url")
	if err == nil {
		pool.Close()
		t.Fatalf("%s - expected error for invalid URL", poolTestPrefix)
	}
}
