package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"salesetl/internal/dag"
	"salesetl/internal/storage"
	_ "salesetl/internal/storage/sqlite"
)

type fakeRepo struct {
	mu      sync.Mutex
	columns []string
	rows    [][]any
	err     error
	closed  bool
}

func (f *fakeRepo) CopyFrom(_ context.Context, columns []string, rows [][]any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.columns = columns
	f.rows = append(f.rows, rows...)
	return int64(len(rows)), nil
}

func (f *fakeRepo) Exec(context.Context, string) error { return nil }

func (f *fakeRepo) Close() { f.closed = true }

func publishInput(t *testing.T, e env) dag.Inputs {
	t.Helper()
	src := filepath.Join(e.cfg.Dirs.Input, RevenueByCategoryFile)
	writeLines(t, src, "category_name,revenue", "Laptop,4000", "Watch,")
	return dag.Inputs{AggregateRevenueByCategory: {src}}
}

// Tests below swap openRepository and must not run in parallel.

func TestPublishCopiesWithoutStorage(t *testing.T) {
	e := newEnv(t)
	called := false
	orig := openRepository
	openRepository = func(context.Context, storage.Config) (storage.Repository, error) {
		called = true
		return nil, errors.New("unexpected")
	}
	t.Cleanup(func() { openRepository = orig })

	out, err := New(e.cfg, "").publishRevenueByCategory(context.Background(), publishInput(t, e))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if want := filepath.Join(e.cfg.Dirs.Results, RevenueByCategoryFile); !reflect.DeepEqual(out, []string{want}) {
		t.Fatalf("outputs = %v", out)
	}
	if got := readTable(t, out[0]); got.Len() != 2 {
		t.Fatalf("published rows = %d", got.Len())
	}
	if called {
		t.Fatal("storage opened without storage.kind")
	}
}

func TestPublishLoadsRows(t *testing.T) {
	e := newEnv(t)
	e.cfg.Storage.Kind = "fake"
	e.cfg.Storage.DB.Table = "revenue_by_category"
	e.cfg.Storage.DB.BatchSize = 1

	repo := &fakeRepo{}
	var gotCfg storage.Config
	orig := openRepository
	openRepository = func(_ context.Context, cfg storage.Config) (storage.Repository, error) {
		gotCfg = cfg
		return repo, nil
	}
	t.Cleanup(func() { openRepository = orig })

	p := New(e.cfg, "run-7")
	loaded := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return loaded }

	if _, err := p.publishRevenueByCategory(context.Background(), publishInput(t, e)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if gotCfg.Kind != "fake" || gotCfg.Table != "revenue_by_category" {
		t.Fatalf("storage config = %+v", gotCfg)
	}
	want := [][]any{
		{"run-7", "Laptop", 4000.0, loaded},
		{"run-7", "Watch", nil, loaded},
	}
	if !reflect.DeepEqual(repo.rows, want) {
		t.Fatalf("rows = %v, want %v", repo.rows, want)
	}
	if !reflect.DeepEqual(repo.columns, []string{"run_id", "category_name", "revenue", "loaded_at"}) {
		t.Fatalf("columns = %v", repo.columns)
	}
	if !repo.closed {
		t.Fatal("repository not closed")
	}
}

func TestPublishLoadError(t *testing.T) {
	e := newEnv(t)
	e.cfg.Storage.Kind = "fake"
	e.cfg.Storage.DB.Table = "revenue_by_category"
	e.cfg.Storage.DB.BatchSize = 10

	boom := errors.New("connection reset")
	orig := openRepository
	openRepository = func(context.Context, storage.Config) (storage.Repository, error) {
		return &fakeRepo{err: boom}, nil
	}
	t.Cleanup(func() { openRepository = orig })

	_, err := New(e.cfg, "").publishRevenueByCategory(context.Background(), publishInput(t, e))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if !IsRetriable(err) {
		t.Fatal("load failure should be retriable")
	}
}

func TestRunLoadsSQLite(t *testing.T) {
	e := newEnv(t)
	dsn := filepath.Join(t.TempDir(), "salesetl.db")
	e.cfg.Storage.Kind = "sqlite"
	e.cfg.Storage.DB.DSN = dsn
	e.cfg.Storage.DB.Table = "revenue_by_category"
	e.cfg.Storage.DB.AutoCreateTable = true
	e.cfg.Storage.DB.BatchSize = 2

	if _, err := New(e.cfg, "run-sqlite").Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var n int
	var total float64
	row := db.QueryRow(`SELECT COUNT(*), TOTAL(revenue) FROM revenue_by_category WHERE run_id = ?`, "run-sqlite")
	if err := row.Scan(&n, &total); err != nil {
		t.Fatal(err)
	}
	if n != 3 || total != 9900 {
		t.Fatalf("count=%d total=%v, want 3 and 9900", n, total)
	}
}
