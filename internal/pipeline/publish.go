package pipeline

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"

	"salesetl/internal/dag"
	"salesetl/internal/ddl"
	"salesetl/internal/fsutil"
	"salesetl/internal/metrics"
	"salesetl/internal/storage"
	"salesetl/internal/table"
)

// openRepository is a test seam.
var openRepository = storage.New

// RevenueTable describes the destination table for the aggregate load.
func RevenueTable(fqn string) ddl.TableDef {
	return ddl.TableDef{FQN: fqn, Columns: []ddl.ColumnDef{
		{Name: "run_id", Type: ddl.TypeText, PrimaryKey: true},
		{Name: ColCategoryName, Type: ddl.TypeText, PrimaryKey: true},
		{Name: ColRevenue, Type: ddl.TypeFloat, Nullable: true},
		{Name: "loaded_at", Type: ddl.TypeTimestamp},
	}}
}

// publishRevenueByCategory copies the aggregate into the results directory
// so it outlives cleanup, then loads it into the configured database.
func (p *Pipeline) publishRevenueByCategory(ctx context.Context, in dag.Inputs) ([]string, error) {
	src := in.Path(AggregateRevenueByCategory)
	if err := requireDir(p.cfg.Dirs.Results); err != nil {
		return nil, err
	}
	dst := filepath.Join(p.cfg.Dirs.Results, RevenueByCategoryFile)
	if err := fsutil.Copy(src, dst); err != nil {
		return nil, &IOError{Op: "copy", Path: src, Err: err}
	}
	log.Printf("pipeline: published path=%s", dst)

	if p.cfg.Storage.Kind == "" {
		return []string{dst}, nil
	}
	t, err := p.read(ctx, dst)
	if err != nil {
		return nil, err
	}
	if err := p.load(ctx, dst, t); err != nil {
		return nil, err
	}
	return []string{dst}, nil
}

// load inserts one row per category tagged with the run id. Re-running a
// failed attempt with the same run id conflicts on the primary key, so a
// partial load surfaces as an error instead of duplicates.
func (p *Pipeline) load(ctx context.Context, path string, t *table.Table) error {
	sc := p.cfg.Storage
	def := RevenueTable(sc.DB.Table)

	rows, err := p.revenueRows(t)
	if err != nil {
		return schemaErr(path, err)
	}

	repo, err := openRepository(ctx, storage.Config{
		Kind:    sc.Kind,
		DSN:     sc.DB.DSN,
		Table:   sc.DB.Table,
		Columns: def.ColumnNames(),
	})
	if err != nil {
		return fmt.Errorf("open %s storage: %w", sc.Kind, err)
	}
	defer repo.Close()

	if sc.DB.AutoCreateTable {
		if err := storage.EnsureTable(ctx, sc.Kind, repo, def); err != nil {
			return fmt.Errorf("ensure table %s: %w", sc.DB.Table, err)
		}
	}

	loadCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	st, err := storage.LoadBatches(loadCtx, def.ColumnNames(), storage.SendRows(loadCtx, rows), sc.DB.BatchSize, repo.CopyFrom)
	metrics.RecordRows(p.cfg.Job, "inserted", st.Rows)
	metrics.RecordBatches(p.cfg.Job, st.Batches)
	if err != nil {
		return fmt.Errorf("load %s into %s: %w", path, sc.DB.Table, err)
	}
	log.Printf("pipeline: loaded kind=%s table=%s rows=%d batches=%d run_id=%s",
		sc.Kind, sc.DB.Table, st.Rows, st.Batches, p.runID)
	return nil
}

func (p *Pipeline) revenueRows(t *table.Table) ([][]any, error) {
	if err := t.Require(ColCategoryName, ColRevenue); err != nil {
		return nil, err
	}
	names, _ := t.Column(ColCategoryName)
	revenue, _ := t.Column(ColRevenue)
	loadedAt := p.now().UTC()

	rows := make([][]any, 0, len(names))
	for i, name := range names {
		var v any
		if s := strings.TrimSpace(revenue[i]); s != "" {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, &table.ValueError{Column: ColRevenue, Row: i, Value: revenue[i]}
			}
			v = f
		}
		rows = append(rows, []any{p.runID, name, v, loadedAt})
	}
	return rows, nil
}
