package sqlite

import (
	"context"

	"salesetl/internal/ddl"
	"salesetl/internal/storage"
)

// newRepository is replaced in tests to avoid touching disk.
var newRepository = NewRepository

type wrappedRepo struct {
	*Repository
	closeFn func()
}

var _ storage.Repository = (*wrappedRepo)(nil)

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("sqlite", func(ctx context.Context, repo storage.Repository, def ddl.TableDef) error {
		sql, err := ddl.BuildCreateTableSQL(def.Map(MapType), Dialect)
		if err != nil {
			return err
		}
		return repo.Exec(ctx, sql)
	})
}
