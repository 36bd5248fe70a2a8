package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gabrielekerete60/bms/internal/logger"
	"github.com/gabrielekerete60/bms/internal/store"
)

//go:embed schema.sql
var schema string

// Store keeps every collection in one documents table. Transactions run at
// SERIALIZABLE and lock the rows they read.
type Store struct {
	pool        *pgxpool.Pool
	builder     squirrel.StatementBuilderType
	maxAttempts int
}

func New(ctx context.Context, databaseURL string, maxAttempts int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 30
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}

	if maxAttempts <= 0 {
		maxAttempts = store.DefaultMaxAttempts
	}
	return &Store{
		pool:        pool,
		builder:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		maxAttempts: maxAttempts,
	}, nil
}

// Migrate creates the documents table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

var _ store.Store = (*Store)(nil)

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return store.Retry(ctx, "postgres", s.maxAttempts, func(ctx context.Context) error {
		return classify(s.attempt(ctx, fn))
	})
}

func (s *Store) attempt(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(ctx, store.NewTx(&pgDocs{tx: tx, builder: s.builder})); err != nil {
		if rbErr := tx.Rollback(context.Background()); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			logger.Error(ctx, "rollback failed", "error", rbErr, "original_error", err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// classify turns serialization failures and deadlocks into store.ErrConflict.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.Message)
		}
	}
	return err
}

type pgDocs struct {
	tx      pgx.Tx
	builder squirrel.StatementBuilderType
}

type documentRow struct {
	ID   string `db:"id"`
	Data []byte `db:"data"`
}

func (d *pgDocs) Get(ctx context.Context, collection string, id string) ([]byte, error) {
	query, args, err := d.builder.
		Select("id", "data").
		From("documents").
		Where(squirrel.Eq{"collection": collection, "id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, err
	}

	var row documentRow
	if err := pgxscan.Get(ctx, d.tx, &row, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return row.Data, nil
}

func (d *pgDocs) Put(ctx context.Context, collection string, id string, data []byte) error {
	query, args, err := d.builder.
		Insert("documents").
		Columns("collection", "id", "data").
		Values(collection, id, string(data)).
		Suffix("ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, version = documents.version + 1, updated_at = now()").
		ToSql()
	if err != nil {
		return err
	}
	_, err = d.tx.Exec(ctx, query, args...)
	return err
}

func (d *pgDocs) Delete(ctx context.Context, collection string, id string) error {
	query, args, err := d.builder.
		Delete("documents").
		Where(squirrel.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = d.tx.Exec(ctx, query, args...)
	return err
}

func (d *pgDocs) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Document, error) {
	q := d.builder.
		Select("id", "data").
		From("documents").
		Where(squirrel.Eq{"collection": collection}).
		OrderBy("id")
	for _, f := range filters {
		value, err := jsonValue(f.Value)
		if err != nil {
			return nil, err
		}
		q = q.Where(squirrel.Expr("data -> ? = ?::jsonb", f.Field, value))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	var rows []documentRow
	if err := pgxscan.Select(ctx, d.tx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]store.Document, 0, len(rows))
	for _, row := range rows {
		out = append(out, store.Document{ID: row.ID, Data: row.Data})
	}
	return out, nil
}

func jsonValue(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
