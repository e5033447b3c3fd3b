package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/darianmavgo/tabbench/tabular"
	"github.com/jackc/pgx/v5"
)

func init() {
	RegisterStore("postgres", func(ctx context.Context, dsn string) (Store, error) {
		return OpenPostgres(ctx, dsn)
	})
}

// PostgresStore loads tables with COPY.
type PostgresStore struct {
	conn *pgx.Conn
}

// OpenPostgres connects with a postgres:// URL or keyword/value DSN.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return &PostgresStore{conn: conn}, nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	return s.conn.Close(context.Background())
}

// Replace drops and recreates table and copies src into it in chunks of
// BatchSize rows, all in one transaction.
func (s *PostgresStore) Replace(ctx context.Context, table string, src tabular.RowSource, opts *Options) (int64, error) {
	schema := src.Schema()
	createSQL, err := Postgres.GenCreateTableSQL(table, schema)
	if err != nil {
		return 0, &IngestError{Table: table, Op: "create table", Err: err}
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return 0, &IngestError{Table: table, Op: "begin", Err: err}
	}
	defer tx.Rollback(context.WithoutCancel(ctx)) // no-op after commit

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+pgx.Identifier{table}.Sanitize()); err != nil {
		return 0, &IngestError{Table: table, Op: "drop table", Err: err}
	}
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, &IngestError{Table: table, Op: "create table", Err: err}
	}

	batch := opts.batchSize()
	columns := schema.Names()
	buf := make([][]any, 0, batch)
	var total int64

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		n, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(buf))
		if err != nil {
			return fmt.Errorf("copy failed: %w", err)
		}
		total += n
		if opts.verbose() {
			log.Printf("[TABBENCH] Copied %d rows into %s (total %d)", n, table, total)
		}
		buf = buf[:0]
		return nil
	}

	err = src.ScanRows(ctx, func(row tabular.Row) error {
		buf = append(buf, append([]any(nil), row...))
		if len(buf) >= batch {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		if errors.Is(err, tabular.ErrInput) {
			return 0, err
		}
		return 0, &IngestError{Table: table, Op: "copy", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, &IngestError{Table: table, Op: "commit", Err: err}
	}
	return total, nil
}
