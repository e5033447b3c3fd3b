package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/darianmavgo/tabbench/tabular"

	_ "modernc.org/sqlite"
)

func init() {
	RegisterStore("sqlite", func(ctx context.Context, dsn string) (Store, error) {
		return OpenSQLite(ctx, dsn)
	})
}

// SQLiteStore loads tables into a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	owns bool
}

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Limit to 1 connection to avoid locking issues and improve tx.Stmt performance
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA page_size = 65536; PRAGMA cache_size = -2000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set PRAGMAs: %w", err)
	}
	s := NewSQLiteStore(db)
	s.owns = true
	return s, nil
}

// NewSQLiteStore wraps an open database; Close leaves db open. db should be
// limited to one connection when it is an in-memory database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// DB returns the underlying database.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Close closes the database if the store opened it.
func (s *SQLiteStore) Close() error {
	if s.owns {
		return s.db.Close()
	}
	return nil
}

// Replace loads src into a staging table, committing every BatchSize rows,
// then swaps it for table in a single transaction. A failure drops the
// staging table and leaves table as it was.
func (s *SQLiteStore) Replace(ctx context.Context, table string, src tabular.RowSource, opts *Options) (int64, error) {
	staging := "_tabbench_staging_" + table
	schema := src.Schema()

	fail := func(op string, err error) (int64, error) {
		s.db.ExecContext(context.WithoutCancel(ctx), "DROP TABLE IF EXISTS "+QuoteIdent(staging))
		if errors.Is(err, tabular.ErrInput) {
			return 0, err
		}
		return 0, &IngestError{Table: table, Op: op, Err: err}
	}

	createSQL, err := SQLite.GenCreateTableSQL(staging, schema)
	if err != nil {
		return 0, &IngestError{Table: table, Op: "create table", Err: err}
	}
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+QuoteIdent(staging)); err != nil {
		return fail("drop staging table", err)
	}
	if opts.verbose() {
		log.Printf("[TABBENCH] Creating staging table %s with columns %v", staging, schema.Names())
	}
	if _, err := s.db.ExecContext(ctx, createSQL); err != nil {
		return fail("create table", err)
	}

	n, err := s.insertRows(ctx, staging, src, opts)
	if err != nil {
		return fail("insert", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fail("begin swap", err)
	}
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+QuoteIdent(table)); err != nil {
		tx.Rollback()
		return fail("drop table", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", QuoteIdent(staging), QuoteIdent(table))); err != nil {
		tx.Rollback()
		return fail("rename staging table", err)
	}
	if err := tx.Commit(); err != nil {
		return fail("commit swap", err)
	}

	if opts.verbose() {
		log.Printf("[TABBENCH] Replaced table %s with %d rows", table, n)
	}
	return n, nil
}

func (s *SQLiteStore) insertRows(ctx context.Context, table string, src tabular.RowSource, opts *Options) (int64, error) {
	insertSQL, err := SQLite.GenInsertStmt(table, src.Schema().Names())
	if err != nil {
		return 0, err
	}
	mainStmt, err := s.db.PrepareContext(ctx, insertSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer mainStmt.Close()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt := tx.StmtContext(ctx, mainStmt)

	batch := opts.batchSize()
	var rowCount int64
	err = src.ScanRows(ctx, func(row tabular.Row) error {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("row %d: %w", rowCount+1, err)
		}
		rowCount++

		if rowCount%int64(batch) == 0 {
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("failed to commit batch: %w", err)
			}
			if opts.verbose() {
				log.Printf("[TABBENCH] Committed batch of %d rows (total %d)", batch, rowCount)
			}
			tx, err = s.db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("failed to begin transaction: %w", err)
			}
			stmt = tx.StmtContext(ctx, mainStmt)
		}
		return nil
	})
	if err != nil {
		tx.Rollback()
		return rowCount, err
	}
	if err := tx.Commit(); err != nil {
		return rowCount, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return rowCount, nil
}
