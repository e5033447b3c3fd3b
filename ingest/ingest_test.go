package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/darianmavgo/tabbench/tabular"
)

var people = tabular.Schema{
	{Name: "name", Type: tabular.String},
	{Name: "email", Type: tabular.String},
	{Name: "age", Type: tabular.Int64},
}

func peopleFrame(n int, prefix string) *tabular.Frame {
	f := tabular.NewFrame(people)
	for i := 0; i < n; i++ {
		f.Append(tabular.Row{fmt.Sprintf("%s%d", prefix, i), fmt.Sprintf("%s%d@example.com", prefix, i), int64(18 + i%63)})
	}
	return f
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		engine  string
		dsn     string
		wantErr error
	}{
		{"SQLiteRelative", "sqlite:///data/example.db", "sqlite", "data/example.db", nil},
		{"SQLiteAbsolute", "sqlite:////tmp/x.db", "sqlite", "/tmp/x.db", nil},
		{"Postgres", "postgres://u@localhost/db", "postgres", "postgres://u@localhost/db", nil},
		{"PostgreSQL", "postgresql://u@localhost/db", "postgres", "postgresql://u@localhost/db", nil},
		{"Unknown", "mysql://localhost/db", "", "", tabular.ErrUnsupportedEngine},
		{"NoScheme", "data/example.db", "", "", tabular.ErrInput},
		{"NoPath", "sqlite:///", "", "", tabular.ErrInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTarget(tt.uri, "my_table")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.Engine != tt.engine || got.DSN != tt.dsn || got.Table != "my_table" {
				t.Errorf("got %+v", got)
			}
		})
	}
	if _, err := ParseTarget("sqlite:///x.db", ""); !errors.Is(err, tabular.ErrInput) {
		t.Errorf("empty table: expected input error, got %v", err)
	}
}

func TestGenSQL(t *testing.T) {
	create, err := SQLite.GenCreateTableSQL(`odd"table`, people)
	if err != nil {
		t.Fatal(err)
	}
	if want := `CREATE TABLE "odd""table" ("name" TEXT, "email" TEXT, "age" INTEGER)`; create != want {
		t.Errorf("create = %s\nwant %s", create, want)
	}
	insert, err := Postgres.GenInsertStmt("t", people.Names())
	if err != nil {
		t.Fatal(err)
	}
	if want := `INSERT INTO "t" ("name","email","age") VALUES ($1,$2,$3)`; insert != want {
		t.Errorf("insert = %s", insert)
	}
	if _, err := SQLite.GenCreateTableSQL("t", nil); err == nil {
		t.Error("expected error for empty schema")
	}
}

func TestParseSQLType(t *testing.T) {
	tests := map[string]tabular.DataType{
		"INTEGER": tabular.Int64, "BIGINT": tabular.Int64, "REAL": tabular.Float64,
		"DOUBLE PRECISION": tabular.Float64, "TEXT": tabular.String, "": tabular.String,
	}
	for decl, want := range tests {
		if got := ParseSQLType(decl); got != want {
			t.Errorf("ParseSQLType(%q) = %v, want %v", decl, got, want)
		}
	}
}

func countRows(t *testing.T, path, table string) (int64, string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var n int64
	var first string
	q := fmt.Sprintf("SELECT COUNT(*), COALESCE(MIN(name), '') FROM %s", QuoteIdent(table))
	if err := db.QueryRow(q).Scan(&n, &first); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	return n, first
}

func TestSQLiteReplace(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db", "example.db")
	target, err := ParseTarget("sqlite:///"+path, "my_table")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.IsAbs(path) && target.DSN != path {
		t.Fatalf("DSN = %s, want %s", target.DSN, path)
	}

	n, err := Ingest(ctx, peopleFrame(25, "a"), target, &Options{BatchSize: 7})
	if err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	if n != 25 {
		t.Errorf("first ingest wrote %d rows", n)
	}

	n, err = Ingest(ctx, peopleFrame(10, "b"), target, &Options{BatchSize: 7})
	if err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}
	if n != 10 {
		t.Errorf("second ingest wrote %d rows", n)
	}

	count, first := countRows(t, path, "my_table")
	if count != 10 || first != "b0" {
		t.Errorf("table holds %d rows starting %q, want 10 rows of the second load", count, first)
	}
}

// failingSource yields some rows and then fails.
type failingSource struct {
	rows int
	err  error
}

func (f failingSource) Schema() tabular.Schema { return people }

func (f failingSource) ScanRows(ctx context.Context, yield func(tabular.Row) error) error {
	for i := 0; i < f.rows; i++ {
		if err := yield(tabular.Row{"x", "x@example.com", int64(40)}); err != nil {
			return err
		}
	}
	return f.err
}

func TestSQLiteReplaceFailureKeepsOldTable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "example.db")
	target := Target{Engine: "sqlite", DSN: path, Table: "people"}

	if _, err := Ingest(ctx, peopleFrame(5, "a"), target, nil); err != nil {
		t.Fatal(err)
	}

	_, err := Ingest(ctx, failingSource{rows: 3, err: errors.New("disk on fire")}, target, &Options{BatchSize: 2})
	var ie *IngestError
	if !errors.As(err, &ie) || !errors.Is(err, tabular.ErrIngest) {
		t.Fatalf("expected IngestError, got %v", err)
	}

	_, err = Ingest(ctx, failingSource{err: tabular.NewInputError("f.csv", "read", "bad row")}, target, nil)
	if !errors.Is(err, tabular.ErrInput) || errors.Is(err, tabular.ErrIngest) {
		t.Errorf("expected a plain input error, got %v", err)
	}

	if count, first := countRows(t, path, "people"); count != 5 || first != "a0" {
		t.Errorf("old table changed: %d rows starting %q", count, first)
	}
}

func TestPostgresReplace(t *testing.T) {
	dsn := os.Getenv("TABBENCH_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TABBENCH_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	target, err := ParseTarget(dsn, "tabbench_ingest_test")
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range []int{12, 4} {
		got, err := Ingest(ctx, peopleFrame(n, "p"), target, &Options{BatchSize: 5})
		if err != nil {
			t.Fatalf("ingest of %d rows failed: %v", n, err)
		}
		if got != int64(n) {
			t.Errorf("copied %d rows, want %d", got, n)
		}
	}

	s, err := OpenPostgres(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	var count int64
	if err := s.conn.QueryRow(ctx, `SELECT COUNT(*) FROM "tabbench_ingest_test"`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 4 {
		t.Errorf("table holds %d rows, want 4", count)
	}
}
