// Package sqlengine registers the sql engine. The dataset is first
// snapshotted into a single parquet file, the snapshot is loaded into an
// in-memory SQLite database and every query of the workload runs as SQL.
package sqlengine

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/darianmavgo/tabbench/dataset"
	"github.com/darianmavgo/tabbench/engines"
	"github.com/darianmavgo/tabbench/formats"
	"github.com/darianmavgo/tabbench/ingest"
	"github.com/darianmavgo/tabbench/tabular"
)

// Table is the name the snapshot is loaded under.
const Table = "people"

func init() {
	engines.Register(&Engine{})
}

// Engine is the SQL variant. Its export is CSV.
type Engine struct{}

func (e *Engine) Name() string { return engines.SQL }

// SnapshotPath is where the parquet snapshot of a source type is written.
func SnapshotPath(outputDir string, source tabular.FileType) string {
	return filepath.Join(outputDir, fmt.Sprintf("snapshot_%s%s", source, tabular.Parquet.Ext()))
}

func (e *Engine) Run(ctx context.Context, in engines.Input) (*engines.Result, error) {
	timer := engines.NewTimer(e.Name(), in.Verbose)
	res := &engines.Result{Engine: e.Name(), Status: engines.StatusOK}

	snapshot := SnapshotPath(in.OutputDir, in.Location.FileType)
	err := timer.Phase(engines.PhaseSnapshot, func() error {
		s, err := dataset.Open(in.Location, &dataset.Options{Verbose: in.Verbose})
		if err != nil {
			return err
		}
		_, err = formats.WriteFile(ctx, snapshot, tabular.Parquet, s)
		return err
	})
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, &engines.ExecutionError{Engine: e.Name(), Phase: engines.PhaseLoad, Timings: timer.Timings(), Err: err}
	}
	defer db.Close()
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	err = timer.Phase(engines.PhaseLoad, func() error {
		src, err := formats.OpenFile(snapshot, tabular.Parquet)
		if err != nil {
			return err
		}
		_, err = ingest.NewSQLiteStore(db).Replace(ctx, Table, src, &ingest.Options{BatchSize: in.BatchSize, Verbose: in.Verbose})
		if err != nil {
			// an engine fault, not an ingest command failure
			return fmt.Errorf("load snapshot: %v", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = timer.Phase(engines.PhaseCount, func() error {
		return db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+ingest.QuoteIdent(Table)).Scan(&res.RowCount)
	})
	if err != nil {
		return nil, err
	}

	err = timer.Phase(engines.PhaseSchema, func() (err error) {
		res.Schema, err = describe(ctx, db)
		return err
	})
	if err != nil {
		return nil, err
	}
	if _, err := engines.RequiredColumns(res.Schema, engines.AggregatePlan, engines.ExportPlan); err != nil {
		return nil, err
	}
	if ageType := res.Schema[res.Schema.Index(engines.AgeColumn)].Type; !ageType.Numeric() {
		if err := checkNumericAges(ctx, db); err != nil {
			return nil, err
		}
	}

	err = timer.Phase(engines.PhaseAggregate, func() (err error) {
		res.Top, err = aggregate(ctx, db)
		return err
	})
	if err != nil {
		return nil, err
	}

	res.ExportedFile = engines.ExportPath(in.OutputDir, e.Name(), in.Location.FileType, tabular.CSV)
	err = timer.Phase(engines.PhaseExport, func() (err error) {
		res.ExportedRows, err = export(ctx, db, res.ExportedFile)
		return err
	})
	if err != nil {
		return nil, err
	}

	res.Timings = timer.Timings()
	return res, nil
}

func describe(ctx context.Context, db *sql.DB) (tabular.Schema, error) {
	rows, err := db.QueryContext(ctx, "SELECT name, type FROM pragma_table_info(?) ORDER BY cid", Table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var schema tabular.Schema
	for rows.Next() {
		var name, decl string
		if err := rows.Scan(&name, &decl); err != nil {
			return nil, err
		}
		schema = append(schema, tabular.Column{Name: name, Type: ingest.ParseSQLType(decl)})
	}
	return schema, rows.Err()
}

// checkNumericAges rejects text ages that do not parse as numbers, which
// SQLite would otherwise silently read as zero.
func checkNumericAges(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, "SELECT age FROM "+ingest.QuoteIdent(Table)+" WHERE age IS NOT NULL")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var age string
		if err := rows.Scan(&age); err != nil {
			return err
		}
		if _, _, err := tabular.AsFloat(age); err != nil {
			return &tabular.InputError{Op: "aggregate", Err: fmt.Errorf("column %q: %w", engines.AgeColumn, err)}
		}
	}
	return rows.Err()
}

var aggregateSQL = fmt.Sprintf(`
SELECT name, AVG(CAST(age AS REAL)) AS avg_age, MAX(CAST(age AS REAL)) AS max_age, COUNT(*) AS count
FROM %s
GROUP BY name
HAVING avg_age > %d
ORDER BY avg_age DESC, name ASC
LIMIT %d`, ingest.QuoteIdent(Table), engines.AvgAgeThreshold, engines.TopLimit)

func aggregate(ctx context.Context, db *sql.DB) ([]engines.GroupStat, error) {
	rows, err := db.QueryContext(ctx, aggregateSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var top []engines.GroupStat
	for rows.Next() {
		var g engines.GroupStat
		var name sql.NullString
		if err := rows.Scan(&name, &g.AvgAge, &g.MaxAge, &g.Count); err != nil {
			return nil, err
		}
		g.Name, g.NullName = name.String, !name.Valid
		top = append(top, g)
	}
	return top, rows.Err()
}

var exportSQL = fmt.Sprintf(`SELECT name, email, age FROM %s WHERE CAST(age AS REAL) >= %d`,
	ingest.QuoteIdent(Table), engines.ExportMinAge)

// export streams the query result into a CSV file.
func export(ctx context.Context, db *sql.DB, path string) (int64, error) {
	rows, err := db.QueryContext(ctx, exportSQL)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	cols, err := rows.ColumnTypes()
	if err != nil {
		return 0, err
	}
	schema := make(tabular.Schema, len(cols))
	for i, c := range cols {
		schema[i] = tabular.Column{Name: c.Name(), Type: ingest.ParseSQLType(c.DatabaseTypeName())}
	}

	fw, err := formats.CreateFile(path, tabular.CSV, schema)
	if err != nil {
		return 0, err
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	row := make(tabular.Row, len(cols))
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			fw.Abort()
			return 0, err
		}
		for i, v := range vals {
			row[i] = normalize(v)
		}
		if err := fw.WriteRow(row); err != nil {
			fw.Abort()
			return 0, err
		}
	}
	if err := rows.Err(); err != nil {
		fw.Abort()
		return 0, err
	}
	if err := fw.Close(); err != nil {
		return 0, err
	}
	return fw.Rows(), nil
}

func normalize(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}
