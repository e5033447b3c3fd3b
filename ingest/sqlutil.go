package ingest

import (
	"fmt"
	"strings"

	"github.com/darianmavgo/tabbench/tabular"
)

// Dialect holds what differs between the SQL stores.
type Dialect struct {
	Quote       func(string) string
	Placeholder func(i int) string // 1-based
	Types       map[tabular.DataType]string
}

// SQLite is the dialect of modernc.org/sqlite.
var SQLite = Dialect{
	Quote:       QuoteIdent,
	Placeholder: func(int) string { return "?" },
	Types: map[tabular.DataType]string{
		tabular.String:  "TEXT",
		tabular.Int64:   "INTEGER",
		tabular.Float64: "REAL",
	},
}

// Postgres is the dialect of the pgx store.
var Postgres = Dialect{
	Quote:       QuoteIdent,
	Placeholder: func(i int) string { return fmt.Sprintf("$%d", i) },
	Types: map[tabular.DataType]string{
		tabular.String:  "TEXT",
		tabular.Int64:   "BIGINT",
		tabular.Float64: "DOUBLE PRECISION",
	},
}

// QuoteIdent double-quotes an identifier, doubling embedded quotes. Both
// SQLite and Postgres accept this form.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// GenCreateTableSQL generates a CREATE TABLE statement for schema.
func (d Dialect) GenCreateTableSQL(table string, schema tabular.Schema) (string, error) {
	if table == "" || len(schema) == 0 {
		return "", fmt.Errorf("table name and columns are required")
	}
	var builder strings.Builder
	builder.Grow(len(table) + len(schema)*20)

	builder.WriteString("CREATE TABLE ")
	builder.WriteString(d.Quote(table))
	builder.WriteString(" (")
	for i, c := range schema {
		builder.WriteString(d.Quote(c.Name))
		builder.WriteByte(' ')
		builder.WriteString(d.Types[c.Type])
		if i < len(schema)-1 {
			builder.WriteString(", ")
		}
	}
	builder.WriteByte(')')
	return builder.String(), nil
}

// GenInsertStmt generates a prepared INSERT for the given columns.
func (d Dialect) GenInsertStmt(table string, columns []string) (string, error) {
	if table == "" || len(columns) == 0 {
		return "", fmt.Errorf("table name and fields are required")
	}
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.Quote(c)
		marks[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.Quote(table), strings.Join(quoted, ","), strings.Join(marks, ",")), nil
}

// ParseSQLType maps a declared column type back to a DataType using SQLite's
// affinity rules.
func ParseSQLType(decl string) tabular.DataType {
	t := strings.ToUpper(decl)
	switch {
	case strings.Contains(t, "INT"):
		return tabular.Int64
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return tabular.String
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return tabular.Float64
	default:
		return tabular.String
	}
}
