// Package tabular holds the data model shared by readers, engines, the
// converter and the ingestor: schemas, rows, materialized frames and the
// error kinds every command reports.
package tabular

import (
	"context"
	"fmt"
	"strings"
)

// FileType identifies an on-disk format.
type FileType string

const (
	CSV     FileType = "csv"
	JSON    FileType = "json"
	Parquet FileType = "parquet"
)

// ParseFileType matches s case-insensitively against the known formats.
func ParseFileType(s string) (FileType, error) {
	switch FileType(strings.ToLower(strings.TrimSpace(s))) {
	case CSV:
		return CSV, nil
	case JSON:
		return JSON, nil
	case Parquet:
		return Parquet, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, s)
}

// ParseSourceType is ParseFileType restricted to the formats the generator
// produces and the readers accept as a dataset (csv and json).
func ParseSourceType(s string) (FileType, error) {
	ft, err := ParseFileType(s)
	if err != nil {
		return "", err
	}
	if ft != CSV && ft != JSON {
		return "", fmt.Errorf("%w: %q (choose csv or json)", ErrUnsupportedFileType, s)
	}
	return ft, nil
}

// Ext returns the file extension including the dot.
func (ft FileType) Ext() string { return "." + string(ft) }

// DataType is the logical type of a column.
type DataType int

const (
	String DataType = iota
	Int64
	Float64
)

func (t DataType) String() string {
	switch t {
	case Int64:
		return "Int64"
	case Float64:
		return "Float64"
	default:
		return "String"
	}
}

// Numeric reports whether values of the type can be aggregated.
func (t DataType) Numeric() bool { return t == Int64 || t == Float64 }

// Column is one named, typed column.
type Column struct {
	Name string
	Type DataType
}

// Schema is an ordered list of columns in declaration order.
type Schema []Column

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column or -1.
func (s Schema) Index(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Equal compares names and types position by position.
func (s Schema) Equal(o Schema) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Project returns the sub-schema for the given names, in the order given.
func (s Schema) Project(names []string) (Schema, []int, error) {
	out := make(Schema, len(names))
	idx := make([]int, len(names))
	for i, n := range names {
		j := s.Index(n)
		if j < 0 {
			return nil, nil, &InputError{Op: "project", Err: fmt.Errorf("column %q not found in %v", n, s.Names())}
		}
		out[i] = s[j]
		idx[i] = j
	}
	return out, idx, nil
}

func (s Schema) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = fmt.Sprintf("%s: %s", c.Name, c.Type)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Row holds one record; values are string, int64, float64 or nil.
type Row []any

// RowSource is anything that can stream rows of a fixed schema.
// ScanRows calls yield for each row; if yield returns an error the scan stops
// and that error is returned. Rows passed to yield may be reused by the source
// after yield returns.
type RowSource interface {
	Schema() Schema
	ScanRows(ctx context.Context, yield func(Row) error) error
}

// RowWriter receives rows for a sink; Close flushes and finalizes it.
type RowWriter interface {
	WriteRow(Row) error
	Close() error
}

// Frame is a fully materialized table.
type Frame struct {
	Columns Schema
	Rows    []Row
}

var _ RowSource = (*Frame)(nil)

// NewFrame creates an empty frame of the given schema.
func NewFrame(schema Schema) *Frame {
	return &Frame{Columns: schema}
}

// Schema implements RowSource.
func (f *Frame) Schema() Schema { return f.Columns }

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.Rows) }

// Append copies row into the frame.
func (f *Frame) Append(row Row) {
	f.Rows = append(f.Rows, append(Row(nil), row...))
}

// ScanRows implements RowSource.
func (f *Frame) ScanRows(ctx context.Context, yield func(Row) error) error {
	for i, row := range f.Rows {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := yield(row); err != nil {
			return err
		}
	}
	return nil
}

// Collect drains a source into a new frame.
func Collect(ctx context.Context, src RowSource) (*Frame, error) {
	f := NewFrame(src.Schema())
	err := src.ScanRows(ctx, func(row Row) error {
		f.Append(row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}
