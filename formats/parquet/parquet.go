// Package parquet registers the parquet format driver. Schemas are flat: every
// column is an optional leaf (BYTE_ARRAY string, INT64 or DOUBLE). Parquet
// groups order their fields by name, so the declaration order is kept in the
// file's key/value metadata and restored on read.
package parquet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/darianmavgo/tabbench/formats"
	"github.com/darianmavgo/tabbench/tabular"
	"github.com/parquet-go/parquet-go"
)

// ColumnsMetadataKey holds the JSON list of column names in declaration order.
const ColumnsMetadataKey = "tabbench.columns"

const readBatch = 1024

// RowGroupRows is the number of rows buffered before a row group is flushed
// to the destination.
const RowGroupRows = 16384

func init() {
	formats.Register(tabular.Parquet, &parquetDriver{})
}

type parquetDriver struct{}

func (d *parquetDriver) Open(source io.Reader, config *formats.Config) (formats.RowProvider, error) {
	path := ""
	if config != nil {
		path = config.Path
	}
	return NewReader(source, path)
}

func (d *parquetDriver) NewWriter(dest io.Writer, schema tabular.Schema) (tabular.RowWriter, error) {
	return NewWriter(dest, schema)
}

func leafNode(t tabular.DataType) parquet.Node {
	switch t {
	case tabular.Int64:
		return parquet.Int(64)
	case tabular.Float64:
		return parquet.Leaf(parquet.DoubleType)
	default:
		return parquet.String()
	}
}

// Writer appends rows to a parquet file. Every RowGroupRows rows the
// buffered row group is flushed, so memory stays bounded by one row group.
type Writer struct {
	pw       *parquet.Writer
	colIndex []int // declaration position -> parquet leaf index
	row      parquet.Row
	pending  int // rows in the current row group
	groupMax int
}

// NewWriter builds the parquet schema for schema and returns the row writer.
func NewWriter(dest io.Writer, schema tabular.Schema) (*Writer, error) {
	group := parquet.Group{}
	for _, c := range schema {
		if _, dup := group[c.Name]; dup {
			return nil, fmt.Errorf("parquet: duplicate column %q", c.Name)
		}
		group[c.Name] = parquet.Optional(leafNode(c.Type))
	}
	pschema := parquet.NewSchema("tabbench", group)

	leaf := make(map[string]int, len(schema))
	for i, f := range pschema.Fields() {
		leaf[f.Name()] = i
	}
	colIndex := make([]int, len(schema))
	for i, c := range schema {
		colIndex[i] = leaf[c.Name]
	}

	names, err := json.Marshal(schema.Names())
	if err != nil {
		return nil, fmt.Errorf("parquet: encode column order: %w", err)
	}
	pw := parquet.NewWriter(dest, pschema, parquet.KeyValueMetadata(ColumnsMetadataKey, string(names)))
	return &Writer{pw: pw, colIndex: colIndex, row: make(parquet.Row, len(schema)), groupMax: RowGroupRows}, nil
}

// WriteRow implements tabular.RowWriter.
func (w *Writer) WriteRow(row tabular.Row) error {
	for i, leaf := range w.colIndex {
		var v any
		if i < len(row) {
			v = row[i]
		}
		if v == nil {
			w.row[leaf] = parquet.NullValue().Level(0, 0, leaf)
			continue
		}
		w.row[leaf] = parquet.ValueOf(v).Level(0, 1, leaf)
	}
	if _, err := w.pw.WriteRows([]parquet.Row{w.row}); err != nil {
		return fmt.Errorf("parquet: write row: %w", err)
	}
	w.pending++
	if w.pending >= w.groupMax {
		w.pending = 0
		if err := w.pw.Flush(); err != nil {
			return fmt.Errorf("parquet: flush row group: %w", err)
		}
	}
	return nil
}

// Close implements tabular.RowWriter.
func (w *Writer) Close() error {
	return w.pw.Close()
}

// Reader streams rows out of a parquet file, row group by row group.
type Reader struct {
	file   *parquet.File
	schema tabular.Schema
	order  []int // parquet leaf index -> declaration position
	path   string
}

// Ensure Reader implements RowProvider
var _ formats.RowProvider = (*Reader)(nil)

// NewReader opens the parquet footer of source. Sources that are not an
// *os.File are read fully into memory because parquet needs random access.
func NewReader(source io.Reader, path string) (*Reader, error) {
	var (
		ra   io.ReaderAt
		size int64
	)
	if f, ok := source.(*os.File); ok {
		st, err := f.Stat()
		if err != nil {
			return nil, &tabular.InputError{Path: path, Op: "stat parquet", Err: err}
		}
		ra, size = f, st.Size()
	} else {
		data, err := io.ReadAll(source)
		if err != nil {
			return nil, &tabular.InputError{Path: path, Op: "read parquet", Err: err}
		}
		ra, size = bytes.NewReader(data), int64(len(data))
	}

	pf, err := parquet.OpenFile(ra, size)
	if err != nil {
		return nil, &tabular.InputError{Path: path, Op: "open parquet", Err: err}
	}

	fields := pf.Schema().Fields()
	byName := make(map[string]int, len(fields))
	types := make([]tabular.DataType, len(fields))
	for i, f := range fields {
		if !f.Leaf() {
			return nil, tabular.NewInputError(path, "open parquet", "nested column %q is not supported", f.Name())
		}
		byName[f.Name()] = i
		types[i] = dataTypeOf(f.Type().Kind())
	}

	names := make([]string, 0, len(fields))
	if raw, ok := pf.Lookup(ColumnsMetadataKey); ok {
		var declared []string
		if err := json.Unmarshal([]byte(raw), &declared); err == nil && len(declared) == len(fields) {
			names = declared
		}
	}
	if len(names) == 0 {
		for _, f := range fields {
			names = append(names, f.Name())
		}
	}

	r := &Reader{file: pf, path: path, order: make([]int, len(fields))}
	r.schema = make(tabular.Schema, len(names))
	for pos, name := range names {
		leaf, ok := byName[name]
		if !ok {
			return nil, tabular.NewInputError(path, "open parquet", "column order metadata names unknown column %q", name)
		}
		r.schema[pos] = tabular.Column{Name: name, Type: types[leaf]}
		r.order[leaf] = pos
	}
	return r, nil
}

func dataTypeOf(k parquet.Kind) tabular.DataType {
	switch k {
	case parquet.Int32, parquet.Int64:
		return tabular.Int64
	case parquet.Float, parquet.Double:
		return tabular.Float64
	default:
		return tabular.String
	}
}

func goValue(v parquet.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.Boolean:
		return strconv.FormatBool(v.Boolean())
	default:
		return string(v.ByteArray())
	}
}

// Schema implements RowProvider
func (r *Reader) Schema() tabular.Schema {
	return r.schema
}

// NumRows returns the row count recorded in the footer.
func (r *Reader) NumRows() int64 {
	return r.file.NumRows()
}

// ScanRows implements RowProvider. The yielded row is reused between calls.
func (r *Reader) ScanRows(ctx context.Context, yield func(tabular.Row) error) error {
	out := make(tabular.Row, len(r.schema))
	buf := make([]parquet.Row, readBatch)

	for _, rg := range r.file.RowGroups() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.scanGroup(rg, buf, out, yield); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) scanGroup(rg parquet.RowGroup, buf []parquet.Row, out tabular.Row, yield func(tabular.Row) error) error {
	rows := rg.Rows()
	defer rows.Close()
	for {
		n, err := rows.ReadRows(buf)
		for _, prow := range buf[:n] {
			for i := range out {
				out[i] = nil
			}
			for _, v := range prow {
				col := v.Column()
				if col < 0 || col >= len(r.order) {
					continue
				}
				out[r.order[col]] = goValue(v)
			}
			if yerr := yield(out); yerr != nil {
				return yerr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &tabular.InputError{Path: r.path, Op: "read parquet rows", Err: err}
		}
		if n == 0 {
			return nil
		}
	}
}
