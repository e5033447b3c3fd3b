package csv

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/darianmavgo/tabbench/formats"
	"github.com/darianmavgo/tabbench/tabular"
)

func init() {
	formats.Register(tabular.CSV, &csvDriver{})
}

type csvDriver struct{}

func (d *csvDriver) Open(source io.Reader, config *formats.Config) (formats.RowProvider, error) {
	return NewReaderWithConfig(source, config)
}

func (d *csvDriver) NewWriter(dest io.Writer, schema tabular.Schema) (tabular.RowWriter, error) {
	return NewWriter(dest, schema)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Reader streams typed rows out of delimited text with a header line.
type Reader struct {
	schema       tabular.Schema
	bufferedRows [][]string
	csvReader    *csv.Reader
	path         string
	line         int
}

// Ensure Reader implements RowProvider
var _ formats.RowProvider = (*Reader)(nil)

// NewReader creates a Reader from an io.Reader with default options.
func NewReader(r io.Reader) (*Reader, error) {
	return NewReaderWithConfig(r, nil)
}

// NewReaderWithConfig reads the header and the inference sample from r.
func NewReaderWithConfig(r io.Reader, config *formats.Config) (*Reader, error) {
	if config == nil {
		config = &formats.Config{}
	}

	br := bufio.NewReaderSize(r, 65536)
	if peek, _ := br.Peek(len(utf8BOM)); bytes.Equal(peek, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	delimiter := config.Delimiter
	if delimiter == 0 {
		peekBytes, _ := br.Peek(2048)
		sample := string(peekBytes)
		if idx := strings.IndexAny(sample, "\r\n"); idx != -1 {
			sample = sample[:idx]
		}
		delimiter = DetectDelimiter(sample)
	}

	reader := csv.NewReader(br)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1 // checked against the header ourselves
	reader.ReuseRecord = false

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, tabular.NewInputError(config.Path, "read csv", "file is empty")
		}
		return nil, &tabular.InputError{Path: config.Path, Op: "read csv header", Err: err}
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
		if headers[i] == "" {
			headers[i] = fmt.Sprintf("column_%d", i+1)
		}
	}

	c := &Reader{csvReader: reader, path: config.Path, line: 1}

	// Buffer the inference sample; these rows are replayed first by ScanRows.
	for len(c.bufferedRows) < tabular.InferSampleSize {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &tabular.InputError{Path: config.Path, Op: "read csv row", Err: err}
		}
		c.bufferedRows = append(c.bufferedRows, row)
	}

	types := tabular.InferColumnTypes(c.bufferedRows, len(headers))
	c.schema = make(tabular.Schema, len(headers))
	for i, h := range headers {
		c.schema[i] = tabular.Column{Name: h, Type: types[i]}
	}
	return c, nil
}

// Schema implements RowProvider
func (c *Reader) Schema() tabular.Schema {
	return c.schema
}

func (c *Reader) convert(raw []string, out tabular.Row) error {
	c.line++
	if len(raw) > len(c.schema) {
		return tabular.NewInputError(c.path, "read csv", "line %d has %d fields, header has %d", c.line, len(raw), len(c.schema))
	}
	for i, col := range c.schema {
		if i >= len(raw) {
			out[i] = nil // short rows are padded with nulls
			continue
		}
		v, err := tabular.ParseValue(raw[i], col.Type)
		if err != nil {
			return tabular.NewInputError(c.path, "read csv", "line %d column %q: %v", c.line, col.Name, err)
		}
		out[i] = v
	}
	return nil
}

// ScanRows implements RowProvider. The yielded row is reused between calls.
func (c *Reader) ScanRows(ctx context.Context, yield func(tabular.Row) error) error {
	if c.csvReader == nil {
		return fmt.Errorf("CSV reader is not initialized")
	}
	out := make(tabular.Row, len(c.schema))

	for _, raw := range c.bufferedRows {
		if err := c.convert(raw, out); err != nil {
			return err
		}
		if err := yield(out); err != nil {
			return err
		}
	}
	c.bufferedRows = nil

	for n := 0; ; n++ {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		raw, err := c.csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &tabular.InputError{Path: c.path, Op: "read csv row", Err: err}
		}
		if err := c.convert(raw, out); err != nil {
			return err
		}
		if err := yield(out); err != nil {
			return err
		}
	}
	c.csvReader = nil
	return nil
}

// Writer encodes rows as comma separated text with a header line.
type Writer struct {
	w      *csv.Writer
	record []string
}

// NewWriter writes the header for schema and returns the row writer.
func NewWriter(dest io.Writer, schema tabular.Schema) (*Writer, error) {
	w := csv.NewWriter(dest)
	if err := w.Write(schema.Names()); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	return &Writer{w: w, record: make([]string, len(schema))}, nil
}

// WriteRow implements tabular.RowWriter.
func (w *Writer) WriteRow(row tabular.Row) error {
	for i := range w.record {
		if i < len(row) {
			w.record[i] = tabular.FormatValue(row[i])
		} else {
			w.record[i] = ""
		}
	}
	if err := w.w.Write(w.record); err != nil {
		return fmt.Errorf("failed to write CSV row: %w", err)
	}
	return nil
}

// Close implements tabular.RowWriter.
func (w *Writer) Close() error {
	w.w.Flush()
	return w.w.Error()
}
