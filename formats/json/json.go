package json

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/darianmavgo/tabbench/formats"
	"github.com/darianmavgo/tabbench/tabular"
)

func init() {
	formats.Register(tabular.JSON, &jsonDriver{})
}

type jsonDriver struct{}

func (d *jsonDriver) Open(source io.Reader, config *formats.Config) (formats.RowProvider, error) {
	return NewReaderWithConfig(source, config)
}

func (d *jsonDriver) NewWriter(dest io.Writer, schema tabular.Schema) (tabular.RowWriter, error) {
	return NewWriter(dest, schema), nil
}

// Reader streams record-oriented JSON: either an array of objects (what
// polars write_json produces) or newline delimited objects.
type Reader struct {
	decoder  *json.Decoder
	isArray  bool
	schema   tabular.Schema
	index    map[string]int
	buffered [][]any
	path     string
	record   int
}

// Ensure Reader implements RowProvider
var _ formats.RowProvider = (*Reader)(nil)

// NewReader creates a Reader from an io.Reader with default options.
func NewReader(r io.Reader) (*Reader, error) {
	return NewReaderWithConfig(r, nil)
}

// NewReaderWithConfig peeks the root token, reads the inference sample and
// derives the schema from the key order of the first object.
func NewReaderWithConfig(r io.Reader, config *formats.Config) (*Reader, error) {
	if config == nil {
		config = &formats.Config{}
	}

	br := bufio.NewReaderSize(r, 65536)
	first, err := peekNonSpace(br)
	if err != nil {
		if err == io.EOF {
			return nil, tabular.NewInputError(config.Path, "read json", "file is empty")
		}
		return nil, &tabular.InputError{Path: config.Path, Op: "read json", Err: err}
	}

	dec := json.NewDecoder(br)
	dec.UseNumber()

	c := &Reader{decoder: dec, path: config.Path, index: map[string]int{}}

	switch first {
	case '[':
		if _, err := dec.Token(); err != nil {
			return nil, &tabular.InputError{Path: config.Path, Op: "read json start", Err: err}
		}
		c.isArray = true
	case '{':
		// newline delimited objects
	default:
		return nil, tabular.NewInputError(config.Path, "read json", "expected JSON array or object at root, got %q", first)
	}

	var keys []string
	for len(c.buffered) < tabular.InferSampleSize && c.more() {
		objKeys, vals, err := c.readObject()
		if err != nil {
			return nil, err
		}
		if keys == nil {
			keys = objKeys
			for i, k := range keys {
				c.index[k] = i
			}
		}
		row, err := c.align(objKeys, vals)
		if err != nil {
			return nil, err
		}
		c.buffered = append(c.buffered, row)
	}

	c.schema = make(tabular.Schema, len(keys))
	for i, k := range keys {
		c.schema[i] = tabular.Column{Name: k, Type: inferType(c.buffered, i)}
	}
	return c, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n', 0xEF, 0xBB, 0xBF:
			continue
		}
		return b, br.UnreadByte()
	}
}

func (c *Reader) more() bool {
	return c.decoder.More()
}

// readObject decodes one object keeping its key order.
func (c *Reader) readObject() ([]string, []any, error) {
	c.record++
	tok, err := c.decoder.Token()
	if err != nil {
		return nil, nil, &tabular.InputError{Path: c.path, Op: "read json", Err: fmt.Errorf("record %d: %w", c.record, err)}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, tabular.NewInputError(c.path, "read json", "record %d is not an object", c.record)
	}

	var keys []string
	var vals []any
	for c.decoder.More() {
		keyToken, err := c.decoder.Token()
		if err != nil {
			return nil, nil, &tabular.InputError{Path: c.path, Op: "read json key", Err: err}
		}
		key, ok := keyToken.(string)
		if !ok {
			return nil, nil, tabular.NewInputError(c.path, "read json", "expected string key in record %d", c.record)
		}
		var val any
		if err := c.decoder.Decode(&val); err != nil {
			return nil, nil, &tabular.InputError{Path: c.path, Op: "read json value", Err: fmt.Errorf("key %s: %w", key, err)}
		}
		keys = append(keys, key)
		vals = append(vals, val)
	}
	if _, err := c.decoder.Token(); err != nil {
		return nil, nil, &tabular.InputError{Path: c.path, Op: "read json", Err: fmt.Errorf("expected closing '}': %w", err)}
	}
	return keys, vals, nil
}

// align places decoded values in schema order.
func (c *Reader) align(keys []string, vals []any) ([]any, error) {
	row := make([]any, len(c.index))
	for i, k := range keys {
		j, ok := c.index[k]
		if !ok {
			return nil, tabular.NewInputError(c.path, "read json", "record %d has unexpected key %q", c.record, k)
		}
		row[j] = vals[i]
	}
	return row, nil
}

func inferType(rows [][]any, col int) tabular.DataType {
	var t tabular.DataType
	seen := false
	for _, row := range rows {
		var vt tabular.DataType
		switch v := row[col].(type) {
		case nil:
			continue
		case json.Number:
			if _, err := v.Int64(); err == nil {
				vt = tabular.Int64
			} else {
				vt = tabular.Float64
			}
		default:
			vt = tabular.String
		}
		if !seen {
			t, seen = vt, true
		} else {
			t = tabular.Widen(t, vt)
		}
	}
	if !seen {
		return tabular.String
	}
	return t
}

func (c *Reader) convert(raw []any, out tabular.Row) error {
	for i, col := range c.schema {
		switch v := raw[i].(type) {
		case nil:
			out[i] = nil
		case json.Number:
			switch col.Type {
			case tabular.Int64:
				n, err := v.Int64()
				if err != nil {
					return tabular.NewInputError(c.path, "read json", "record %d column %q: %s is not an Int64", c.record, col.Name, v)
				}
				out[i] = n
			case tabular.Float64:
				f, err := v.Float64()
				if err != nil {
					return tabular.NewInputError(c.path, "read json", "record %d column %q: %v", c.record, col.Name, err)
				}
				out[i] = f
			default:
				out[i] = v.String()
			}
		case string:
			if col.Type != tabular.String {
				return tabular.NewInputError(c.path, "read json", "record %d column %q: string %q in %s column", c.record, col.Name, v, col.Type)
			}
			out[i] = v
		case bool:
			if col.Type != tabular.String {
				return tabular.NewInputError(c.path, "read json", "record %d column %q: bool in %s column", c.record, col.Name, col.Type)
			}
			out[i] = strconv.FormatBool(v)
		default:
			if col.Type != tabular.String {
				return tabular.NewInputError(c.path, "read json", "record %d column %q: nested value in %s column", c.record, col.Name, col.Type)
			}
			b, err := json.Marshal(v)
			if err != nil {
				return &tabular.InputError{Path: c.path, Op: "read json", Err: err}
			}
			out[i] = string(b)
		}
	}
	return nil
}

// Schema implements RowProvider
func (c *Reader) Schema() tabular.Schema {
	return c.schema
}

// ScanRows implements RowProvider. The yielded row is reused between calls.
func (c *Reader) ScanRows(ctx context.Context, yield func(tabular.Row) error) error {
	if c.decoder == nil {
		return fmt.Errorf("JSON reader is not initialized")
	}
	out := make(tabular.Row, len(c.schema))

	for _, raw := range c.buffered {
		if err := c.convert(raw, out); err != nil {
			return err
		}
		if err := yield(out); err != nil {
			return err
		}
	}
	c.buffered = nil

	for n := 0; c.more(); n++ {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		keys, vals, err := c.readObject()
		if err != nil {
			return err
		}
		raw, err := c.align(keys, vals)
		if err != nil {
			return err
		}
		if err := c.convert(raw, out); err != nil {
			return err
		}
		if err := yield(out); err != nil {
			return err
		}
	}

	if c.isArray {
		if _, err := c.decoder.Token(); err != nil {
			return &tabular.InputError{Path: c.path, Op: "read json", Err: fmt.Errorf("expected closing ']': %w", err)}
		}
	}
	c.decoder = nil
	return nil
}

// Writer encodes rows as a JSON array of objects.
type Writer struct {
	w     *bufio.Writer
	keys  [][]byte
	count int
	err   error
}

// NewWriter returns a Writer; nothing is written until the first row or Close.
func NewWriter(dest io.Writer, schema tabular.Schema) *Writer {
	keys := make([][]byte, len(schema))
	for i, c := range schema {
		k, _ := json.Marshal(c.Name)
		keys[i] = append(k, ':')
	}
	return &Writer{w: bufio.NewWriterSize(dest, 65536), keys: keys}
}

// WriteRow implements tabular.RowWriter.
func (w *Writer) WriteRow(row tabular.Row) error {
	if w.err != nil {
		return w.err
	}
	if w.count == 0 {
		w.w.WriteByte('[')
	} else {
		w.w.WriteByte(',')
	}
	w.count++

	w.w.WriteByte('{')
	for i, key := range w.keys {
		if i > 0 {
			w.w.WriteByte(',')
		}
		w.w.Write(key)
		var v any
		if i < len(row) {
			v = row[i]
		}
		if err := w.writeValue(v); err != nil {
			w.err = err
			return err
		}
	}
	_, w.err = w.w.WriteString("}")
	if w.err != nil {
		return fmt.Errorf("failed to write JSON row: %w", w.err)
	}
	return nil
}

func (w *Writer) writeValue(v any) error {
	switch x := v.(type) {
	case nil:
		w.w.WriteString("null")
	case int64:
		w.w.WriteString(strconv.FormatInt(x, 10))
	case float64:
		w.w.WriteString(strconv.FormatFloat(x, 'f', -1, 64))
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Errorf("failed to encode JSON value: %w", err)
		}
		w.w.Write(b)
	}
	return nil
}

// Close implements tabular.RowWriter.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	if w.count == 0 {
		w.w.WriteByte('[')
	}
	w.w.WriteByte(']')
	w.w.WriteByte('\n')
	return w.w.Flush()
}
