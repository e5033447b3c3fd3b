// Package dataset reads a glob of same-format files as one table.
//
// Open returns a lazy Scanner: it only reads file headers until rows are
// asked for, and every scan streams file by file so streaming engines never
// hold more than one chunk. Read materializes everything into a Frame.
package dataset

import (
	"context"
	"fmt"
	"log"

	"github.com/darianmavgo/tabbench/formats"
	"github.com/darianmavgo/tabbench/store"
	"github.com/darianmavgo/tabbench/tabular"
)

// Scanner is a read plan over the files of a location.
type Scanner struct {
	loc     store.Location
	files   []*formats.FileSource
	schema  tabular.Schema
	verbose bool
}

var _ tabular.RowSource = (*Scanner)(nil)

// Options tweak Open. A nil Options selects the defaults.
type Options struct {
	Verbose bool
}

// Open globs loc and unifies the schemas of the matched files. Column names
// and order must agree across files; Int64 and Float64 widen to Float64 and
// any other clash widens to String.
func Open(loc store.Location, opts *Options) (*Scanner, error) {
	if opts == nil {
		opts = &Options{}
	}
	if _, err := tabular.ParseFileType(string(loc.FileType)); err != nil {
		return nil, err
	}
	paths, err := store.Glob(loc)
	if err != nil {
		return nil, &tabular.InputError{Path: loc.Glob(), Op: "glob", Err: err}
	}
	if len(paths) == 0 {
		return nil, tabular.NewInputError(loc.Glob(), "glob", "no files match")
	}
	return open(loc, paths, opts)
}

// OpenFile returns a Scanner over a single file.
func OpenFile(path string, ft tabular.FileType, opts *Options) (*Scanner, error) {
	if opts == nil {
		opts = &Options{}
	}
	if _, err := tabular.ParseFileType(string(ft)); err != nil {
		return nil, err
	}
	return open(store.Location{Dir: path, FileType: ft}, []string{path}, opts)
}

func open(loc store.Location, paths []string, opts *Options) (*Scanner, error) {
	s := &Scanner{loc: loc, verbose: opts.Verbose}
	for _, p := range paths {
		fs, err := formats.OpenFile(p, loc.FileType)
		if err != nil {
			return nil, err
		}
		if err := s.unify(fs); err != nil {
			return nil, err
		}
		s.files = append(s.files, fs)
	}
	if s.verbose {
		log.Printf("[TABBENCH] Dataset %s: %d files, schema %v", loc, len(s.files), s.schema)
	}
	return s, nil
}

func (s *Scanner) unify(fs *formats.FileSource) error {
	fileSchema := fs.Schema()
	if s.schema == nil {
		s.schema = append(tabular.Schema(nil), fileSchema...)
		return nil
	}
	if len(fileSchema) != len(s.schema) {
		return tabular.NewInputError(fs.Path, "unify schema", "has columns %v, expected %v", fileSchema.Names(), s.schema.Names())
	}
	for i, c := range fileSchema {
		if c.Name != s.schema[i].Name {
			return tabular.NewInputError(fs.Path, "unify schema", "has columns %v, expected %v", fileSchema.Names(), s.schema.Names())
		}
		s.schema[i].Type = tabular.Widen(s.schema[i].Type, c.Type)
	}
	return nil
}

// Files returns the matched paths in scan order.
func (s *Scanner) Files() []string {
	out := make([]string, len(s.files))
	for i, f := range s.files {
		out[i] = f.Path
	}
	return out
}

// Location returns the location the scanner was opened on.
func (s *Scanner) Location() store.Location { return s.loc }

// Schema implements tabular.RowSource and returns the unified schema.
func (s *Scanner) Schema() tabular.Schema { return s.schema }

// ScanRows implements tabular.RowSource over all columns.
func (s *Scanner) ScanRows(ctx context.Context, yield func(tabular.Row) error) error {
	return s.Scan(ctx, nil, yield)
}

// Scan streams rows restricted to cols, in the order given. A nil cols scans
// every column. The yielded row is reused between calls.
func (s *Scanner) Scan(ctx context.Context, cols []string, yield func(tabular.Row) error) error {
	schema, idx, err := s.projection(cols)
	if err != nil {
		return err
	}
	out := make(tabular.Row, len(schema))
	for _, fs := range s.files {
		err := fs.ScanRows(ctx, func(row tabular.Row) error {
			for i, j := range idx {
				var v any
				if j < len(row) {
					v = row[j]
				}
				out[i] = tabular.Coerce(v, schema[i].Type)
			}
			return yield(out)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ScanChunks groups the projected rows into frames of at most size rows. The
// last chunk may be shorter; an empty dataset yields no chunk.
func (s *Scanner) ScanChunks(ctx context.Context, cols []string, size int, yield func(*tabular.Frame) error) error {
	if size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", size)
	}
	schema, err := s.ProjectSchema(cols)
	if err != nil {
		return err
	}
	chunk := tabular.NewFrame(schema)
	err = s.Scan(ctx, cols, func(row tabular.Row) error {
		chunk.Append(row)
		if chunk.Len() < size {
			return nil
		}
		full := chunk
		chunk = tabular.NewFrame(schema)
		return yield(full)
	})
	if err != nil {
		return err
	}
	if chunk.Len() > 0 {
		return yield(chunk)
	}
	return nil
}

// Collect materializes the projection of cols.
func (s *Scanner) Collect(ctx context.Context, cols []string) (*tabular.Frame, error) {
	schema, err := s.ProjectSchema(cols)
	if err != nil {
		return nil, err
	}
	f := tabular.NewFrame(schema)
	err = s.Scan(ctx, cols, func(row tabular.Row) error {
		f.Append(row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ProjectSchema returns the schema a scan of cols produces.
func (s *Scanner) ProjectSchema(cols []string) (tabular.Schema, error) {
	schema, _, err := s.projection(cols)
	return schema, err
}

func (s *Scanner) projection(cols []string) (tabular.Schema, []int, error) {
	if cols == nil {
		idx := make([]int, len(s.schema))
		for i := range idx {
			idx[i] = i
		}
		return s.schema, idx, nil
	}
	return s.schema.Project(cols)
}

// Read materializes every file of loc into one frame.
func Read(ctx context.Context, loc store.Location, opts *Options) (*tabular.Frame, error) {
	s, err := Open(loc, opts)
	if err != nil {
		return nil, err
	}
	return s.Collect(ctx, nil)
}
