package formats

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/darianmavgo/tabbench/tabular"
)

// FileSource is a RowSource over one file on disk. The file is opened on each
// ScanRows call and closed when the scan ends, so a FileSource can be scanned
// more than once.
type FileSource struct {
	Path     string
	FileType tabular.FileType
	schema   tabular.Schema
}

// OpenFile opens path once to read its schema and returns a reusable source.
func OpenFile(path string, ft tabular.FileType) (*FileSource, error) {
	fs := &FileSource{Path: path, FileType: ft}
	err := fs.withProvider(func(p RowProvider) error {
		fs.schema = p.Schema()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileSource) withProvider(fn func(RowProvider) error) error {
	f, err := os.Open(fs.Path)
	if err != nil {
		return &tabular.InputError{Path: fs.Path, Op: "open", Err: err}
	}
	defer f.Close()

	p, err := Open(fs.FileType, f, &Config{Path: fs.Path})
	if err != nil {
		return err
	}
	if c, ok := p.(io.Closer); ok {
		defer c.Close()
	}
	return fn(p)
}

// Schema implements tabular.RowSource.
func (fs *FileSource) Schema() tabular.Schema { return fs.schema }

// ScanRows implements tabular.RowSource.
func (fs *FileSource) ScanRows(ctx context.Context, yield func(tabular.Row) error) error {
	return fs.withProvider(func(p RowProvider) error {
		return p.ScanRows(ctx, yield)
	})
}

// FileWriter writes rows into a temporary file next to Path and moves it
// into place on Close, so Path either holds a complete file or does not exist.
type FileWriter struct {
	Path    string
	tmp     *os.File
	w       tabular.RowWriter
	rows    int64
	settled bool
}

// CreateFile starts a file of type ft at path for rows of schema.
func CreateFile(path string, ft tabular.FileType, schema tabular.Schema) (*FileWriter, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	w, err := NewWriter(ft, tmp, schema)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, err
	}
	return &FileWriter{Path: path, tmp: tmp, w: w}, nil
}

// WriteRow implements tabular.RowWriter.
func (fw *FileWriter) WriteRow(row tabular.Row) error {
	fw.rows++
	return fw.w.WriteRow(row)
}

// Rows returns the number of rows written so far.
func (fw *FileWriter) Rows() int64 { return fw.rows }

// Close finalizes the encoding and renames the temp file to Path.
func (fw *FileWriter) Close() error {
	if fw.settled {
		return nil
	}
	fw.settled = true
	tmpPath := fw.tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	err := fw.w.Close()
	if err != nil {
		err = fmt.Errorf("failed to finalize %s: %w", fw.Path, err)
	}
	if cerr := fw.tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close %s: %w", tmpPath, cerr)
	}
	if err != nil {
		return err
	}
	if err := os.Rename(tmpPath, fw.Path); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

// Abort discards the temp file. It is a no-op after Close.
func (fw *FileWriter) Abort() {
	if fw.settled {
		return
	}
	fw.settled = true
	fw.w.Close()
	fw.tmp.Close()
	os.Remove(fw.tmp.Name())
}

// WriteFile streams src into path using the driver for ft.
func WriteFile(ctx context.Context, path string, ft tabular.FileType, src tabular.RowSource) (int64, error) {
	fw, err := CreateFile(path, ft, src.Schema())
	if err != nil {
		return 0, err
	}
	err = src.ScanRows(ctx, fw.WriteRow)
	if err != nil {
		fw.Abort()
		return fw.Rows(), err
	}
	if err := fw.Close(); err != nil {
		return fw.Rows(), err
	}
	return fw.Rows(), nil
}
