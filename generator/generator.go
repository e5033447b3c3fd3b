// Package generator writes synthetic people datasets. It is idempotent:
// a file that already exists is never rewritten, and the rows of a file
// depend only on its name, so a resumed run produces what an uninterrupted
// one would have.
package generator

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/darianmavgo/tabbench/formats"
	"github.com/darianmavgo/tabbench/tabular"
	"github.com/zeebo/xxh3"
)

// Age bounds of generated people, inclusive.
const (
	MinAge = 18
	MaxAge = 80
)

// Schema is the schema of generated files.
var Schema = tabular.Schema{
	{Name: "name", Type: tabular.String},
	{Name: "email", Type: tabular.String},
	{Name: "age", Type: tabular.Int64},
}

// Options configure a generation run.
type Options struct {
	Dir         string
	FileType    tabular.FileType
	NumFiles    int
	RowsPerFile int
	Verbose     bool
}

// Report lists generated and skipped file names.
type Report struct {
	Generated []string
	Skipped   []string
}

// FileName returns the name of the i-th file.
func FileName(i int, ft tabular.FileType) string {
	return fmt.Sprintf("data_%d%s", i, ft.Ext())
}

// Generate writes Dir/data_<i>.<ext> for i in [0, NumFiles), skipping files
// that exist.
func Generate(ctx context.Context, opts Options) (*Report, error) {
	if _, err := tabular.ParseSourceType(string(opts.FileType)); err != nil {
		return nil, err
	}
	if opts.NumFiles < 0 || opts.RowsPerFile < 0 {
		return nil, fmt.Errorf("file and row counts must not be negative (got %d, %d)", opts.NumFiles, opts.RowsPerFile)
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", opts.Dir, err)
	}

	report := &Report{}
	for i := 0; i < opts.NumFiles; i++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		name := FileName(i, opts.FileType)
		path := filepath.Join(opts.Dir, name)
		if _, err := os.Stat(path); err == nil {
			report.Skipped = append(report.Skipped, name)
			continue
		} else if !os.IsNotExist(err) {
			return report, fmt.Errorf("failed to stat %s: %w", path, err)
		}

		if _, err := formats.WriteFile(ctx, path, opts.FileType, People(name, opts.RowsPerFile)); err != nil {
			return report, fmt.Errorf("failed to write %s: %w", path, err)
		}
		report.Generated = append(report.Generated, name)
		if opts.Verbose {
			log.Printf("[TABBENCH] Generated %s (%d rows)", path, opts.RowsPerFile)
		}
	}
	return report, nil
}

// People returns a frame of n fake people seeded from seed, so equal seeds
// give equal rows.
func People(seed string, n int) *tabular.Frame {
	faker := gofakeit.New(xxh3.HashString(seed))
	f := tabular.NewFrame(Schema)
	f.Rows = make([]tabular.Row, 0, n)
	for i := 0; i < n; i++ {
		f.Rows = append(f.Rows, tabular.Row{faker.Name(), faker.Email(), int64(faker.IntRange(MinAge, MaxAge))})
	}
	return f
}
