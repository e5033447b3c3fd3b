// Package converter converts the files of a dataset that have no counterpart
// in a target directory yet. Which stems are already converted is recomputed
// from the target directory on every call, so an interrupted batch resumes
// where it stopped.
package converter

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/darianmavgo/tabbench/dataset"
	"github.com/darianmavgo/tabbench/formats"
	"github.com/darianmavgo/tabbench/store"
	"github.com/darianmavgo/tabbench/tabular"
)

// Status tells callers whether any file was converted.
type Status string

const (
	StatusNoOp      Status = "noop"
	StatusConverted Status = "converted"
)

// Options configure a conversion. A nil Options selects the defaults.
type Options struct {
	Verbose bool
}

// Report lists what a conversion did.
type Report struct {
	Status    Status
	Converted []string // stems written by this call
	Skipped   []string // stems already present in the target directory
}

// ConvertedCount returns the number of files written.
func (r *Report) ConvertedCount() int { return len(r.Converted) }

// ConversionError is the failure of one file. The stems before it in the
// report were converted; the failed stem left nothing behind.
type ConversionError struct {
	Stem string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("failed to convert %s: %v", e.Stem, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// ConvertDelta converts every file of src whose stem is missing from
// targetDir into target format. When nothing is missing it returns
// StatusNoOp without touching the file system beyond the two listings.
func ConvertDelta(ctx context.Context, src store.Location, targetDir string, target tabular.FileType, opts *Options) (*Report, error) {
	if opts == nil {
		opts = &Options{}
	}
	if _, err := tabular.ParseFileType(string(target)); err != nil {
		return nil, err
	}
	if _, err := tabular.ParseFileType(string(src.FileType)); err != nil {
		return nil, err
	}

	sources, err := store.Glob(src)
	if err != nil {
		return nil, err
	}
	done, err := store.ListStems(targetDir, "*"+target.Ext())
	if err != nil {
		return nil, err
	}

	report := &Report{Status: StatusNoOp}
	var todo []string
	for _, path := range sources {
		stem := store.Stem(path)
		if _, ok := done[stem]; ok {
			report.Skipped = append(report.Skipped, stem)
			continue
		}
		todo = append(todo, path)
	}
	if len(todo) == 0 {
		if opts.Verbose {
			log.Printf("[TABBENCH] Nothing to convert in %s (%d already in %s)", src, len(report.Skipped), targetDir)
		}
		return report, nil
	}

	report.Status = StatusConverted
	for _, path := range todo {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		stem := store.Stem(path)
		dest := filepath.Join(targetDir, stem+target.Ext())
		if err := convertFile(ctx, path, src.FileType, dest, target, opts); err != nil {
			return report, &ConversionError{Stem: stem, Err: err}
		}
		report.Converted = append(report.Converted, stem)
		if opts.Verbose {
			log.Printf("[TABBENCH] Converted %s -> %s", path, dest)
		}
	}
	return report, nil
}

func convertFile(ctx context.Context, path string, from tabular.FileType, dest string, to tabular.FileType, opts *Options) error {
	s, err := dataset.OpenFile(path, from, &dataset.Options{Verbose: opts.Verbose})
	if err != nil {
		return err
	}
	_, err = formats.WriteFile(ctx, dest, to, s)
	return err
}
