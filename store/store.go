// Package store knows the on-disk layout of a tabbench data directory: where
// each source format lives, which stems a directory already holds and how
// a location expands to files.
//
// The stem ledger is recomputed from the directory listing on every call.
// Nothing guards it against a concurrent writer in the same directory; the
// last writer wins.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/darianmavgo/tabbench/tabular"
)

// Directory names under the data directory.
const (
	CSVDir     = "fake_csvs"
	JSONDir    = "fake_jsons"
	ParquetDir = "parquets"
)

// Location is a dataset: every file in Dir matching Pattern, read as FileType.
type Location struct {
	Dir      string
	Pattern  string
	FileType tabular.FileType
}

// Glob returns the pattern joined to the directory.
func (l Location) Glob() string { return filepath.Join(l.Dir, l.Pattern) }

func (l Location) String() string { return l.Glob() }

// ResolveLocation maps a source file type to its directory and glob under
// baseDir. It performs no I/O.
func ResolveLocation(baseDir string, ft tabular.FileType) (Location, error) {
	switch ft {
	case tabular.CSV:
		return Location{Dir: filepath.Join(baseDir, CSVDir), Pattern: "*.csv", FileType: ft}, nil
	case tabular.JSON:
		return Location{Dir: filepath.Join(baseDir, JSONDir), Pattern: "*.json", FileType: ft}, nil
	}
	return Location{}, fmt.Errorf("%w: %q (choose csv or json)", tabular.ErrUnsupportedFileType, ft)
}

// TargetDir returns the directory conversions to ft are written to.
func TargetDir(baseDir string, ft tabular.FileType) (string, error) {
	switch ft {
	case tabular.Parquet:
		return filepath.Join(baseDir, ParquetDir), nil
	case tabular.CSV, tabular.JSON:
		loc, err := ResolveLocation(baseDir, ft)
		return loc.Dir, err
	}
	return "", fmt.Errorf("%w: %q", tabular.ErrUnsupportedFileType, ft)
}

// Stem returns the base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Files returns the regular files in dir matching pattern, sorted lexically.
// A missing directory yields no files and no error.
func Files(dir, pattern string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		ok, err := filepath.Match(pattern, e.Name())
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if ok {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Glob returns the files of a location, sorted lexically.
func Glob(loc Location) ([]string, error) {
	return Files(loc.Dir, loc.Pattern)
}

// ListStems returns the set of stems of the files in dir matching pattern.
func ListStems(dir, pattern string) (map[string]struct{}, error) {
	files, err := Files(dir, pattern)
	if err != nil {
		return nil, err
	}
	stems := make(map[string]struct{}, len(files))
	for _, f := range files {
		stems[Stem(f)] = struct{}{}
	}
	return stems, nil
}

// SortedStems returns the keys of a stem set in lexical order.
func SortedStems(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// EnsureLayout creates the standard directories under baseDir.
func EnsureLayout(baseDir string) error {
	for _, d := range []string{CSVDir, JSONDir, ParquetDir} {
		if err := os.MkdirAll(filepath.Join(baseDir, d), 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", d, err)
		}
	}
	return nil
}
