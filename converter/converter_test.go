package converter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	_ "github.com/darianmavgo/tabbench/formats/all"
	"github.com/darianmavgo/tabbench/store"
	"github.com/darianmavgo/tabbench/tabular"
)

func setup(t *testing.T, stems ...string) (store.Location, string) {
	t.Helper()
	base := t.TempDir()
	loc, err := store.ResolveLocation(base, tabular.CSV)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(loc.Dir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, s := range stems {
		writeCSV(t, loc.Dir, s)
	}
	return loc, filepath.Join(base, store.ParquetDir)
}

func writeCSV(t *testing.T, dir, stem string) {
	t.Helper()
	data := "name,email,age\n" + stem + "," + stem + "@example.com,42\n"
	if err := os.WriteFile(filepath.Join(dir, stem+".csv"), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
}

func touch(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte("existing"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestConvertDelta(t *testing.T) {
	loc, target := setup(t, "a", "b", "c")
	touch(t, target, "b.parquet")

	report, err := ConvertDelta(context.Background(), loc, target, tabular.Parquet, nil)
	if err != nil {
		t.Fatalf("ConvertDelta failed: %v", err)
	}
	if report.Status != StatusConverted || report.ConvertedCount() != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if !reflect.DeepEqual(report.Converted, []string{"a", "c"}) || !reflect.DeepEqual(report.Skipped, []string{"b"}) {
		t.Errorf("converted %v skipped %v", report.Converted, report.Skipped)
	}

	// b.parquet was not rewritten
	data, err := os.ReadFile(filepath.Join(target, "b.parquet"))
	if err != nil || string(data) != "existing" {
		t.Errorf("b.parquet changed: %q, %v", data, err)
	}
	stems, _ := store.ListStems(target, "*.parquet")
	if got := store.SortedStems(stems); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("target stems %v", got)
	}
}

func TestConvertDeltaNoOp(t *testing.T) {
	loc, target := setup(t, "a", "b")
	touch(t, target, "a.parquet")
	touch(t, target, "b.parquet")
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	for _, name := range []string{"a.parquet", "b.parquet"} {
		if err := os.Chtimes(filepath.Join(target, name), old, old); err != nil {
			t.Fatal(err)
		}
	}

	report, err := ConvertDelta(context.Background(), loc, target, tabular.Parquet, nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != StatusNoOp || report.ConvertedCount() != 0 {
		t.Errorf("unexpected report %+v", report)
	}
	entries, _ := os.ReadDir(target)
	if len(entries) != 2 {
		t.Errorf("target dir holds %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			t.Fatal(err)
		}
		if !info.ModTime().Equal(old) {
			t.Errorf("%s mtime changed to %v", e.Name(), info.ModTime())
		}
	}
}

func TestConvertDeltaNoOpCreatesNothing(t *testing.T) {
	loc, target := setup(t)
	report, err := ConvertDelta(context.Background(), loc, target, tabular.Parquet, nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != StatusNoOp {
		t.Errorf("status = %s", report.Status)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Errorf("target directory was created: %v", err)
	}
}

func TestConvertDeltaResume(t *testing.T) {
	loc, target := setup(t, "x", "y")
	first, err := ConvertDelta(context.Background(), loc, target, tabular.Parquet, nil)
	if err != nil || first.ConvertedCount() != 2 {
		t.Fatalf("first run: %+v, %v", first, err)
	}

	writeCSV(t, loc.Dir, "z")
	second, err := ConvertDelta(context.Background(), loc, target, tabular.Parquet, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(second.Converted, []string{"z"}) {
		t.Errorf("second run converted %v, want [z]", second.Converted)
	}
}

func TestConvertDeltaFailure(t *testing.T) {
	loc, target := setup(t, "a", "c")
	// b has a row wider than its header
	if err := os.WriteFile(filepath.Join(loc.Dir, "b.csv"), []byte("name,age\nx,1,2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	report, err := ConvertDelta(context.Background(), loc, target, tabular.Parquet, nil)
	var ce *ConversionError
	if !errors.As(err, &ce) || ce.Stem != "b" {
		t.Fatalf("expected ConversionError for b, got %v", err)
	}
	if !errors.Is(err, tabular.ErrInput) {
		t.Errorf("cause should be an input error: %v", err)
	}
	if !reflect.DeepEqual(report.Converted, []string{"a"}) {
		t.Errorf("partial report %v", report.Converted)
	}
	entries, _ := os.ReadDir(target)
	if len(entries) != 1 || entries[0].Name() != "a.parquet" {
		t.Errorf("target holds %v", entries)
	}
}

func TestConvertDeltaUnsupported(t *testing.T) {
	loc, target := setup(t, "a")
	if _, err := ConvertDelta(context.Background(), loc, target, "xml", nil); !errors.Is(err, tabular.ErrUnsupportedFileType) {
		t.Errorf("expected ErrUnsupportedFileType, got %v", err)
	}
}
