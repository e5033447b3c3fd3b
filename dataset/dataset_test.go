package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/darianmavgo/tabbench/formats/all"
	"github.com/darianmavgo/tabbench/store"
	"github.com/darianmavgo/tabbench/tabular"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func csvLocation(dir string) store.Location {
	return store.Location{Dir: dir, Pattern: "*.csv", FileType: tabular.CSV}
}

func TestOpenNoFiles(t *testing.T) {
	_, err := Open(csvLocation(t.TempDir()), nil)
	if !errors.Is(err, tabular.ErrInput) {
		t.Errorf("expected input error, got %v", err)
	}
}

func TestOpenUnsupportedType(t *testing.T) {
	_, err := Open(store.Location{Dir: "does-not-exist", Pattern: "*.xml", FileType: "xml"}, nil)
	if !errors.Is(err, tabular.ErrUnsupportedFileType) {
		t.Errorf("expected ErrUnsupportedFileType, got %v", err)
	}
}

func TestSchemaUnification(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "name,score\nx,1\n")
	writeFile(t, dir, "b.csv", "name,score\ny,2.5\n")

	s, err := Open(csvLocation(dir), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	want := tabular.Schema{{Name: "name", Type: tabular.String}, {Name: "score", Type: tabular.Float64}}
	if !s.Schema().Equal(want) {
		t.Fatalf("schema = %v, want %v", s.Schema(), want)
	}

	f, err := s.Collect(context.Background(), nil)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if f.Len() != 2 || f.Rows[0][1] != float64(1) || f.Rows[1][1] != 2.5 {
		t.Errorf("unexpected rows %v", f.Rows)
	}
}

func TestSchemaMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "name,age\nx,1\n")
	writeFile(t, dir, "b.csv", "age,name\n2,y\n")
	_, err := Open(csvLocation(dir), nil)
	var ie *tabular.InputError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InputError, got %v", err)
	}
	if ie.Path != filepath.Join(dir, "b.csv") {
		t.Errorf("error names %q, want b.csv", ie.Path)
	}
}

func TestScanProjectionAndChunks(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "name,email,age\na,a@x,20\nb,b@x,30\nc,c@x,40\n")
	writeFile(t, dir, "b.csv", "name,email,age\nd,d@x,50\ne,e@x,60\n")

	s, err := Open(csvLocation(dir), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	var sizes []int
	var ages []any
	err = s.ScanChunks(context.Background(), []string{"age", "name"}, 2, func(chunk *tabular.Frame) error {
		sizes = append(sizes, chunk.Len())
		for _, row := range chunk.Rows {
			ages = append(ages, row[0])
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ScanChunks failed: %v", err)
	}
	// chunks span file boundaries
	if len(sizes) != 3 || sizes[0] != 2 || sizes[1] != 2 || sizes[2] != 1 {
		t.Errorf("chunk sizes = %v, want [2 2 1]", sizes)
	}
	if len(ages) != 5 || ages[4] != int64(60) {
		t.Errorf("ages = %v", ages)
	}

	if _, err := s.Collect(context.Background(), []string{"nope"}); !errors.Is(err, tabular.ErrInput) {
		t.Errorf("expected input error for missing column, got %v", err)
	}
	if err := s.ScanChunks(context.Background(), nil, 0, func(*tabular.Frame) error { return nil }); err == nil {
		t.Error("expected error for zero chunk size")
	}
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `[{"name":"a","age":20},{"name":"b","age":31}]`)
	f, err := Read(context.Background(), store.Location{Dir: dir, Pattern: "*.json", FileType: tabular.JSON}, nil)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if f.Len() != 2 || f.Rows[1][1] != int64(31) {
		t.Errorf("unexpected frame %v", f.Rows)
	}
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "name\nx\n")
	writeFile(t, dir, "b.csv", "name\ny\n")
	s, err := OpenFile(filepath.Join(dir, "b.csv"), tabular.CSV, nil)
	if err != nil {
		t.Fatal(err)
	}
	f, err := s.Collect(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if f.Len() != 1 || f.Rows[0][0] != "y" {
		t.Errorf("unexpected rows %v", f.Rows)
	}
}
