package store

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/darianmavgo/tabbench/tabular"
)

func TestResolveLocation(t *testing.T) {
	tests := []struct {
		ft      tabular.FileType
		dir     string
		pattern string
		wantErr bool
	}{
		{tabular.CSV, filepath.Join("data", CSVDir), "*.csv", false},
		{tabular.JSON, filepath.Join("data", JSONDir), "*.json", false},
		{tabular.Parquet, "", "", true},
		{tabular.FileType("xml"), "", "", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.ft), func(t *testing.T) {
			loc, err := ResolveLocation("data", tt.ft)
			if tt.wantErr {
				if !errors.Is(err, tabular.ErrUnsupportedFileType) {
					t.Fatalf("expected ErrUnsupportedFileType, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveLocation failed: %v", err)
			}
			if loc.Dir != tt.dir || loc.Pattern != tt.pattern || loc.FileType != tt.ft {
				t.Errorf("got %+v", loc)
			}
		})
	}
}

func TestResolveLocationNoIO(t *testing.T) {
	base := filepath.Join(t.TempDir(), "absent")
	if _, err := ResolveLocation(base, tabular.CSV); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(base); !os.IsNotExist(err) {
		t.Errorf("ResolveLocation touched the file system: %v", err)
	}
}

func TestListStems(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.parquet", "a.parquet", "c.csv", ".a.parquet.123.tmp"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "d.parquet"), 0755); err != nil {
		t.Fatal(err)
	}

	stems, err := ListStems(dir, "*.parquet")
	if err != nil {
		t.Fatalf("ListStems failed: %v", err)
	}
	if got := SortedStems(stems); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("stems = %v, want [a b]", got)
	}

	missing, err := ListStems(filepath.Join(dir, "nope"), "*.parquet")
	if err != nil || len(missing) != 0 {
		t.Errorf("missing dir: got %v, %v", missing, err)
	}
}

func TestGlobSorted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"data_2.csv", "data_10.csv", "data_1.csv"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	files, err := Glob(Location{Dir: dir, Pattern: "*.csv", FileType: tabular.CSV})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "data_1.csv"), filepath.Join(dir, "data_10.csv"), filepath.Join(dir, "data_2.csv")}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("Glob = %v, want %v", files, want)
	}
}

func TestStem(t *testing.T) {
	if got := Stem("/x/y/data_3.csv"); got != "data_3" {
		t.Errorf("Stem = %q", got)
	}
}

func TestEnsureLayout(t *testing.T) {
	base := filepath.Join(t.TempDir(), "data")
	if err := EnsureLayout(base); err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{CSVDir, JSONDir, ParquetDir} {
		if st, err := os.Stat(filepath.Join(base, d)); err != nil || !st.IsDir() {
			t.Errorf("%s not created: %v", d, err)
		}
	}
}
