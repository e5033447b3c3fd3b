package csv

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/darianmavgo/tabbench/tabular"
)

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected rune
	}{
		{"Empty", "", ','},
		{"Comma", "a,b,c", ','},
		{"Tab", "a\tb\tc", '\t'},
		{"Semicolon", "a;b;c", ';'},
		{"Pipe", "a|b|c", '|'},
		{"MixedPreferComma", "a,b;c", ','},
		{"MixedPreferTab", "a\tb\tc,d", '\t'},
		{"NoDelimiter", "abc", ','},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectDelimiter(tt.line)
			if got != tt.expected {
				t.Errorf("DetectDelimiter(%q) = %q, want %q", tt.line, got, tt.expected)
			}
		})
	}
}

func scanAll(t *testing.T, r *Reader) []tabular.Row {
	t.Helper()
	var rows []tabular.Row
	err := r.ScanRows(context.Background(), func(row tabular.Row) error {
		rows = append(rows, append(tabular.Row(nil), row...))
		return nil
	})
	if err != nil {
		t.Fatalf("ScanRows failed: %v", err)
	}
	return rows
}

func TestReaderInfersTypes(t *testing.T) {
	input := "name,email,age\nAlice,a@example.com,31\nBob,b@example.com,50\n"
	r, err := NewReader(strings.NewReader(input))
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}

	want := tabular.Schema{{Name: "name", Type: tabular.String}, {Name: "email", Type: tabular.String}, {Name: "age", Type: tabular.Int64}}
	if !r.Schema().Equal(want) {
		t.Fatalf("schema = %v, want %v", r.Schema(), want)
	}

	rows := scanAll(t, r)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[1][0] != "Bob" || rows[1][2] != int64(50) {
		t.Errorf("unexpected row %v", rows[1])
	}
}

func TestReaderSemicolonAndBOM(t *testing.T) {
	input := "\xEF\xBB\xBFname;age\nAlice;31\n"
	r, err := NewReader(strings.NewReader(input))
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	if r.Schema()[0].Name != "name" {
		t.Errorf("BOM not stripped: %q", r.Schema()[0].Name)
	}
	rows := scanAll(t, r)
	if rows[0][1] != int64(31) {
		t.Errorf("unexpected row %v", rows[0])
	}
}

func TestReaderHeaderOnly(t *testing.T) {
	r, err := NewReader(strings.NewReader("name,email,age\n"))
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	if len(r.Schema()) != 3 {
		t.Fatalf("expected 3 columns, got %v", r.Schema())
	}
	if rows := scanAll(t, r); len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func TestReaderErrors(t *testing.T) {
	if _, err := NewReader(strings.NewReader("")); !errors.Is(err, tabular.ErrInput) {
		t.Errorf("empty file: expected input error, got %v", err)
	}

	r, err := NewReader(strings.NewReader("a,b\n1,2,3\n"))
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	err = r.ScanRows(context.Background(), func(tabular.Row) error { return nil })
	if !errors.Is(err, tabular.ErrInput) {
		t.Errorf("wide row: expected input error, got %v", err)
	}
}

func TestReaderLateTypeMismatch(t *testing.T) {
	var b strings.Builder
	b.WriteString("name,age\n")
	for i := 0; i < tabular.InferSampleSize; i++ {
		b.WriteString("x,20\n")
	}
	b.WriteString("y,twenty\n")

	r, err := NewReader(strings.NewReader(b.String()))
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	err = r.ScanRows(context.Background(), func(tabular.Row) error { return nil })
	if !errors.Is(err, tabular.ErrInput) {
		t.Errorf("expected input error for non-integer age, got %v", err)
	}
}

func TestWriterRoundTrip(t *testing.T) {
	schema := tabular.Schema{{Name: "name", Type: tabular.String}, {Name: "age", Type: tabular.Int64}}
	var buf bytes.Buffer
	w, err := NewWriter(&buf, schema)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	if err := w.WriteRow(tabular.Row{"O'Brien, Pat", int64(50)}); err != nil {
		t.Fatalf("WriteRow failed: %v", err)
	}
	if err := w.WriteRow(tabular.Row{"Nil", nil}); err != nil {
		t.Fatalf("WriteRow failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	rows := scanAll(t, r)
	if len(rows) != 2 || rows[0][0] != "O'Brien, Pat" || rows[0][1] != int64(50) || rows[1][1] != nil {
		t.Errorf("unexpected rows %v", rows)
	}
}
