package eager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/darianmavgo/tabbench/engines"
	_ "github.com/darianmavgo/tabbench/formats/all"
	"github.com/darianmavgo/tabbench/store"
	"github.com/darianmavgo/tabbench/tabular"
)

func TestRun(t *testing.T) {
	loc, _ := store.ResolveLocation(t.TempDir(), tabular.JSON)
	if err := os.MkdirAll(loc.Dir, 0755); err != nil {
		t.Fatal(err)
	}
	data := `[{"name":"Ann","email":"a@x","age":51},{"name":"Bob","email":"b@x","age":20}]`
	if err := os.WriteFile(filepath.Join(loc.Dir, "data_0.json"), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	in := engines.Input{Location: loc, OutputDir: t.TempDir()}

	res, err := (&Engine{}).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.RowCount != 2 || len(res.Top) != 1 || res.Top[0].Name != "Ann" {
		t.Errorf("unexpected result %+v", res)
	}
	if filepath.Base(res.ExportedFile) != "filtered_eager_json.json" || res.ExportedRows != 1 {
		t.Errorf("export %s with %d rows", res.ExportedFile, res.ExportedRows)
	}
	if len(res.Timings) != 5 {
		t.Errorf("timings = %+v", res.Timings)
	}
}

func TestRunNoFiles(t *testing.T) {
	loc, _ := store.ResolveLocation(t.TempDir(), tabular.CSV)
	_, err := (&Engine{}).Run(context.Background(), engines.Input{Location: loc, OutputDir: t.TempDir()})
	if !errors.Is(err, tabular.ErrInput) {
		t.Errorf("expected input error, got %v", err)
	}
}
