package gpu

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/darianmavgo/tabbench/engines"
	"github.com/darianmavgo/tabbench/engines/lazy"
	"github.com/darianmavgo/tabbench/formats"
	_ "github.com/darianmavgo/tabbench/formats/all"
	"github.com/darianmavgo/tabbench/store"
	"github.com/darianmavgo/tabbench/tabular"
)

// cpuDevice runs the kernels on the host.
type cpuDevice struct{ checks int }

func (d *cpuDevice) Name() string { return "cpu-test" }

func (d *cpuDevice) Check(context.Context) error {
	d.checks++
	return nil
}

func (d *cpuDevice) Aggregate(_ context.Context, b *engines.AggregateBinding, chunk *tabular.Frame, agg *engines.Aggregator) error {
	return b.AddFrame(agg, chunk)
}

func (d *cpuDevice) Filter(_ context.Context, b *engines.ExportBinding, chunk *tabular.Frame) (*tabular.Frame, error) {
	return b.Filter(chunk)
}

type brokenDevice struct{}

func (brokenDevice) Name() string                { return "broken" }
func (brokenDevice) Check(context.Context) error { return errors.New("driver not loaded") }
func (brokenDevice) Aggregate(context.Context, *engines.AggregateBinding, *tabular.Frame, *engines.Aggregator) error {
	return errors.New("unreachable")
}
func (brokenDevice) Filter(context.Context, *engines.ExportBinding, *tabular.Frame) (*tabular.Frame, error) {
	return nil, errors.New("unreachable")
}

func fixture(t *testing.T, rows int) engines.Input {
	t.Helper()
	base := t.TempDir()
	loc, err := store.ResolveLocation(base, tabular.CSV)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(loc.Dir, 0755); err != nil {
		t.Fatal(err)
	}
	var b strings.Builder
	b.WriteString("name,email,age\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "n%d,n%d@example.com,%d\n", i%4, i, 18+(i*7)%63)
	}
	if err := os.WriteFile(filepath.Join(loc.Dir, "data_0.csv"), []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}
	return engines.Input{Location: loc, OutputDir: t.TempDir(), ChunkSize: 6}
}

func TestUnavailableWithoutDevice(t *testing.T) {
	in := fixture(t, 5)
	for _, streaming := range []bool{false, true} {
		e := NewEngine(streaming)
		res, err := e.Run(context.Background(), in)
		if err != nil {
			t.Fatalf("%s returned error: %v", e.Name(), err)
		}
		if res.Status != engines.StatusUnavailable {
			t.Errorf("%s status = %s", e.Name(), res.Status)
		}
		if !errors.Is(res.Unavailable, tabular.ErrCapabilityUnavailable) || !errors.Is(res.Unavailable, ErrNoDevice) {
			t.Errorf("%s unavailable = %v", e.Name(), res.Unavailable)
		}
	}
}

func TestUnavailableWhenCheckFails(t *testing.T) {
	res, err := NewEngine(false, brokenDevice{}).Run(context.Background(), fixture(t, 5))
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != engines.StatusUnavailable || !strings.Contains(res.Unavailable.Error(), "driver not loaded") {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestFallsBackToWorkingDevice(t *testing.T) {
	dev := &cpuDevice{}
	res, err := NewEngine(false, brokenDevice{}, dev).Run(context.Background(), fixture(t, 5))
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != engines.StatusOK || dev.checks != 1 {
		t.Errorf("status %s after %d checks", res.Status, dev.checks)
	}
}

func TestDeviceMatchesCPU(t *testing.T) {
	in := fixture(t, 53)
	cpu, err := (&lazy.Engine{}).Run(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}

	for _, streaming := range []bool{false, true} {
		e := NewEngine(streaming, &cpuDevice{})
		res, err := e.Run(context.Background(), in)
		if err != nil {
			t.Fatalf("%s failed: %v", e.Name(), err)
		}
		if res.Status != engines.StatusOK {
			t.Fatalf("%s status %s", e.Name(), res.Status)
		}
		if res.RowCount != cpu.RowCount || !res.Schema.Equal(cpu.Schema) || !reflect.DeepEqual(res.Top, cpu.Top) {
			t.Errorf("%s disagrees with cpu: %+v vs %+v", e.Name(), res, cpu)
		}
		if res.ExportedRows != cpu.ExportedRows {
			t.Errorf("%s exported %d rows, cpu %d", e.Name(), res.ExportedRows, cpu.ExportedRows)
		}
		wantExt := ".json"
		if streaming {
			wantExt = ".parquet"
		}
		if filepath.Ext(res.ExportedFile) != wantExt {
			t.Errorf("%s exported %s", e.Name(), res.ExportedFile)
		}
		ft := tabular.JSON
		if streaming {
			ft = tabular.Parquet
		}
		src, err := formats.OpenFile(res.ExportedFile, ft)
		if err != nil {
			t.Fatal(err)
		}
		got, err := tabular.Collect(context.Background(), src)
		if err != nil {
			t.Fatal(err)
		}
		if int64(got.Len()) != res.ExportedRows {
			t.Errorf("%s file holds %d rows, reported %d", e.Name(), got.Len(), res.ExportedRows)
		}
	}
}

func TestRegisterDevice(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("nil device did not panic")
		}
	}()
	RegisterDevice(nil)
}
