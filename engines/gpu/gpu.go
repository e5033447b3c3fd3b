// Package gpu registers the accelerator engines. They run the same plans as
// the lazy engines but hand every frame to a Device. Without a usable device
// both report StatusUnavailable instead of failing.
package gpu

import (
	"context"
	"log"

	"github.com/darianmavgo/tabbench/dataset"
	"github.com/darianmavgo/tabbench/engines"
	"github.com/darianmavgo/tabbench/tabular"
)

// DefaultChunkSize is used by gpu-streaming when the input does not set one.
const DefaultChunkSize = 10000

func init() {
	engines.Register(NewEngine(false))
	engines.Register(NewEngine(true))
}

// Engine is the eager (gpu, JSON export) or streaming (gpu-streaming,
// parquet export) accelerator variant.
type Engine struct {
	streaming bool
	devices   []Device // nil selects the registry
}

// NewEngine returns an accelerator engine. With no devices given it picks
// from the registered ones at run time.
func NewEngine(streaming bool, devices ...Device) *Engine {
	return &Engine{streaming: streaming, devices: devices}
}

func (e *Engine) Name() string {
	if e.streaming {
		return engines.GPUStreaming
	}
	return engines.GPU
}

func (e *Engine) format() tabular.FileType {
	if e.streaming {
		return tabular.Parquet
	}
	return tabular.JSON
}

func (e *Engine) Run(ctx context.Context, in engines.Input) (*engines.Result, error) {
	candidates := e.devices
	if candidates == nil {
		candidates = Devices()
	}
	dev, err := pick(ctx, candidates)
	if err != nil {
		if in.Verbose {
			log.Printf("[TABBENCH] %s unavailable: %v", e.Name(), err)
		}
		return engines.Unavailable(e.Name(), err), nil
	}

	timer := engines.NewTimer(e.Name(), in.Verbose)
	res := &engines.Result{Engine: e.Name(), Status: engines.StatusOK}

	var scanner *dataset.Scanner
	err = timer.Phase(engines.PhaseLoad, func() (err error) {
		scanner, err = dataset.Open(in.Location, &dataset.Options{Verbose: in.Verbose})
		return err
	})
	if err != nil {
		return nil, err
	}
	res.Schema = scanner.Schema()

	cols, err := engines.RequiredColumns(scanner.Schema(), engines.AggregatePlan, engines.ExportPlan)
	if err != nil {
		return nil, err
	}
	schema, err := scanner.ProjectSchema(cols)
	if err != nil {
		return nil, err
	}
	aggB, err := engines.BindAggregate(schema)
	if err != nil {
		return nil, err
	}
	expB, err := engines.BindExport(schema)
	if err != nil {
		return nil, err
	}

	size := 0 // one chunk holding everything
	if e.streaming {
		size = in.ChunkSize
		if size <= 0 {
			size = DefaultChunkSize
		}
	}

	res.ExportedFile = engines.ExportPath(in.OutputDir, e.Name(), in.Location.FileType, e.format())
	exp, err := engines.NewExporter(res.ExportedFile, e.format(), expB.Schema())
	if err != nil {
		return nil, err
	}

	agg := engines.NewAggregator()
	process := func(chunk *tabular.Frame) error {
		res.RowCount += int64(chunk.Len())
		part := engines.NewAggregator()
		if err := dev.Aggregate(ctx, aggB, chunk, part); err != nil {
			return err
		}
		agg.Merge(part)
		matched, err := dev.Filter(ctx, expB, chunk)
		if err != nil {
			return err
		}
		return exp.WriteFiltered(matched)
	}

	err = timer.Phase(engines.PhaseAggregate, func() error {
		if size == 0 {
			frame, err := scanner.Collect(ctx, cols)
			if err != nil {
				return err
			}
			return process(frame)
		}
		return scanner.ScanChunks(ctx, cols, size, process)
	})
	if err != nil {
		exp.Abort()
		return nil, err
	}
	res.Top = agg.Top()

	err = timer.Phase(engines.PhaseExport, exp.Close)
	if err != nil {
		return nil, err
	}
	res.ExportedRows = exp.Rows()
	res.Timings = timer.Timings()
	return res, nil
}
