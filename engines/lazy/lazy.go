// Package lazy registers the plan-based engines.
//
// All three build the same aggregate and export plans against a lazy
// dataset.Scanner. They differ in how the plans are executed:
//
//   - lazy collects the projection the plans need once and evaluates it;
//   - lazy-streaming evaluates the plans chunk by chunk and merges the
//     partial aggregates, writing the export as CSV one chunk at a time;
//   - sink evaluates the plans the same way but streams matching rows
//     straight into a parquet file without gathering them.
package lazy

import (
	"context"

	"github.com/darianmavgo/tabbench/dataset"
	"github.com/darianmavgo/tabbench/engines"
	"github.com/darianmavgo/tabbench/tabular"
)

// DefaultChunkSize is used when the input does not set one.
const DefaultChunkSize = 10000

func init() {
	engines.Register(&Engine{})
	engines.Register(&StreamingEngine{})
	engines.Register(&SinkEngine{})
}

func openScanner(in engines.Input, timer *engines.Timer) (*dataset.Scanner, error) {
	var s *dataset.Scanner
	err := timer.Phase(engines.PhaseLoad, func() (err error) {
		s, err = dataset.Open(in.Location, &dataset.Options{Verbose: in.Verbose})
		return err
	})
	return s, err
}

func chunkSize(in engines.Input) int {
	if in.ChunkSize > 0 {
		return in.ChunkSize
	}
	return DefaultChunkSize
}

// Engine is the lazy collect variant. Its export is JSON.
type Engine struct{}

func (e *Engine) Name() string { return engines.Lazy }

func (e *Engine) Run(ctx context.Context, in engines.Input) (*engines.Result, error) {
	timer := engines.NewTimer(e.Name(), in.Verbose)
	res := &engines.Result{Engine: e.Name(), Status: engines.StatusOK}

	scanner, err := openScanner(in, timer)
	if err != nil {
		return nil, err
	}
	res.Schema = scanner.Schema()

	var pruned *tabular.Frame
	err = timer.Phase(engines.PhaseCount, func() error {
		cols, err := engines.RequiredColumns(scanner.Schema(), engines.AggregatePlan, engines.ExportPlan)
		if err != nil {
			return err
		}
		if pruned, err = scanner.Collect(ctx, cols); err != nil {
			return err
		}
		res.RowCount = int64(pruned.Len())
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = timer.Phase(engines.PhaseAggregate, func() (err error) {
		res.Top, err = engines.AggregateSource(ctx, pruned)
		return err
	})
	if err != nil {
		return nil, err
	}

	res.ExportedFile = engines.ExportPath(in.OutputDir, e.Name(), in.Location.FileType, tabular.JSON)
	err = timer.Phase(engines.PhaseExport, func() (err error) {
		res.ExportedRows, err = engines.ExportSource(ctx, pruned, res.ExportedFile, tabular.JSON)
		return err
	})
	if err != nil {
		return nil, err
	}

	res.Timings = timer.Timings()
	return res, nil
}

// streamCount counts rows without reading any column values into a chunk.
func streamCount(ctx context.Context, s *dataset.Scanner) (int64, error) {
	var n int64
	err := s.Scan(ctx, []string{}, func(tabular.Row) error {
		n++
		return nil
	})
	return n, err
}

// streamAggregate merges per-chunk partial aggregates.
func streamAggregate(ctx context.Context, s *dataset.Scanner, size int) ([]engines.GroupStat, error) {
	cols := engines.AggregatePlan.Columns
	schema, err := s.ProjectSchema(cols)
	if err != nil {
		return nil, err
	}
	b, err := engines.BindAggregate(schema)
	if err != nil {
		return nil, err
	}
	total := engines.NewAggregator()
	err = s.ScanChunks(ctx, cols, size, func(chunk *tabular.Frame) error {
		part := engines.NewAggregator()
		if err := b.AddFrame(part, chunk); err != nil {
			return err
		}
		total.Merge(part)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return total.Top(), nil
}

// StreamingEngine is the lazy streaming variant. Its export is CSV.
type StreamingEngine struct{}

func (e *StreamingEngine) Name() string { return engines.LazyStreaming }

func (e *StreamingEngine) Run(ctx context.Context, in engines.Input) (*engines.Result, error) {
	return runStreaming(ctx, e.Name(), in, tabular.CSV, func(s *dataset.Scanner, exp *engines.Exporter) error {
		cols := engines.ExportPlan.Columns
		schema, err := s.ProjectSchema(cols)
		if err != nil {
			return err
		}
		b, err := engines.BindExport(schema)
		if err != nil {
			return err
		}
		return s.ScanChunks(ctx, cols, chunkSize(in), func(chunk *tabular.Frame) error {
			matched, err := b.Filter(chunk)
			if err != nil {
				return err
			}
			return exp.WriteFiltered(matched)
		})
	})
}

// SinkEngine is the streaming sink variant. Its export is parquet.
type SinkEngine struct{}

func (e *SinkEngine) Name() string { return engines.Sink }

func (e *SinkEngine) Run(ctx context.Context, in engines.Input) (*engines.Result, error) {
	return runStreaming(ctx, e.Name(), in, tabular.Parquet, func(s *dataset.Scanner, exp *engines.Exporter) error {
		return s.Scan(ctx, engines.ExportPlan.Columns, exp.Offer)
	})
}

func runStreaming(ctx context.Context, name string, in engines.Input, format tabular.FileType,
	export func(*dataset.Scanner, *engines.Exporter) error) (*engines.Result, error) {
	timer := engines.NewTimer(name, in.Verbose)
	res := &engines.Result{Engine: name, Status: engines.StatusOK}

	scanner, err := openScanner(in, timer)
	if err != nil {
		return nil, err
	}

	err = timer.Phase(engines.PhaseCount, func() (err error) {
		res.RowCount, err = streamCount(ctx, scanner)
		return err
	})
	if err != nil {
		return nil, err
	}
	timer.Phase(engines.PhaseSchema, func() error {
		res.Schema = scanner.Schema()
		return nil
	})

	err = timer.Phase(engines.PhaseAggregate, func() (err error) {
		res.Top, err = streamAggregate(ctx, scanner, chunkSize(in))
		return err
	})
	if err != nil {
		return nil, err
	}

	res.ExportedFile = engines.ExportPath(in.OutputDir, name, in.Location.FileType, format)
	err = timer.Phase(engines.PhaseExport, func() error {
		schema, err := scanner.ProjectSchema(engines.ExportPlan.Columns)
		if err != nil {
			return err
		}
		exp, err := engines.NewExporter(res.ExportedFile, format, schema)
		if err != nil {
			return err
		}
		if err := export(scanner, exp); err != nil {
			exp.Abort()
			return err
		}
		if err := exp.Close(); err != nil {
			return err
		}
		res.ExportedRows = exp.Rows()
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Timings = timer.Timings()
	return res, nil
}
