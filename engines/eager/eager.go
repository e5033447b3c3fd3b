// Package eager registers the eager engine: the whole dataset is read into a
// frame first and every query runs on that frame.
package eager

import (
	"context"

	"github.com/darianmavgo/tabbench/dataset"
	"github.com/darianmavgo/tabbench/engines"
	"github.com/darianmavgo/tabbench/tabular"
)

func init() {
	engines.Register(&Engine{})
}

// Engine is the eager variant. Its export is JSON.
type Engine struct{}

func (e *Engine) Name() string { return engines.Eager }

func (e *Engine) Run(ctx context.Context, in engines.Input) (*engines.Result, error) {
	timer := engines.NewTimer(e.Name(), in.Verbose)
	res := &engines.Result{Engine: e.Name(), Status: engines.StatusOK}

	var frame *tabular.Frame
	err := timer.Phase(engines.PhaseLoad, func() (err error) {
		frame, err = dataset.Read(ctx, in.Location, &dataset.Options{Verbose: in.Verbose})
		return err
	})
	if err != nil {
		return nil, err
	}

	timer.Phase(engines.PhaseCount, func() error {
		res.RowCount = int64(frame.Len())
		return nil
	})
	timer.Phase(engines.PhaseSchema, func() error {
		res.Schema = frame.Schema()
		return nil
	})

	err = timer.Phase(engines.PhaseAggregate, func() (err error) {
		res.Top, err = engines.AggregateSource(ctx, frame)
		return err
	})
	if err != nil {
		return nil, err
	}

	res.ExportedFile = engines.ExportPath(in.OutputDir, e.Name(), in.Location.FileType, tabular.JSON)
	err = timer.Phase(engines.PhaseExport, func() (err error) {
		res.ExportedRows, err = engines.ExportSource(ctx, frame, res.ExportedFile, tabular.JSON)
		return err
	})
	if err != nil {
		return nil, err
	}

	res.Timings = timer.Timings()
	return res, nil
}
