package engines

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/darianmavgo/tabbench/tabular"
)

// Phase names shared by the variants.
const (
	PhaseLoad      = "load"
	PhaseSnapshot  = "snapshot"
	PhaseCount     = "count"
	PhaseSchema    = "schema"
	PhaseAggregate = "aggregate"
	PhaseExport    = "export"
)

// Timing is the wall time of one phase.
type Timing struct {
	Phase   string
	Elapsed time.Duration
}

// ExecutionError is an engine fault. It carries the timings collected before
// the failing phase.
type ExecutionError struct {
	Engine  string
	Phase   string
	Timings []Timing
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("engine %s failed during %s: %v", e.Engine, e.Phase, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func (e *ExecutionError) Is(target error) bool { return target == tabular.ErrEngineExecution }

// Timer runs and times the phases of one engine run.
type Timer struct {
	engine  string
	verbose bool
	timings []Timing
}

// NewTimer starts the phase log of an engine run.
func NewTimer(engine string, verbose bool) *Timer {
	return &Timer{engine: engine, verbose: verbose}
}

// Phase runs fn and records its elapsed time. Input errors, missing
// capabilities and cancellation come back unchanged; any other failure is
// wrapped in an ExecutionError.
func (t *Timer) Phase(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	if err != nil {
		if passThrough(err) {
			return err
		}
		return &ExecutionError{Engine: t.engine, Phase: name, Timings: t.Timings(), Err: err}
	}
	t.timings = append(t.timings, Timing{Phase: name, Elapsed: elapsed})
	if t.verbose {
		log.Printf("[TABBENCH] %s %s: %v", t.engine, name, elapsed)
	}
	return nil
}

func passThrough(err error) bool {
	return errors.Is(err, tabular.ErrInput) ||
		errors.Is(err, tabular.ErrCapabilityUnavailable) ||
		errors.Is(err, tabular.ErrEngineExecution) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Timings returns a copy of the recorded timings.
func (t *Timer) Timings() []Timing {
	return append([]Timing(nil), t.timings...)
}
