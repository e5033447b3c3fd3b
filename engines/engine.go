// Package engines defines the execution engine contract, the registry the
// variants register into and the canonical workload every variant runs.
//
// Variants live in sub-packages (eager, lazy, gpu, sqlengine) and register
// themselves from init; import engines/all to get every variant.
package engines

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/darianmavgo/tabbench/store"
	"github.com/darianmavgo/tabbench/tabular"
)

// Status is the outcome kind of an engine run.
type Status string

const (
	StatusOK          Status = "ok"
	StatusUnavailable Status = "unavailable"
)

// Engine runs the canonical workload over a dataset.
type Engine interface {
	Name() string
	Run(ctx context.Context, in Input) (*Result, error)
}

// Input is what every engine run gets.
type Input struct {
	Location  store.Location
	OutputDir string
	ChunkSize int // rows per chunk for the chunked variants
	BatchSize int // rows per commit when an engine loads a database
	Verbose   bool
}

// GroupStat is one row of the aggregate query.
type GroupStat struct {
	Name     string
	NullName bool // the group of rows whose name is null; Name is ""
	AvgAge   float64
	MaxAge   float64
	Count    int64
}

// Result is what an engine run produced.
type Result struct {
	Engine       string
	Status       Status
	Unavailable  error // set with StatusUnavailable, matches ErrCapabilityUnavailable
	RowCount     int64
	Schema       tabular.Schema
	Top          []GroupStat
	ExportedFile string
	ExportedRows int64
	Timings      []Timing
}

// Total sums the phase timings.
func (r *Result) Total() time.Duration {
	var d time.Duration
	for _, t := range r.Timings {
		d += t.Elapsed
	}
	return d
}

// Unavailable builds the result of an engine whose capability is missing.
func Unavailable(engine string, err error) *Result {
	return &Result{
		Engine:      engine,
		Status:      StatusUnavailable,
		Unavailable: fmt.Errorf("%w: %s: %w", tabular.ErrCapabilityUnavailable, engine, err),
	}
}

var (
	enginesMu sync.RWMutex
	registry  = make(map[string]Engine)
)

// Register makes an engine available by its name.
// If Register is called twice with the same name or if engine is nil, it panics.
func Register(engine Engine) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	if engine == nil {
		panic("engines: Register engine is nil")
	}
	name := engine.Name()
	if _, dup := registry[name]; dup {
		panic("engines: Register called twice for engine " + name)
	}
	registry[name] = engine
}

// Lookup returns the engine registered under name.
func Lookup(name string) (Engine, error) {
	enginesMu.RLock()
	e, ok := registry[name]
	enginesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q is not registered (forgotten import?)", tabular.ErrUnsupportedEngine, name)
	}
	return e, nil
}

// Engines returns a sorted list of the names of the registered engines.
func Engines() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	list := make([]string, 0, len(registry))
	for name := range registry {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}
