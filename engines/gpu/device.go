package gpu

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/darianmavgo/tabbench/engines"
	"github.com/darianmavgo/tabbench/tabular"
)

// Device is an accelerator backend able to run the workload kernels on a
// frame that has been moved onto it.
type Device interface {
	Name() string

	// Check reports whether the device can be used right now.
	Check(ctx context.Context) error

	// Aggregate folds chunk into agg.
	Aggregate(ctx context.Context, b *engines.AggregateBinding, chunk *tabular.Frame, agg *engines.Aggregator) error

	// Filter returns the rows of chunk selected by b, projected to b.Schema().
	Filter(ctx context.Context, b *engines.ExportBinding, chunk *tabular.Frame) (*tabular.Frame, error)
}

// ErrNoDevice is reported when no accelerator is registered.
var ErrNoDevice = errors.New("no accelerator device registered")

var (
	devicesMu sync.RWMutex
	devices   = make(map[string]Device)
)

// RegisterDevice makes an accelerator available to the gpu engines.
// If RegisterDevice is called twice with the same name or if d is nil, it panics.
func RegisterDevice(d Device) {
	devicesMu.Lock()
	defer devicesMu.Unlock()
	if d == nil {
		panic("gpu: RegisterDevice device is nil")
	}
	if _, dup := devices[d.Name()]; dup {
		panic("gpu: RegisterDevice called twice for device " + d.Name())
	}
	devices[d.Name()] = d
}

// Devices returns the registered devices sorted by name.
func Devices() []Device {
	devicesMu.RLock()
	defer devicesMu.RUnlock()
	list := make([]Device, 0, len(devices))
	for _, d := range devices {
		list = append(list, d)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// pick returns the first device whose Check succeeds.
func pick(ctx context.Context, candidates []Device) (Device, error) {
	if len(candidates) == 0 {
		return nil, ErrNoDevice
	}
	var errs []error
	for _, d := range candidates {
		err := d.Check(ctx)
		if err == nil {
			return d, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
	}
	return nil, errors.Join(errs...)
}
