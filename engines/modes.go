package engines

import (
	"fmt"
	"strings"

	"github.com/darianmavgo/tabbench/tabular"
)

// Variant names.
const (
	Eager         = "eager"
	Lazy          = "lazy"
	LazyStreaming = "lazy-streaming"
	Sink          = "sink"
	GPU           = "gpu"
	GPUStreaming  = "gpu-streaming"
	SQL           = "sql"
)

// Modes selectable from the command line.
const (
	ModeBasic     = "basic"
	ModeStreaming = "streaming"
	ModeGPU       = "gpu"
	ModeSQL       = "sql"
)

var modes = map[string][]string{
	ModeBasic:     {Eager},
	ModeStreaming: {Eager, Lazy, LazyStreaming, Sink},
	ModeGPU:       {Lazy, GPU, GPUStreaming}, // lazy is the cpu baseline
	ModeSQL:       {SQL},
}

var aliases = map[string]string{
	"polars-basic":     ModeBasic,
	"polars-streaming": ModeStreaming,
	"polars-gpu":       ModeGPU,
	"duckdb":           ModeSQL,
}

// Modes returns the canonical mode names.
func Modes() []string {
	return []string{ModeBasic, ModeStreaming, ModeGPU, ModeSQL}
}

// ParseMode normalizes a mode name or alias.
func ParseMode(s string) (string, error) {
	m := strings.ToLower(strings.TrimSpace(s))
	if a, ok := aliases[m]; ok {
		m = a
	}
	if _, ok := modes[m]; !ok {
		return "", fmt.Errorf("%w: %q (choose %s)", tabular.ErrUnsupportedEngine, s, strings.Join(Modes(), ", "))
	}
	return m, nil
}

// VariantNames returns the variants a mode runs, in run order.
func VariantNames(mode string) ([]string, error) {
	m, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), modes[m]...), nil
}

// Resolve returns the registered engines of a mode, in run order.
func Resolve(mode string) ([]Engine, error) {
	names, err := VariantNames(mode)
	if err != nil {
		return nil, err
	}
	out := make([]Engine, len(names))
	for i, n := range names {
		if out[i], err = Lookup(n); err != nil {
			return nil, err
		}
	}
	return out, nil
}
