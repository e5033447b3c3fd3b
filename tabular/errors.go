package tabular

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by tabbench packages matches at most one
// of these through errors.Is.
var (
	ErrUnsupportedFileType   = errors.New("unsupported file type")
	ErrUnsupportedEngine     = errors.New("unsupported engine")
	ErrInput                 = errors.New("input error")
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	ErrEngineExecution       = errors.New("engine execution error")
	ErrIngest                = errors.New("ingest error")
)

// InputError reports malformed or missing data.
type InputError struct {
	Path string // file involved, if any
	Op   string
	Err  error
}

func (e *InputError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("input error: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("input error: %s: %v", e.Op, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

func (e *InputError) Is(target error) bool { return target == ErrInput }

// NewInputError builds an InputError from a format string.
func NewInputError(path, op, format string, args ...any) error {
	return &InputError{Path: path, Op: op, Err: fmt.Errorf(format, args...)}
}
