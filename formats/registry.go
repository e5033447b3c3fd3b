// Package formats is the registry of file format drivers. Each driver package
// (csv, json, parquet) registers itself from init; import formats/all to get
// every driver.
package formats

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/darianmavgo/tabbench/tabular"
)

// Config carries reader options. A nil Config selects the defaults.
type Config struct {
	Delimiter rune // CSV delimiter; zero means detect from the header line
	Path      string
}

// Driver reads and writes one file format.
type Driver interface {
	// Open returns a RowProvider that streams the rows of source.
	Open(source io.Reader, config *Config) (RowProvider, error)

	// NewWriter returns a RowWriter that encodes rows of schema into dest.
	NewWriter(dest io.Writer, schema tabular.Schema) (tabular.RowWriter, error)
}

// RowProvider streams rows from a single opened file.
// ScanRows may only be called once.
type RowProvider interface {
	tabular.RowSource
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[tabular.FileType]Driver)
)

// Register makes a format driver available by the provided file type.
// If Register is called twice with the same name or if driver is nil, it panics.
func Register(ft tabular.FileType, driver Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if driver == nil {
		panic("formats: Register driver is nil")
	}
	if _, dup := drivers[ft]; dup {
		panic("formats: Register called twice for driver " + string(ft))
	}
	drivers[ft] = driver
}

func lookup(ft tabular.FileType) (Driver, error) {
	driversMu.RLock()
	driver, ok := drivers[ft]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no driver for %q (forgotten import?)", tabular.ErrUnsupportedFileType, ft)
	}
	return driver, nil
}

// Open opens a reader for source using the driver registered for ft.
func Open(ft tabular.FileType, source io.Reader, config *Config) (RowProvider, error) {
	driver, err := lookup(ft)
	if err != nil {
		return nil, err
	}
	return driver.Open(source, config)
}

// NewWriter creates a writer for dest using the driver registered for ft.
func NewWriter(ft tabular.FileType, dest io.Writer, schema tabular.Schema) (tabular.RowWriter, error) {
	driver, err := lookup(ft)
	if err != nil {
		return nil, err
	}
	return driver.NewWriter(dest, schema)
}

// Drivers returns a sorted list of the names of the registered drivers.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	list := make([]string, 0, len(drivers))
	for name := range drivers {
		list = append(list, string(name))
	}
	sort.Strings(list)
	return list
}
