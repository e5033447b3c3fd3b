// Package ingest loads a table into a database, replacing any previous
// contents. Stores are selected from a target URI:
//
//	sqlite:///data/example.db      SQLite file data/example.db
//	postgres://user@host/db        Postgres through pgx
package ingest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/darianmavgo/tabbench/tabular"
)

// DefaultBatchSize is the number of rows per commit when Options leaves it unset.
const DefaultBatchSize = 1000

// Options configure a load.
type Options struct {
	BatchSize int
	Verbose   bool
}

func (o *Options) batchSize() int {
	if o == nil || o.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return o.BatchSize
}

func (o *Options) verbose() bool { return o != nil && o.Verbose }

// IngestError is a failed load. The previous table contents are untouched.
type IngestError struct {
	Table string
	Op    string
	Err   error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %s: %s: %v", e.Table, e.Op, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

func (e *IngestError) Is(target error) bool { return target == tabular.ErrIngest }

// Target is a parsed destination table.
type Target struct {
	Engine string // registered store name
	DSN    string // what the store opens
	Table  string
}

// ParseTarget parses a database URI. For sqlite the path follows the
// "sqlite:///" prefix; postgres URLs are passed to pgx unchanged.
func ParseTarget(uri, table string) (Target, error) {
	if strings.TrimSpace(table) == "" {
		return Target{}, tabular.NewInputError("", "parse target", "table name is required")
	}
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return Target{}, tabular.NewInputError("", "parse target", "%q is not a database URI", uri)
	}
	switch strings.ToLower(scheme) {
	case "sqlite", "sqlite3":
		path := strings.TrimPrefix(rest, "/")
		if path == "" {
			return Target{}, tabular.NewInputError("", "parse target", "%q has no database path", uri)
		}
		return Target{Engine: "sqlite", DSN: path, Table: table}, nil
	case "postgres", "postgresql":
		return Target{Engine: "postgres", DSN: uri, Table: table}, nil
	}
	return Target{}, fmt.Errorf("%w: database %q (choose %s)", tabular.ErrUnsupportedEngine, scheme, strings.Join(Stores(), ", "))
}

// Store replaces tables in one database.
type Store interface {
	// Replace makes table hold exactly the rows of src. Readers see either
	// the old or the new contents.
	Replace(ctx context.Context, table string, src tabular.RowSource, opts *Options) (int64, error)
	Close() error
}

// Opener connects to a store.
type Opener func(ctx context.Context, dsn string) (Store, error)

var (
	storesMu sync.RWMutex
	stores   = make(map[string]Opener)
)

// RegisterStore makes a store available by the provided engine name.
// If RegisterStore is called twice with the same name or if open is nil, it panics.
func RegisterStore(name string, open Opener) {
	storesMu.Lock()
	defer storesMu.Unlock()
	if open == nil {
		panic("ingest: RegisterStore opener is nil")
	}
	if _, dup := stores[name]; dup {
		panic("ingest: RegisterStore called twice for store " + name)
	}
	stores[name] = open
}

// Stores returns a sorted list of the registered store names.
func Stores() []string {
	storesMu.RLock()
	defer storesMu.RUnlock()
	list := make([]string, 0, len(stores))
	for name := range stores {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

// OpenStore connects to the store of target.
func OpenStore(ctx context.Context, target Target) (Store, error) {
	storesMu.RLock()
	open, ok := stores[target.Engine]
	storesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: database %q", tabular.ErrUnsupportedEngine, target.Engine)
	}
	s, err := open(ctx, target.DSN)
	if err != nil {
		return nil, &IngestError{Table: target.Table, Op: "connect", Err: err}
	}
	return s, nil
}

// Ingest replaces target's table with the rows of src.
func Ingest(ctx context.Context, src tabular.RowSource, target Target, opts *Options) (int64, error) {
	s, err := OpenStore(ctx, target)
	if err != nil {
		return 0, err
	}
	defer s.Close()
	return s.Replace(ctx, target.Table, src, opts)
}
