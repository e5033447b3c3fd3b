package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/darianmavgo/tabbench/config"
	"github.com/darianmavgo/tabbench/converter"
	"github.com/darianmavgo/tabbench/dataset"
	"github.com/darianmavgo/tabbench/engines"
	"github.com/darianmavgo/tabbench/generator"
	"github.com/darianmavgo/tabbench/ingest"
	"github.com/darianmavgo/tabbench/metrics"
	"github.com/darianmavgo/tabbench/report"
	"github.com/darianmavgo/tabbench/store"
	"github.com/darianmavgo/tabbench/tabular"
)

// DatabaseFile is the default sqlite database under the data directory.
const DatabaseFile = "example.db"

func runGenerate(ctx context.Context, e *env, args []string) error {
	fs := newFlags("generate")
	fileType := fs.String("t", "csv", "file type (csv or json)")
	numFiles := fs.Int("n", e.cfg.NumFiles, "number of files")
	rows := fs.Int("r", e.cfg.RowsPerFile, "rows per file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ft, err := tabular.ParseSourceType(*fileType)
	if err != nil {
		return err
	}
	loc, err := store.ResolveLocation(e.cfg.DataDir, ft)
	if err != nil {
		return err
	}
	if *numFiles < 0 || *rows < 0 {
		return fmt.Errorf("generate: -n and -r must not be negative")
	}
	if err := store.EnsureLayout(e.cfg.DataDir); err != nil {
		return err
	}

	rep, err := generator.Generate(ctx, generator.Options{
		Dir:         loc.Dir,
		FileType:    ft,
		NumFiles:    *numFiles,
		RowsPerFile: *rows,
		Verbose:     e.cfg.Verbose,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Generated %d %s files in %s (%d already present)\n", len(rep.Generated), ft, loc.Dir, len(rep.Skipped))
	return nil
}

func runConvert(ctx context.Context, e *env, args []string) error {
	fs := newFlags("convert")
	from := fs.String("from", "csv", "source file type (csv or json)")
	to := fs.String("to", "parquet", "target file type")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	src, err := tabular.ParseSourceType(*from)
	if err != nil {
		return err
	}
	target, err := tabular.ParseFileType(*to)
	if err != nil {
		return err
	}
	if src == target {
		return fmt.Errorf("convert: source and target are both %s", src)
	}
	loc, err := store.ResolveLocation(e.cfg.DataDir, src)
	if err != nil {
		return err
	}
	targetDir, err := store.TargetDir(e.cfg.DataDir, target)
	if err != nil {
		return err
	}
	if err := store.EnsureLayout(e.cfg.DataDir); err != nil {
		return err
	}

	rep, err := converter.ConvertDelta(ctx, loc, targetDir, target, &converter.Options{Verbose: e.cfg.Verbose})
	if err != nil {
		return err
	}
	if rep.Status == converter.StatusNoOp {
		fmt.Fprintf(e.stdout, "Nothing to convert: all %d %s files already have a %s counterpart in %s\n", len(rep.Skipped), src, target, targetDir)
		return nil
	}
	fmt.Fprintf(e.stdout, "Converted %d %s files to %s in %s (%d skipped)\n", rep.ConvertedCount(), src, target, targetDir, len(rep.Skipped))
	return nil
}

func runIngest(ctx context.Context, e *env, args []string) error {
	fs := newFlags("ingest")
	fileType := fs.String("t", "csv", "file type (csv or json)")
	engine := fs.String("e", "sqlite", "database engine ("+strings.Join(ingest.Stores(), ", ")+")")
	table := fs.String("table", e.cfg.TableName, "destination table")
	uri := fs.String("uri", "", "database URI (default sqlite:///<data>/"+DatabaseFile+")")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ft, err := tabular.ParseSourceType(*fileType)
	if err != nil {
		return err
	}
	loc, err := store.ResolveLocation(e.cfg.DataDir, ft)
	if err != nil {
		return err
	}
	dsn := *uri
	if dsn == "" {
		if !strings.EqualFold(*engine, "sqlite") {
			return fmt.Errorf("%w: %q without -uri (only sqlite has a default database)", tabular.ErrUnsupportedEngine, *engine)
		}
		dsn = "sqlite:///" + filepath.Join(e.cfg.DataDir, DatabaseFile)
	}
	target, err := ingest.ParseTarget(dsn, *table)
	if err != nil {
		return err
	}
	if !strings.EqualFold(target.Engine, *engine) {
		return fmt.Errorf("%w: -e %s does not match URI %s", tabular.ErrUnsupportedEngine, *engine, dsn)
	}
	if err := store.EnsureLayout(e.cfg.DataDir); err != nil {
		return err
	}

	scanner, err := dataset.Open(loc, &dataset.Options{Verbose: e.cfg.Verbose})
	if err != nil {
		return err
	}
	n, err := ingest.Ingest(ctx, scanner, target, &ingest.Options{BatchSize: e.cfg.BatchSize, Verbose: e.cfg.Verbose})
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Ingested %d rows from %d files into %s table %s\n", n, len(scanner.Files()), target.Engine, target.Table)
	return nil
}

func runProcess(ctx context.Context, e *env, args []string) error {
	fs := newFlags("process")
	fileType := fs.String("t", "csv", "file type (csv or json)")
	mode := fs.String("e", engines.ModeBasic, "engine mode ("+strings.Join(engines.Modes(), ", ")+")")
	reportPath := fs.String("report", "", "write an XLSX comparison workbook")
	metricsPath := fs.String("metrics", "", "write Prometheus text metrics")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ft, err := tabular.ParseSourceType(*fileType)
	if err != nil {
		return err
	}
	m, err := engines.ParseMode(*mode)
	if err != nil {
		return err
	}
	loc, err := store.ResolveLocation(e.cfg.DataDir, ft)
	if err != nil {
		return err
	}
	runs, err := engines.Resolve(m)
	if err != nil {
		return err
	}
	rec, err := metrics.New()
	if err != nil {
		return err
	}
	if err := store.EnsureLayout(e.cfg.DataDir); err != nil {
		return err
	}

	in := engines.Input{
		Location:  loc,
		OutputDir: e.cfg.DataDir,
		ChunkSize: e.cfg.ChunkSize,
		BatchSize: e.cfg.BatchSize,
		Verbose:   e.cfg.Verbose,
	}
	results := make([]*engines.Result, 0, len(runs))
	for _, eng := range runs {
		res, err := eng.Run(ctx, in)
		if err != nil {
			return err
		}
		rec.ObserveResult(res)
		printResult(e, res)
		results = append(results, res)
	}

	baseline := ""
	switch m {
	case engines.ModeStreaming:
		baseline = engines.Eager
	case engines.ModeGPU:
		baseline = engines.Lazy
	}
	if baseline != "" {
		printSpeedups(e, baseline, results)
	}

	if *reportPath != "" {
		run := report.Run{Mode: m, FileType: string(ft), Baseline: baseline}
		if err := report.Write(*reportPath, run, results); err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "Report written to %s\n", *reportPath)
	}
	if *metricsPath != "" {
		if err := rec.WriteTextfile(*metricsPath); err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "Metrics written to %s\n", *metricsPath)
	}
	return nil
}

func printResult(e *env, res *engines.Result) {
	if res.Status == engines.StatusUnavailable {
		fmt.Fprintf(e.stdout, "[%s] unavailable: %v\n", res.Engine, res.Unavailable)
		return
	}
	fmt.Fprintf(e.stdout, "[%s] %d rows, schema %s, %s\n", res.Engine, res.RowCount, res.Schema, res.Total().Round(time.Microsecond))
	for _, t := range res.Timings {
		fmt.Fprintf(e.stdout, "  %-9s %s\n", t.Phase, t.Elapsed.Round(time.Microsecond))
	}
	fmt.Fprintf(e.stdout, "  %-20s %8s %8s %6s\n", "name", "avg_age", "max_age", "count")
	for _, g := range res.Top {
		fmt.Fprintf(e.stdout, "  %-20s %8.2f %8.0f %6d\n", g.Name, g.AvgAge, g.MaxAge, g.Count)
	}
	fmt.Fprintf(e.stdout, "  exported %d rows to %s\n", res.ExportedRows, res.ExportedFile)
}

func printSpeedups(e *env, baseline string, results []*engines.Result) {
	var base *engines.Result
	for _, r := range results {
		if r.Engine == baseline {
			base = r
		}
	}
	for _, r := range results {
		if r == base {
			continue
		}
		if s, ok := report.Speedup(base, r); ok {
			fmt.Fprintf(e.stdout, "%s speedup over %s: %.2fx\n", r.Engine, baseline, s)
		} else {
			fmt.Fprintf(e.stdout, "%s speedup over %s: n/a\n", r.Engine, baseline)
		}
	}
}

func runConfig(_ context.Context, e *env, args []string) error {
	fs := newFlags("config")
	path := fs.String("write", "", "write the effective configuration to this file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("config: -write is required")
	}
	if err := e.cfg.Validate(); err != nil {
		return err
	}
	if err := config.Export(*path, e.cfg); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Configuration written to %s\n", *path)
	return nil
}
