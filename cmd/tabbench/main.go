// Command tabbench generates synthetic people datasets, converts and ingests
// them, and benchmarks dataframe and SQL engines over the same workload.
//
// Usage:
//
//	tabbench [-config file.hcl] [-data dir] [-v] [-timeout d] <command> [flags]
//
// Commands:
//
//	generate -t csv|json -n 100 -r 100
//	convert  -from csv -to parquet
//	ingest   -t csv|json -e sqlite -table my_table [-uri URI]
//	process  -t csv|json -e basic|streaming|gpu|sql [-report file.xlsx] [-metrics file.prom]
//	config   -write file.hcl
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/darianmavgo/tabbench/config"
	_ "github.com/darianmavgo/tabbench/engines/all"
)

// env is the state shared by every command of one invocation.
type env struct {
	cfg    *config.Config
	stdout io.Writer
	start  time.Time
}

type command struct {
	usage string
	run   func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"generate": {"-t csv|json -n 100 -r 100", runGenerate},
	"convert":  {"-from csv -to parquet", runConvert},
	"ingest":   {"-t csv|json -e sqlite -table my_table [-uri URI]", runIngest},
	"process":  {"-t csv|json -e basic|streaming|gpu|sql [-report file.xlsx] [-metrics file.prom]", runProcess},
	"config":   {"-write file.hcl", runConfig},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  tabbench [-config file.hcl] [-data dir] [-v] [-timeout d] <command> [flags]")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  tabbench %-8s %s\n", name, commands[name].usage)
	}
}

// run executes one invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	start := time.Now()

	fs := flag.NewFlagSet("tabbench", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { usage(stderr) }
	configPath := fs.String("config", "", "HCL configuration file")
	dataDir := fs.String("data", "", "data directory (overrides data_dir)")
	verbose := fs.Bool("v", false, "verbose logging")
	timeout := fs.Duration("timeout", 0, "abort the command after this long (0 disables)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return fail(stderr, start, err)
		}
		cfg = loaded
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *verbose {
		cfg.Verbose = true
	}

	if fs.NArg() < 1 {
		usage(stderr)
		return 1
	}
	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "Error: unknown command %q\n", name)
		usage(stderr)
		return 1
	}

	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	e := &env{cfg: cfg, stdout: stdout, start: start}
	if err := cmd.run(ctx, e, fs.Args()[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(stderr, "Usage: tabbench %s %s\n", name, cmd.usage)
			return 0
		}
		return fail(stderr, start, err)
	}
	fmt.Fprintf(stdout, "Done in %s\n", elapsed(start))
	return 0
}

func fail(stderr io.Writer, start time.Time, err error) int {
	fmt.Fprintf(stderr, "Error: %v (after %s)\n", err, elapsed(start))
	return 1
}

func elapsed(start time.Time) string {
	return time.Since(start).Round(time.Millisecond).String()
}

// newFlags returns a silent subcommand flag set; parse errors are reported
// by run.
func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%s: %w", fs.Name(), err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%s: unexpected arguments: %s", fs.Name(), strings.Join(fs.Args(), " "))
	}
	return nil
}
