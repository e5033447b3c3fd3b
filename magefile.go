//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default target to run when none is specified
var Default = Build

// Build compiles the tabbench binary into the bin/ directory.
func Build() error {
	fmt.Println("Building...")
	return sh.Run("go", "build", "-o", "./bin/tabbench", "./cmd/tabbench")
}

// Install copies the tabbench binary to /usr/local/bin.
func Install() error {
	mg.Deps(Build)
	fmt.Println("Installing...")
	return sh.Run("cp", "bin/tabbench", "/usr/local/bin/tabbench")
}

// Test runs all tests in the project with verbose output.
func Test() error {
	fmt.Println("Running Tests...")
	return sh.Run("go", "test", "-v", "./...")
}

// TestEngines runs the cross-engine equivalence tests only.
func TestEngines() error {
	fmt.Println("Running Engine Tests...")
	return sh.Run("go", "test", "-timeout", "120s", "./engines/...")
}

// TestPostgres runs the ingest tests against the database named by
// TABBENCH_POSTGRES_DSN.
func TestPostgres() error {
	if os.Getenv("TABBENCH_POSTGRES_DSN") == "" {
		return fmt.Errorf("TABBENCH_POSTGRES_DSN is not set")
	}
	fmt.Println("Running Postgres Tests...")
	return sh.Run("go", "test", "-v", "-run", "Postgres", "./ingest/")
}

// Bench generates a small dataset and runs every engine mode over it.
func Bench() error {
	mg.Deps(Build)
	steps := [][]string{
		{"generate", "-t", "csv"},
		{"generate", "-t", "json"},
		{"convert", "-from", "csv", "-to", "parquet"},
		{"process", "-t", "csv", "-e", "streaming", "-report", "data/streaming.xlsx", "-metrics", "data/streaming.prom"},
		{"process", "-t", "json", "-e", "gpu"},
		{"process", "-t", "csv", "-e", "sql"},
	}
	for _, args := range steps {
		if err := sh.RunV("./bin/tabbench", args...); err != nil {
			return err
		}
	}
	return nil
}

// Clean removes the bin directory and generated data.
func Clean() error {
	fmt.Println("Cleaning...")
	if err := os.RemoveAll("bin"); err != nil {
		return err
	}
	if err := os.RemoveAll("data"); err != nil {
		return err
	}
	return nil
}

// Tidy runs go mod tidy.
func Tidy() error {
	fmt.Println("Running go mod tidy...")
	return sh.Run("go", "mod", "tidy")
}

// Check runs formatting and linting checks (fmt, vet).
func Check() error {
	mg.Deps(Fmt, Vet)
	return nil
}

// Fmt runs go fmt ./...
func Fmt() error {
	fmt.Println("Running go fmt...")
	return sh.Run("go", "fmt", "./...")
}

// Vet runs go vet ./...
func Vet() error {
	fmt.Println("Running go vet...")
	return sh.Run("go", "vet", "./...")
}
