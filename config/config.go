package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// Config represents the application configuration.
type Config struct {
	DataDir     string `hcl:"data_dir,optional"`
	BatchSize   int    `hcl:"batch_size,optional"`
	ChunkSize   int    `hcl:"chunk_size,optional"`
	NumFiles    int    `hcl:"num_files,optional"`
	RowsPerFile int    `hcl:"rows_per_file,optional"`
	TableName   string `hcl:"table_name,optional"`
	Verbose     bool   `hcl:"verbose,optional"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DataDir:     "data",
		BatchSize:   1000,
		ChunkSize:   10000,
		NumFiles:    100,
		RowsPerFile: 100,
		TableName:   "my_table",
	}
}

// Validate rejects values no command can run with.
func (c *Config) Validate() error {
	switch {
	case c.DataDir == "":
		return fmt.Errorf("data_dir must not be empty")
	case c.BatchSize <= 0:
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	case c.ChunkSize <= 0:
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	case c.NumFiles < 0:
		return fmt.Errorf("num_files must not be negative, got %d", c.NumFiles)
	case c.RowsPerFile < 0:
		return fmt.Errorf("rows_per_file must not be negative, got %d", c.RowsPerFile)
	case c.TableName == "":
		return fmt.Errorf("table_name must not be empty")
	}
	return nil
}

// Load reads the configuration from the given HCL file. Keys missing from the
// file keep their defaults.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(content, path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file: %s", diags.Error())
	}

	cfg := DefaultConfig()
	diags = gohcl.DecodeBody(file.Body, nil, cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config: %s", diags.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Export writes the configuration to the specified file in HCL format.
func Export(path string, cfg *Config) error {
	f := hclwrite.NewEmptyFile()
	root := f.Body()

	root.SetAttributeValue("data_dir", cty.StringVal(cfg.DataDir))
	root.SetAttributeValue("batch_size", cty.NumberIntVal(int64(cfg.BatchSize)))
	root.SetAttributeValue("chunk_size", cty.NumberIntVal(int64(cfg.ChunkSize)))
	root.SetAttributeValue("num_files", cty.NumberIntVal(int64(cfg.NumFiles)))
	root.SetAttributeValue("rows_per_file", cty.NumberIntVal(int64(cfg.RowsPerFile)))
	root.SetAttributeValue("table_name", cty.StringVal(cfg.TableName))
	root.SetAttributeValue("verbose", cty.BoolVal(cfg.Verbose))

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	_, err = file.Write(f.Bytes())
	if err != nil {
		return fmt.Errorf("failed to write config to file: %w", err)
	}

	return nil
}
