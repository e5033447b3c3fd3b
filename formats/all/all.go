// Package all registers every built-in format driver.
package all

import (
	_ "github.com/darianmavgo/tabbench/formats/csv"
	_ "github.com/darianmavgo/tabbench/formats/json"
	_ "github.com/darianmavgo/tabbench/formats/parquet"
)
