// Package all registers every built-in engine variant and format driver.
package all

import (
	_ "github.com/darianmavgo/tabbench/engines/eager"
	_ "github.com/darianmavgo/tabbench/engines/gpu"
	_ "github.com/darianmavgo/tabbench/engines/lazy"
	_ "github.com/darianmavgo/tabbench/engines/sqlengine"
	_ "github.com/darianmavgo/tabbench/formats/all"
)
