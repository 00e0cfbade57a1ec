//go:build tools

package tools

// Tool dependencies, pinned through go.mod but kept out of the build
// by the tools tag.
import (
	_ "github.com/vektra/mockery/v2"
)
