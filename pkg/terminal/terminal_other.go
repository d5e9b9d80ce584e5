//go:build !windows

package terminal

import (
	"io"
	"os"
)

// getColorableWriter returns stdout, terminals interpret ANSI escape codes
// natively.
func getColorableWriter() io.Writer {
	return os.Stdout
}

