package main

import (
	"os"

	"github.com/vmdriver/vmdriver/cmd/vmdriver/cmds"
	"github.com/vmdriver/vmdriver/pkg/version"
)

// Build is the git sha of this binaries build.
var Build string

func main() {
	if Build != "" {
		version.VmdriverVersion.Build = Build
	}
	if err := cmds.New().Execute(); err != nil {
		os.Exit(1)
	}
}
