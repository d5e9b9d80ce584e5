package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

func init() {
	buildInfo = moduleBuildInfo
}

// moduleBuildInfo lists the main module and every dependency compiled into
// the binary, with replacements.
func moduleBuildInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "not built in module mode"
	}

	var b strings.Builder
	fmt.Fprintf(&b, " mod\t%s\t%s\n", info.Main.Path, info.Main.Version)
	for _, dep := range info.Deps {
		fmt.Fprintf(&b, " dep\t%s\t%s", dep.Path, dep.Version)
		if r := dep.Replace; r != nil {
			fmt.Fprintf(&b, "\t=> %s\t%s", r.Path, r.Version)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
