package helphelpers

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Prepare prepares cmd flag set for the invocation of its usage function by
// hiding flags that we want cobra to parse but we don't want to show to the
// user.
// We do this because the flags of the run command are defined on the root
// command, so that
//
//	vmdriver --backend sim script.txt
//
// works without naming the run subcommand, but they do not apply to the
// other subcommands.
//
// Prepare is a destructive command, cmd can not be reused after it has been
// called.
func Prepare(cmd *cobra.Command) {
	switch cmd.Name() {
	case "help", "version", "backend", "log":
		hideAllFlags(cmd)
	case "map":
		for _, name := range runFlags {
			hideFlag(cmd, name)
		}
		hideFlag(cmd, "config")
	case "config":
		hideFlag(cmd, "log")
		hideFlag(cmd, "log-output")
		hideFlag(cmd, "log-dest")
	}
}

var runFlags = []string{
	"backend",
	"viewer",
	"viewer-delay",
	"keep-alive",
	"stats",
	"metrics-addr",
	"page-size",
	"reserve-unit",
}

func hideAllFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().VisitAll(func(flag *pflag.Flag) {
		flag.Hidden = true
	})
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		flag.Hidden = true
	})
	cmd.InheritedFlags().VisitAll(func(flag *pflag.Flag) {
		flag.Hidden = true
	})
}

func hideFlag(cmd *cobra.Command, name string) {
	if cmd == nil {
		return
	}
	flag := cmd.Flags().Lookup(name)
	if flag == nil {
		flag = cmd.PersistentFlags().Lookup(name)
	}
	if flag != nil {
		flag.Hidden = true
		return
	}
	hideFlag(cmd.Parent(), name)
}
