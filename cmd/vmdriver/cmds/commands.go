package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/spf13/cobra"

	"github.com/vmdriver/vmdriver/cmd/vmdriver/cmds/helphelpers"
	"github.com/vmdriver/vmdriver/pkg/config"
	"github.com/vmdriver/vmdriver/pkg/logflags"
	"github.com/vmdriver/vmdriver/pkg/terminal"
	"github.com/vmdriver/vmdriver/pkg/version"
	"github.com/vmdriver/vmdriver/pkg/viewer"
	"github.com/vmdriver/vmdriver/pkg/vm"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// configFile overrides the default configuration file.
	configFile string

	// backend selection
	backend string
	// viewerCmd is the command line of the visualization helper.
	viewerCmd   string
	viewerDelay time.Duration
	// keepAlive keeps the process running after the last command.
	keepAlive bool
	// stats prints the memory usage of the process after every command.
	stats bool
	// metricsAddr is the Prometheus endpoint listen address.
	metricsAddr string
	pageSize    int
	reserveUnit int

	mapInterval time.Duration
	mapOnce     bool
	mapAnon     bool

	configDefault bool

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command
)

const vmdriverCommandLongDesc = `vmdriver replays scripted virtual memory operations against its own
address space.

Each command is five whitespace separated fields read from the script file, or
from standard input if no file is given:

	<delay seconds> <op code> <address> <units> <access code>

The address is hexadecimal. Op codes:

	1 reserve	2 commit	3 touch	4 lock
	5 unlock	6 guard		7 decommit	8 release

Access codes:

	1 PAGE_READONLY		2 PAGE_READWRITE	3 PAGE_EXECUTE
	4 PAGE_EXECUTE_READ	5 PAGE_EXECUTE_READWRITE	6 PAGE_NOACCESS

Reserve and guard count units of 64KiB, the other operations units of 4KiB.
Release always frees the whole region starting at address.`

// New returns an initialized command tree.
func New() *cobra.Command {
	// Main vmdriver root command.
	rootCommand = &cobra.Command{
		Use:   "vmdriver [script]",
		Short: "vmdriver exercises virtual memory operations.",
		Long:  vmdriverCommandLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCmd,

		SilenceUsage: true,
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (see 'vmdriver help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'vmdriver help log').")
	rootCommand.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file, defaults to ~/.vmdriver/config.yml.")

	rootCommand.PersistentFlags().StringVar(&backend, "backend", "native", `Backend selection (see 'vmdriver help backend').`)
	rootCommand.PersistentFlags().StringVar(&viewerCmd, "viewer", "", "Visualization command started with the process id appended before reading commands.")
	rootCommand.PersistentFlags().DurationVar(&viewerDelay, "viewer-delay", viewer.DefaultDelay, "Time to wait for the viewer after starting it.")
	rootCommand.PersistentFlags().BoolVar(&keepAlive, "keep-alive", true, "Keep the process alive after the last command until interrupted.")
	rootCommand.PersistentFlags().BoolVar(&stats, "stats", false, "Print the memory usage of the process after every command.")
	rootCommand.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address.")
	rootCommand.PersistentFlags().IntVar(&pageSize, "page-size", vm.DefaultPageSize, "Bytes per unit of commit, touch, lock, unlock and decommit.")
	rootCommand.PersistentFlags().IntVar(&reserveUnit, "reserve-unit", vm.DefaultReserveUnit, "Bytes per unit of reserve and guard.")

	// 'run' subcommand.
	runCommand := &cobra.Command{
		Use:   "run [script]",
		Short: "Execute a command script, this is the default.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCmd,

		SilenceUsage: true,
	}
	rootCommand.AddCommand(runCommand)

	// 'map' subcommand.
	mapCommand := &cobra.Command{
		Use:   "map pid",
		Short: "Print the memory map of a process.",
		Long: `Print the memory map of a process periodically.

Use it on the process id printed by 'vmdriver --log' or as a --viewer:

	vmdriver --viewer "vmdriver map --anon" script.txt
`,
		Args: cobra.ExactArgs(1),
		RunE: mapCmd,

		SilenceUsage: true,
	}
	mapCommand.Flags().DurationVar(&mapInterval, "interval", time.Second, "Time between two snapshots.")
	mapCommand.Flags().BoolVar(&mapOnce, "once", false, "Print a single snapshot and exit.")
	mapCommand.Flags().BoolVar(&mapAnon, "anon", false, "Only show anonymous mappings.")
	rootCommand.AddCommand(mapCommand)

	// 'config' subcommand.
	configCommand := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration.",
		Long: `Print the configuration resulting from the configuration file and the
command line flags.

With --default a commented configuration file is printed instead, save it
to ~/.vmdriver/config.yml to change the defaults.`,
		Args: cobra.NoArgs,
		RunE: configCmd,
	}
	configCommand.Flags().BoolVar(&configDefault, "default", false, "Print a commented default configuration file.")
	rootCommand.AddCommand(configCommand)

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vmdriver\n%s\n", version.VmdriverVersion)
			if log {
				fmt.Fprint(cmd.OutOrStdout(), version.BuildInfo())
			}
		},
	}
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "backend",
		Short: "Help about the --backend flag.",
		Long: `The --backend flag specifies which backend should be used, possible values
are:

	native		Operates on the address space of vmdriver itself (Linux and Windows).
	sim		Simulated address space, addresses chosen by the simulator
			start at 0x10000000.

`})

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:


	executor	Log every executed command and its outcome (default)
	script		Log command script parsing
	viewer		Log viewer launches
	platform	Log the system calls of the native backend

Additionally --log-dest can be used to specify where the logs should be
written.
If the argument is a number it will be interpreted as a file descriptor,
otherwise as a file path.

`,
	})

	defaultHelp := rootCommand.HelpFunc()
	rootCommand.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		helphelpers.Prepare(cmd)
		defaultHelp(cmd, args)
	})

	rootCommand.DisableAutoGenTag = true

	return rootCommand
}

// loadConfig reads the configuration file and applies it to every flag
// that was not set on the command line.
func loadConfig(cmd *cobra.Command) error {
	conf, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}
	changed := func(name string) bool {
		return cmd.Flags().Changed(name)
	}
	if conf.Backend != "" && !changed("backend") {
		backend = conf.Backend
	}
	if conf.Viewer != "" && !changed("viewer") {
		viewerCmd = conf.Viewer
	}
	if conf.ViewerDelay != 0 && !changed("viewer-delay") {
		viewerDelay = conf.ViewerDelay
	}
	if conf.KeepAlive != nil && !changed("keep-alive") {
		keepAlive = *conf.KeepAlive
	}
	if conf.Stats && !changed("stats") {
		stats = true
	}
	if conf.MetricsAddr != "" && !changed("metrics-addr") {
		metricsAddr = conf.MetricsAddr
	}
	if conf.PageSize != 0 && !changed("page-size") {
		pageSize = conf.PageSize
	}
	if conf.ReserveUnit != 0 && !changed("reserve-unit") {
		reserveUnit = conf.ReserveUnit
	}
	return effectiveConfig().Validate()
}

func effectiveConfig() *config.Config {
	ka := keepAlive
	return &config.Config{
		Backend:     backend,
		Viewer:      viewerCmd,
		ViewerDelay: viewerDelay,
		KeepAlive:   &ka,
		PageSize:    pageSize,
		ReserveUnit: reserveUnit,
		Stats:       stats,
		MetricsAddr: metricsAddr,
	}
}

func runCmd(cmd *cobra.Command, args []string) error {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		return err
	}
	defer logflags.Close()

	if err := loadConfig(cmd); err != nil {
		return err
	}

	in := cmd.InOrStdin()
	if len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			return errors.Wrap(err, "opening command script")
		}
		defer f.Close()
		in = f
	}

	runID := xid.New()
	logger := logflags.ExecutorLogger().WithField("run", runID.String())
	logger.Infof("vmdriver pid %d, backend %s", os.Getpid(), backend)

	platform, err := newPlatform(backend, reserveUnit)
	if err != nil {
		return err
	}
	defer func() {
		if err := platform.Close(); err != nil {
			logger.WithError(err).Warn("releasing regions")
		}
	}()

	var metrics *vm.Metrics
	if metricsAddr != "" {
		srv, m, err := serveMetrics(metricsAddr, runID, logger)
		if err != nil {
			return err
		}
		defer srv.Close()
		metrics = m
	}

	out := cmd.OutOrStdout()
	if out == io.Writer(os.Stdout) {
		out = terminal.Writer()
	}
	errOut := cmd.ErrOrStderr()
	exec := vm.NewExecutor(platform, vm.Config{
		PageSize:    pageSize,
		ReserveUnit: reserveUnit,
		Out:         out,
		ErrOut:      errOut,
		Logger:      logger,
		Metrics:     metrics,
	})

	if viewerCmd != "" {
		l := &viewer.Launcher{
			Command: viewerCmd,
			Delay:   viewerDelay,
			Stdout:  out,
			Stderr:  errOut,
			Logger:  logflags.ViewerLogger().WithField("run", runID.String()),
		}
		l.Start()
	}

	term := terminal.New(exec, terminal.Config{
		In:        in,
		Out:       out,
		ErrOut:    errOut,
		Color:     terminal.ColorEnabled(),
		KeepAlive: keepAlive,
		Stats:     stats,
		Logger:    logger,
	})
	sum, err := term.Run(context.Background())
	logger.Infof("%d commands processed, %d failed", sum.Processed, sum.Failed())
	return err
}

func mapCmd(cmd *cobra.Command, args []string) error {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		return err
	}
	defer logflags.Close()

	pid, err := strconv.Atoi(args[0])
	if err != nil {
		return errors.Errorf("invalid pid: %s", args[0])
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := &viewer.Mapper{
		Interval: mapInterval,
		AnonOnly: mapAnon,
		Out:      cmd.OutOrStdout(),
	}
	if mapOnce {
		m.Interval = 0
	}
	logflags.ViewerLogger().Debugf("mapping process %d every %v", pid, m.Interval)
	return m.Run(ctx, pid)
}

func configCmd(cmd *cobra.Command, args []string) error {
	if configDefault {
		return config.WriteDefaultConfig(cmd.OutOrStdout())
	}
	if err := loadConfig(cmd); err != nil {
		return err
	}
	return config.List(cmd.OutOrStdout(), effectiveConfig())
}
