// Package cli implements the dcg command line.
package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artpar/dcg/internal/config"
)

// Command group IDs
const (
	GroupDeployments = "deployments"
	GroupBulk        = "bulk"
	GroupInspect     = "inspect"
	GroupOther       = "other"
)

// annotationNoConfig marks commands that run without loading configuration.
const annotationNoConfig = "dcg/no-config"

// Options configures the command tree. Zero values fall back to the process
// streams, the detected terminal and NewBackend.
type Options struct {
	Args   []string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Terminal   TerminalCapabilities
	NewBackend BackendFactory
	Version    string
	Built      string
}

type app struct {
	opts Options

	configPath string
	logLevel   string
	noColor    bool

	cfg     *config.Config
	logger  *slog.Logger
	out     *printer
	backend Backend
}

func newApp(opts Options) *app {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.NewBackend == nil {
		opts.NewBackend = NewBackend
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	return &app{
		opts:   opts,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		out:    newPrinter(opts.Stdout, opts.Stderr, false),
	}
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, opts Options) int {
	a := newApp(opts)
	defer a.close()

	root := a.rootCommand()
	root.SetArgs(a.opts.Args)
	return a.report(root.ExecuteContext(ctx))
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "dcg",
		Short: "Manage docker-compose deployments",
		Long: `dcg keeps a registry of named docker-compose deployments and starts,
stops, updates and inspects them.

A deployment is a directory holding a docker-compose.yaml or
docker-compose.yml file. The registry lives in ~/.dcg/settings.yaml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[annotationNoConfig] != "" {
				a.out = newPrinter(a.opts.Stdout, a.opts.Stderr, a.opts.Terminal.SupportsColor() && !a.noColor)
				return nil
			}
			return a.setup()
		},
	}
	root.SetIn(a.opts.Stdin)
	root.SetOut(a.opts.Stdout)
	root.SetErr(a.opts.Stderr)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ~/.dcg/config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(err)
	})

	root.AddGroup(
		&cobra.Group{ID: GroupDeployments, Title: "Deployment Commands:"},
		&cobra.Group{ID: GroupBulk, Title: "Bulk Commands:"},
		&cobra.Group{ID: GroupInspect, Title: "Inspection Commands:"},
		&cobra.Group{ID: GroupOther, Title: "Other Commands:"},
	)

	root.AddCommand(
		a.addCommand(),
		a.removeCommand(),
		a.updateCommand(),
		a.upCommand(),
		a.downCommand(),
		a.restartCommand(),
		a.startAllCommand(),
		a.stopAllCommand(),
		a.listCommand(),
		a.statusCommand(),
		a.statisticsCommand(),
		a.logsCommand(),
		a.historyCommand(),
		a.serveCommand(),
		a.changelogCommand(),
		a.versionCommand(),
	)
	return root
}

// setup loads configuration and builds the logger and printer.
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	a.cfg = cfg
	a.logger = config.SetupLogger(cfg, a.opts.Stderr)
	a.out = newPrinter(a.opts.Stdout, a.opts.Stderr, a.opts.Terminal.SupportsColor() && !a.noColor)
	a.logger.Debug("configuration loaded", "file", cfg.File, "registry", cfg.Registry.Path)
	return nil
}

// backendFor builds the backend on first use, so commands that never touch
// Docker do not need it.
func (a *app) backendFor(ctx context.Context) (Backend, error) {
	if a.backend != nil {
		return a.backend, nil
	}
	b, err := a.opts.NewBackend(ctx, a.cfg, a.opts.Stdout, a.opts.Stderr, a.logger)
	if err != nil {
		return nil, err
	}
	a.backend = b
	return b, nil
}

func (a *app) close() {
	if a.backend == nil {
		return
	}
	if err := a.backend.Close(); err != nil {
		a.logger.Debug("closing backend", "error", err)
	}
}

// report prints err and returns the exit code for it.
func (a *app) report(err error) int {
	if err == nil {
		return ExitSuccess
	}
	code := exitCode(err)

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Silent {
			return code
		}
		if exitErr.Message != "" {
			a.out.errorMessage(exitErr.Message)
			return code
		}
	} else if strings.HasPrefix(err.Error(), "unknown command") {
		code = ExitInvalidArguments
	}

	a.out.errorMessage("Error: " + err.Error())
	if code == ExitInvalidArguments {
		a.out.errorMessage("Run 'dcg --help' for usage.")
	}
	return code
}

// withArgs turns argument validation failures into usage errors.
func withArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}
