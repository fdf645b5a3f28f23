package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/docker/cli/cli/streams"
	"github.com/moby/term"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ryanmoran/testbed/config"
	"github.com/ryanmoran/testbed/internal"
	"github.com/ryanmoran/testbed/internal/logging"
	"github.com/ryanmoran/testbed/lifecycle"
)

func main() {
	_, stdout, stderr := term.StdStreams()

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(stderr, "panic occurred: %v\n", r)
			os.Exit(1)
		}
	}()

	if err := run(os.Args, stdout, stderr); err != nil {
		fmt.Fprintln(stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cmd := newRootCommand(stdout, stderr)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

// app is the state shared by all subcommands, set up before any of them
// runs.
type app struct {
	src     *config.Source
	cfg     internal.Config
	logger  *zap.Logger
	session internal.Session
	writer  internal.Writer
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{
		src:    config.New(),
		writer: internal.NewWriter(stdout, stderr),
	}

	root := &cobra.Command{
		Use:           "testbed",
		Short:         "Scoped, reversible test fixtures",
		Long:          "testbed manages test resources whose side effects are reversed at the end of the test or class that created them.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd, stderr)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().String("config", "", "config file (yaml, toml or json)")
	root.PersistentFlags().String("log-level", internal.DefaultLogLevel, "log level (debug, info, warn, error)")
	_ = a.src.Viper().BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(newCheckCommand(a), newResourcesCommand(a))
	return root
}

func (a *app) setup(cmd *cobra.Command, stderr io.Writer) error {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := internal.LoadConfig(a.src, path)
	if err != nil {
		return err
	}

	console := streams.NewOut(stderr).IsTerminal()
	logger, err := logging.New(cfg.LogLevel, console, stderr)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.session = internal.GenerateSession()
	a.logger.Debug("starting run", zap.String("run", a.session.String()), zap.Int("tests", cfg.Tests))
	return nil
}

func (a *app) manager() (*lifecycle.Manager, error) {
	m := lifecycle.NewManager(lifecycle.WithLogger(a.logger.With(zap.String("run", a.session.String()))))
	if err := internal.Setup(m, a.src, a.cfg, a.session.ID()); err != nil {
		return nil, fmt.Errorf("failed to register fixtures: %w", err)
	}
	return m, nil
}

func newCheckCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run the configured fixtures through a full class lifecycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			m, err := a.manager()
			if err != nil {
				return err
			}

			if err := internal.Check(ctx, m, a.cfg, a.writer); err != nil {
				return fmt.Errorf("check failed for run %s: %w", a.session, err)
			}

			a.writer.Printf("check passed for run %s\n", a.session)
			return nil
		},
	}

	cmd.Flags().Int("tests", internal.DefaultTests, "number of tests in the checked class")
	_ = a.src.Viper().BindPFlag("tests", cmd.Flags().Lookup("tests"))
	return cmd
}

func newResourcesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "List the resources the configuration registers",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}

			a.writer.Println(m.String())
			return nil
		},
	}
}
