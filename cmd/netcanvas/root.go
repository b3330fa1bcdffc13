package main

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HerbHall/netcanvas/internal/app"
	"github.com/HerbHall/netcanvas/internal/config"
	"github.com/HerbHall/netcanvas/internal/notify"
	"github.com/HerbHall/netcanvas/internal/reach"
	"github.com/HerbHall/netcanvas/internal/remote"
	"github.com/HerbHall/netcanvas/internal/ui"
	"github.com/HerbHall/netcanvas/internal/version"
)

// cli carries the state shared by every command of one invocation.
type cli struct {
	configPath string
	verbose    bool

	// opts and checker let tests substitute the clock, HTTP client,
	// registry and ICMP prober.
	opts    app.Options
	checker reach.Checker

	cfg      *config.Config
	settings *config.Settings
	logger   *zap.Logger
	app      *app.App
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c := &cli{}
	return c.execute(ctx, args, stdin, stdout, stderr)
}

func (c *cli) execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		c.close()
		return 0
	}
	msg := c.describe(err)
	c.close()
	ui.Failure(stderr, "%s", msg)
	if errors.Is(err, remote.ErrAuthExpired) {
		return 3
	}
	return 1
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "netcanvas",
		Short: "netcanvas edits emulated network topologies",
		Long: ui.Brand.Sprint("netcanvas") + " builds hosts, switches and routers on a lab service,\n" +
			ui.Subtle.Sprint("links them, and traces packets across the result"),
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("netcanvas {{ .Version }}\n")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to configuration file")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		c.authCmd(),
		c.topologyCmd(),
		c.deviceCmd(),
		c.traceCmd(),
		c.pingCmd(),
		c.canvasCmd(),
		c.serveCmd(),
		c.doctorCmd(),
		c.backupCmd(),
		c.restoreCmd(),
		versionCmd(),
	)
	return root
}

// load reads configuration and builds the logger once.
func (c *cli) load() error {
	if c.settings != nil {
		return nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	settings, err := cfg.Settings()
	if err != nil {
		return err
	}
	level := settings.Log.Level
	if c.verbose {
		level = "debug"
	}
	logger, err := app.NewLogger(level, settings.Log.Development)
	if err != nil {
		return err
	}
	c.cfg, c.settings, c.logger = cfg, settings, logger
	return nil
}

// client returns the wired application without touching the lab service.
func (c *cli) client(ctx context.Context) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	a, err := app.New(ctx, c.settings, c.logger, c.opts)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

// session returns the application with the active topology loaded.
func (c *cli) session(ctx context.Context) (*app.App, error) {
	a, err := c.client(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.Startup(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (c *cli) close() {
	if c.app != nil {
		if err := c.app.Close(); err != nil {
			c.logger.Warn("close local state", zap.Error(err))
		}
		c.app = nil
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

// describe turns err into the line shown to the user. The notification a
// component raised for the failure is preferred, then the server's own
// message.
func (c *cli) describe(err error) string {
	if errors.Is(err, remote.ErrAuthExpired) {
		return "session expired: run `netcanvas auth set-token` to log in again"
	}
	if c.app != nil {
		if n, ok := c.app.Notices.Current(); ok && n.Kind == notify.KindError {
			return n.Message
		}
	}
	return remote.Message(err, err.Error())
}
