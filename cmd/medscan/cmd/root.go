package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/medscan-console/internal/config"
	"github.com/medscan-console/internal/domain"
	"github.com/medscan-console/internal/logging"
	"github.com/medscan-console/internal/richtext"
	"github.com/medscan-console/internal/session"
	"github.com/medscan-console/internal/viewmodel"
	"github.com/medscan-console/pkg/gateway"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
	baseURL string
)

// Global console instance, built by the root PersistentPreRunE
var console *app

// app bundles everything a command needs
type app struct {
	cfg    *domain.Config
	logger *logrus.Logger
	store  *session.Store
	client *gateway.Client
	deps   viewmodel.Deps
	out    *renderer

	closers []io.Closer
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
}

// cliNavigator turns navigation requests into hints on stderr
type cliNavigator struct {
	out *renderer
}

func (n cliNavigator) Navigate(route viewmodel.Route) {
	switch route {
	case viewmodel.RouteLogin:
		n.out.hint("Not signed in. Run `medscan login` first.")
	case viewmodel.RouteDashboard:
		n.out.hint("Signed in. Run `medscan dashboard` to see recent activity.")
	}
}

func newApp(ctx context.Context) (*app, error) {
	var opts []config.Option
	if cfgFile != "" {
		opts = append(opts, config.WithConfigFile(cfgFile))
	}
	manager, err := config.NewManager(opts...)
	if err != nil {
		return nil, err
	}

	// Verbose output goes to a log file unless debugging
	if debug {
		if err := manager.Set("logging.level", "debug"); err != nil {
			return nil, err
		}
		if err := manager.Set("logging.output", "stderr"); err != nil {
			return nil, err
		}
	}
	if baseURL != "" {
		if err := manager.Set("api.base_url", baseURL); err != nil {
			return nil, err
		}
	}
	if err := manager.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := manager.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	cfg := manager.GetConfig()

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	cache, err := richtext.NewCache(cfg.RichText.CacheSize)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create render cache: %w", err)
	}
	a.out = newRenderer(os.Stdout, os.Stderr, cache, richtext.NewTerminal(cfg.RichText.Width))

	store, err := session.Open(ctx, cfg.Session, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, store)

	nav := cliNavigator{out: a.out}
	client, err := gateway.New(cfg.API, store,
		gateway.WithLogger(logger),
		gateway.WithUnauthorizedHandler(func() { nav.Navigate(viewmodel.RouteLogin) }),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.client = client
	a.deps = viewmodel.Deps{Session: store, Navigator: nav, Logger: logger}

	logger.WithFields(logrus.Fields{
		"config":   manager.ConfigFileUsed(),
		"base_url": cfg.API.BaseURL,
		"session":  cfg.Session.Backend,
	}).Debug("Console initialized")
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "medscan",
	Short: "Medical image analysis console",
	Long: `medscan is a terminal client for the medical image analysis backend.

Usage:
  medscan login                   # Sign in
  medscan analyze scan.png        # Upload and analyze an image
  medscan consult create "..."    # Open a specialist consultation
  medscan qa ask <id> "..."       # Ask a question about a report

All analyses are informational and must be reviewed by a qualified
medical professional.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		console, err = newApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize console: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")
	rootCmd.PersistentFlags().StringVar(&baseURL, "api", "", "Backend base URL (overrides api.base_url)")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)
	rootCmd.AddCommand(dashboardCmd, analyzeCmd, historyCmd, analysisCmd)
	rootCmd.AddCommand(consultCmd, qaCmd, reportsCmd)
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	if console != nil {
		console.Close()
	}
	stop()

	if err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

// screenError reports the view-model's display message instead of the raw error
func screenError(err error, message string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrUnauthenticated) {
		return err
	}
	if message == "" {
		message = viewmodel.DisplayMessage(err, err.Error())
	}
	return &displayError{message: message, err: err}
}

type displayError struct {
	message string
	err     error
}

func (e *displayError) Error() string { return e.message }
func (e *displayError) Unwrap() error { return e.err }
