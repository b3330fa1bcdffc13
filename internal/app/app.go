// Package app composes the netcanvas client: configuration, logging,
// local state, the lab service client and the canvas components built on
// top of them.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/text/message"

	"github.com/HerbHall/netcanvas/internal/auth"
	"github.com/HerbHall/netcanvas/internal/canvas"
	"github.com/HerbHall/netcanvas/internal/clock"
	"github.com/HerbHall/netcanvas/internal/config"
	"github.com/HerbHall/netcanvas/internal/diagnostics"
	"github.com/HerbHall/netcanvas/internal/event"
	"github.com/HerbHall/netcanvas/internal/i18n"
	"github.com/HerbHall/netcanvas/internal/notify"
	"github.com/HerbHall/netcanvas/internal/prefs"
	"github.com/HerbHall/netcanvas/internal/remote"
	"github.com/HerbHall/netcanvas/internal/store"
	"github.com/HerbHall/netcanvas/internal/topology"
)

// ErrNotLoggedIn is returned when no bearer token is stored.
var ErrNotLoggedIn = errors.New("not logged in: run `netcanvas auth set-token`")

// Options override parts of the composition, mainly for tests.
type Options struct {
	Clock      clock.Clock
	HTTPClient *http.Client
	Registry   *prometheus.Registry
}

// App holds the wired client components. Close releases them.
type App struct {
	Settings  *config.Settings
	Logger    *zap.Logger
	Printer   *message.Printer
	Clock     clock.Clock
	DB        *store.SQLiteStore
	Prefs     *prefs.Prefs
	Registry  *prometheus.Registry
	Client    *remote.Client
	Bus       *event.Bus
	Notices   *notify.Channel
	Redirects *auth.Redirects
	Topology  *topology.Store
	Canvas    *canvas.Controller
}

// New opens local state and wires every component. Nothing is fetched
// from the lab service yet.
func New(ctx context.Context, settings *config.Settings, logger *zap.Logger, opts Options) (*App, error) {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
		opts.Registry.MustRegister(collectors.NewGoCollector())
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: settings.API.Timeout}
	}

	db, err := store.New(settings.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open local state: %w", err)
	}
	repo, err := prefs.NewSQLiteSettingsRepository(ctx, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate local state: %w", err)
	}

	a := &App{
		Settings: settings,
		Logger:   logger,
		Printer:  i18n.Printer(settings.UI.Locale),
		Clock:    opts.Clock,
		DB:       db,
		Prefs:    prefs.New(repo),
		Registry: opts.Registry,
	}

	clientOpts := []remote.Option{
		remote.WithHTTPClient(opts.HTTPClient),
		remote.WithMetrics(remote.NewMetrics(opts.Registry)),
		remote.WithClock(opts.Clock.Now),
	}
	if settings.API.RateLimit > 0 {
		clientOpts = append(clientOpts, remote.WithRateLimit(settings.API.RateLimit, settings.API.RateBurst))
	}
	a.Client = remote.New(settings.API.BaseURL, a.Prefs, logger, clientOpts...)

	a.Bus = event.NewBus(logger)
	a.Notices = notify.New(opts.Clock, settings.Notifications.TTL, a.Bus, logger)
	a.Redirects = auth.NewRedirects(logger)
	a.Topology = topology.New(topology.Deps{
		API:        a.Client,
		Remembered: a.Prefs,
		Notifier:   a.Notices,
		Navigator:  a.Redirects,
		Bus:        a.Bus,
		Printer:    a.Printer,
		Logger:     logger,
	})
	a.Canvas = canvas.New(canvas.Deps{
		Store:     a.Topology,
		API:       a.Client,
		Notifier:  a.Notices,
		Navigator: a.Redirects,
		Clock:     opts.Clock,
		Printer:   a.Printer,
		Events:    a.Bus,
		Logger:    logger,
	})
	a.Canvas.SetViewport(canvas.Viewport{Width: settings.Canvas.Width, Height: settings.Canvas.Height})

	logger.Debug("client wired",
		zap.String("api", settings.API.BaseURL),
		zap.String("state", settings.Storage.Path),
		zap.String("locale", settings.UI.Locale),
	)
	return a, nil
}

// Diagnostics returns a new trace/ping session over the loaded topology.
// The caller disposes it.
func (a *App) Diagnostics() *diagnostics.Session {
	return diagnostics.New(diagnostics.Deps{
		API:          a.Client,
		Devices:      a.Topology,
		Navigator:    a.Redirects,
		Clock:        a.Clock,
		Bus:          a.Bus,
		Printer:      a.Printer,
		Logger:       a.Logger,
		PollInterval: a.Settings.Diagnostics.PollInterval,
	})
}

// RequireLogin fails fast when no token is stored.
func (a *App) RequireLogin(ctx context.Context) error {
	tok, err := a.Prefs.Token(ctx)
	if err != nil {
		return fmt.Errorf("read credentials: %w", err)
	}
	if tok == "" {
		return ErrNotLoggedIn
	}
	return nil
}

// Startup loads the initial topology into the canvas.
func (a *App) Startup(ctx context.Context) error {
	if err := a.RequireLogin(ctx); err != nil {
		return err
	}
	return a.Canvas.Startup(ctx)
}

// Close stops timers and closes local state.
func (a *App) Close() error {
	a.Canvas.Close()
	a.Notices.Close()
	return a.DB.Close()
}
