// Package server assembles the webconsole service and owns its lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/webconsole/internal/api"
	"github.com/JakeFAU/webconsole/internal/config"
	"github.com/JakeFAU/webconsole/internal/console"
	"github.com/JakeFAU/webconsole/internal/console/sinks"
	"github.com/JakeFAU/webconsole/internal/host"
	"github.com/JakeFAU/webconsole/internal/id/uuid"
	"github.com/JakeFAU/webconsole/internal/progress"
	memorypublisher "github.com/JakeFAU/webconsole/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/webconsole/internal/publisher/pubsub"
	"github.com/JakeFAU/webconsole/internal/relay"
)

const readHeaderTimeout = 5 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg          config.Config
	logger       *zap.Logger
	registry     *host.Registry
	apiServer    *api.Server
	publisher    relay.Publisher
	pubsubClient *pubsub.Client
	gcpPublisher *gcppublisher.Publisher
}

// Option customizes NewApp.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
}

// WithRegisterer registers the console metrics sink against reg instead of
// the default Prometheus registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// NewApp wires the operation registry, signal publisher and HTTP API.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Info("creating application",
		zap.Int("server_port", cfg.Server.Port),
		zap.Bool("auth_enabled", cfg.Auth.Enabled),
		zap.Int("remotes", len(cfg.Relay.Remotes)),
	)

	app := &App{cfg: cfg, logger: logger, registry: host.NewRegistry()}
	demos := host.DemoSettings{
		StepDelay:     cfg.Demo.StepDelay,
		FanoutJobs:    cfg.Demo.FanoutJobs,
		FanoutWorkers: cfg.Demo.FanoutWorkers,
	}
	if err := host.Demos(app.registry, demos, progress.WithHeartbeat(cfg.Progress.HeartbeatPeriod)); err != nil {
		return nil, fmt.Errorf("register demos: %w", err)
	}

	if err := app.setupPublisher(ctx); err != nil {
		return nil, err
	}

	metricsSink, err := sinks.NewMetricsSink(o.registerer)
	if err != nil {
		app.closePublisher()
		return nil, fmt.Errorf("metrics sink init failed: %w", err)
	}

	app.apiServer = api.NewServer(cfg, api.Deps{
		Registry:  app.registry,
		Publisher: app.publisher,
		IDs:       uuid.New(),
		Logger:    logger.Named("api"),
		Observers: []console.Sink{metricsSink},
	})
	return app, nil
}

func (a *App) setupPublisher(ctx context.Context) error {
	if a.cfg.PubSub.ProjectID == "" {
		a.logger.Warn("no Pub/Sub project configured, keeping relay signals in memory")
		a.publisher = memorypublisher.New()
		return nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubClient = client
	a.gcpPublisher = gcppublisher.New(client)
	a.publisher = a.gcpPublisher
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.Relay.SignalTopic),
	)
	return nil
}

// Handler exposes the HTTP API.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Registry returns the operations served by the App.
func (a *App) Registry() *host.Registry {
	return a.registry
}

// Publisher returns where relay signals are published.
func (a *App) Publisher() relay.Publisher {
	return a.publisher
}

// Run serves HTTP until ctx is canceled or SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(a.cfg.Server.Port)))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
		close(serveErr)
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	runErr := <-serveErr
	if err := a.Close(shutdownCtx); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// Close releases the publisher and syncs the logger.
func (a *App) Close(_ context.Context) error {
	a.closePublisher()
	var err error
	if a.pubsubClient != nil {
		if cerr := a.pubsubClient.Close(); cerr != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(cerr))
			err = cerr
		}
		a.pubsubClient = nil
	}
	_ = a.logger.Sync()
	a.logger.Info("shutdown complete")
	return err
}

func (a *App) closePublisher() {
	if a.gcpPublisher != nil {
		a.gcpPublisher.Close()
		a.gcpPublisher = nil
	}
}
