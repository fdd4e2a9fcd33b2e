// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for a harvesting run.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ashh-m/ytkeywordsearchtool/internal/browser"
	"github.com/ashh-m/ytkeywordsearchtool/internal/config"
	"github.com/ashh-m/ytkeywordsearchtool/internal/harvest"
	"github.com/ashh-m/ytkeywordsearchtool/internal/logging"
	"github.com/ashh-m/ytkeywordsearchtool/internal/notify"
	"github.com/ashh-m/ytkeywordsearchtool/internal/server"
	"github.com/ashh-m/ytkeywordsearchtool/internal/sink"
	"github.com/ashh-m/ytkeywordsearchtool/internal/snapshot"
	"github.com/ashh-m/ytkeywordsearchtool/internal/youtubeapi"
)

// App holds the shared, long-lived services of one harvesting run: the
// browser session, the sinks, the snapshot store, the event publisher and
// the metrics listener. Initialized once at startup and torn down by Close.
type App struct {
	Logger    *zap.Logger
	Config    config.Config
	Stop      *harvest.StopSignal
	Session   *browser.Session
	API       *youtubeapi.Client
	Primary   harvest.Sink
	Fallback  harvest.Sink
	Snapshots harvest.SnapshotStore
	Publisher harvest.Publisher

	metricsServer *server.Server
	closers       []func() error
}

// New wires every service the run needs, failing fast on anything
// misconfigured. Optional services (Postgres, GCS, Pub/Sub) are switched on
// by the presence of their configuration.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	a := &App{
		Logger: logger,
		Config: cfg,
		Stop:   harvest.NewStopSignal(),
	}

	a.Session, err = browser.NewSession(browser.Config{
		UserAgent:         cfg.Browser.UserAgent,
		Headless:          cfg.Browser.Headless,
		NavigationTimeout: cfg.NavTimeout(),
		NavigationQPS:     cfg.Browser.NavigationQPS,
		WindowWidth:       cfg.Browser.WindowWidth,
		WindowHeight:      cfg.Browser.WindowHeight,
	}, logger.Named("browser"))
	if err != nil {
		return nil, fmt.Errorf("start browser session: %w", err)
	}
	a.closers = append(a.closers, a.Session.Close)

	a.API = youtubeapi.New(youtubeapi.Config{
		APIKey:  cfg.API.Key,
		Timeout: time.Duration(cfg.API.TimeoutSeconds) * time.Second,
	}, logger.Named("api"))
	if a.API.Enabled() {
		logger.Info("structured-data api enabled")
	} else {
		logger.Info("no api credential configured, using page extraction only")
	}

	if err := a.wireSinks(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.wireSnapshots(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.wirePublisher(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Server.Enabled {
		a.metricsServer = server.New(cfg.Server.Port, logger.Named("server"))
		a.metricsServer.Start()
	}

	return a, nil
}

func (a *App) wireSinks(ctx context.Context, cfg config.Config) error {
	if cfg.DB.DSN != "" {
		pg, err := sink.NewPostgres(ctx, sink.PostgresConfig{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			return fmt.Errorf("initialize postgres sink: %w", err)
		}
		a.Logger.Info("using postgres sink", zap.String("table", cfg.DB.Table))
		a.Primary = pg

		fallback, err := sink.NewNDJSON(cfg.Output.FallbackPath)
		if err != nil {
			return fmt.Errorf("initialize fallback sink: %w", err)
		}
		a.Fallback = fallback
		return nil
	}

	nd, err := sink.NewNDJSON(cfg.Output.Path)
	if err != nil {
		return fmt.Errorf("initialize ndjson sink: %w", err)
	}
	a.Logger.Info("using ndjson sink", zap.String("path", cfg.Output.Path))
	a.Primary = nd
	return nil
}

func (a *App) wireSnapshots(ctx context.Context, cfg config.Config) error {
	if cfg.Snapshot.GCSBucket != "" {
		store, err := snapshot.NewGCS(ctx, cfg.Snapshot.GCSBucket, cfg.Snapshot.Prefix)
		if err != nil {
			return fmt.Errorf("initialize gcs snapshot store: %w", err)
		}
		a.Logger.Info("using gcs snapshot store", zap.String("bucket", cfg.Snapshot.GCSBucket))
		a.Snapshots = store
		a.closers = append(a.closers, store.Close)
		return nil
	}
	if cfg.Snapshot.LocalDir != "" {
		store, err := snapshot.NewLocal(cfg.Snapshot.LocalDir)
		if err != nil {
			return fmt.Errorf("initialize local snapshot store: %w", err)
		}
		a.Snapshots = store
		return nil
	}
	a.Snapshots = snapshot.Noop{}
	return nil
}

func (a *App) wirePublisher(ctx context.Context, cfg config.Config) error {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.TopicName == "" {
		a.Publisher = notify.Noop{}
		return nil
	}
	pub, err := notify.NewPubSub(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
	if err != nil {
		return fmt.Errorf("initialize pubsub publisher: %w", err)
	}
	a.Logger.Info("publishing run events", zap.String("topic", cfg.PubSub.TopicName))
	a.Publisher = pub
	a.closers = append(a.closers, pub.Close)
	return nil
}

// Close tears down every service in reverse initialization order.
func (a *App) Close() {
	a.Logger.Info("shutting down services")
	if a.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			a.Logger.Warn("metrics server shutdown failed", zap.Error(err))
		}
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("service close failed", zap.Error(err))
		}
	}
	_ = a.Logger.Sync()
}
