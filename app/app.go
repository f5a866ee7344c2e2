// Package app wires the coordinator's services, storage, event bus, and
// observability surface together.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/Nock-And-Loose-Club/tenring-server/app/eventbus"
	"github.com/Nock-And-Loose-Club/tenring-server/app/events"
	matchservice "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/application"
	matchdb "github.com/Nock-And-Loose-Club/tenring-server/app/modules/match/infrastructure/repositories"
	participantservice "github.com/Nock-And-Loose-Club/tenring-server/app/modules/participant/application"
	"github.com/Nock-And-Loose-Club/tenring-server/app/modules/report/infrastructure/archive"
	sessionservice "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/application"
	sessiondb "github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/infrastructure/repositories"
	"github.com/Nock-And-Loose-Club/tenring-server/app/modules/session/infrastructure/subscribers"
	"github.com/Nock-And-Loose-Club/tenring-server/app/shared/observability"
	"github.com/Nock-And-Loose-Club/tenring-server/config"
	"github.com/Nock-And-Loose-Club/tenring-server/internal/redisdocs"
)

// App holds the running server's components.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Store    *redisdocs.Store
	EventBus *eventbus.EventBus
	Router   *message.Router
	Registry *prometheus.Registry
	Metrics  *observability.Metrics

	MatchService       matchservice.Service
	SessionService     sessionservice.Service
	ParticipantService participantservice.Service

	archiveDB  *bun.DB
	expiry     *subscribers.ExpirySubscriber
	httpServer *http.Server
}

// NewApp builds the full dependency graph. The report archive is optional:
// without a Postgres DSN the coordinator still runs, reports just stay on
// the bus.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	store, err := redisdocs.New(ctx, redisdocs.Config{URL: cfg.Redis.URL})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	bus, err := eventbus.New(cfg.NATS.URL, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	matchRepo := &matchdb.MatchDBImpl{Store: store, Logger: logger}
	sessionRepo := &sessiondb.SessionDBImpl{Store: store, Logger: logger}

	matchSvc := matchservice.NewMatchService(matchRepo, sessionRepo, bus, logger)
	sessionSvc := sessionservice.NewSessionService(sessionRepo, matchRepo, logger, metrics)
	participantSvc := participantservice.NewParticipantService(
		matchRepo, sessionRepo, bus, logger, metrics, cfg.Match.DisconnectTTL)

	router, err := message.NewRouter(message.RouterConfig{}, watermill.NewSlogLogger(logger))
	if err != nil {
		bus.Close()
		store.Close()
		return nil, fmt.Errorf("failed to create router: %w", err)
	}
	router.AddMiddleware(middleware.Recoverer)

	a := &App{
		Config:             cfg,
		Logger:             logger,
		Store:              store,
		EventBus:           bus,
		Router:             router,
		Registry:           registry,
		Metrics:            metrics,
		MatchService:       matchSvc,
		SessionService:     sessionSvc,
		ParticipantService: participantSvc,
		expiry: &subscribers.ExpirySubscriber{
			Store:   store,
			Service: sessionSvc,
			Logger:  logger,
		},
	}

	if cfg.Postgres.DSN != "" {
		if err := a.wireArchive(ctx, cfg.Postgres.DSN, matchSvc); err != nil {
			a.Close()
			return nil, err
		}
	} else {
		logger.Warn("no postgres DSN configured, report archiving disabled")
	}

	a.httpServer = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return a, nil
}

func (a *App) wireArchive(ctx context.Context, dsn string, matches matchservice.Service) error {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if err := archive.CreateSchema(ctx, db); err != nil {
		db.Close()
		return err
	}
	a.archiveDB = db

	archiver := &archive.Archiver{
		Writer:   archive.NewWriter(db),
		Matches:  matches,
		EventBus: a.EventBus,
		Logger:   a.Logger,
	}
	a.Router.AddNoPublisherHandler(
		"report-archiver",
		events.ReportReady,
		a.EventBus.Subscriber(),
		archiver.HandleReportReady,
	)
	return nil
}

func (a *App) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := a.Store.Client().Ping(req.Context()).Err(); err != nil {
			http.Error(w, "store unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))
	return r
}

// Run starts the HTTP listener, the expiry subscriber, and the message
// router, blocking until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := a.expiry.Run(ctx); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("expiry subscriber: %w", err)
		}
	}()
	go func() {
		if err := a.Router.Run(ctx); err != nil {
			errCh <- fmt.Errorf("message router: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Close releases every component, tolerating partial initialization.
func (a *App) Close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.Logger.Error("http shutdown failed", slog.Any("error", err))
		}
	}
	if a.Router != nil {
		if err := a.Router.Close(); err != nil {
			a.Logger.Error("router close failed", slog.Any("error", err))
		}
	}
	if a.EventBus != nil {
		if err := a.EventBus.Close(); err != nil {
			a.Logger.Error("event bus close failed", slog.Any("error", err))
		}
	}
	if a.archiveDB != nil {
		if err := a.archiveDB.Close(); err != nil {
			a.Logger.Error("archive close failed", slog.Any("error", err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Error("store close failed", slog.Any("error", err))
		}
	}
}
