package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"paceload/internal/auth"
	"paceload/internal/config"
	"paceload/internal/events"
	"paceload/internal/ingest"
	"paceload/internal/observability"
	"paceload/internal/recompute"
	"paceload/internal/service"
	"paceload/internal/store"
	"paceload/internal/strava"
)

// redirectURL is where Strava sends the browser after login.
const redirectURL = "http://localhost:8089/callback"

var errConfigCreated = errors.New("example config created")

// publisher is a WeekPublisher that can be closed on exit.
type publisher interface {
	service.WeekPublisher
	Close() error
}

// app holds the components shared by every command.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	reporter  *observability.Reporter
	db        *store.DB
	publisher publisher
	resolver  *service.Resolver
	engine    *service.Engine
	zones     *service.ZoneService
	query     *service.QueryService
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if errors.Is(err, config.ErrNoConfig) {
		if err := config.CreateExample(); err != nil {
			return nil, fmt.Errorf("creating example config: %w", err)
		}
		dir, _ := config.GetConfigDir()
		fmt.Printf("No config file found. An example was written to:\n  %s/config.json\n\n", dir)
		fmt.Println("Add your Strava API credentials from https://www.strava.com/settings/api")
		return nil, errConfigCreated
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := config.InitLogger(cfg.Logging, os.Stderr)

	reporter, err := observability.InitSentry(observability.SentryConfig{
		DSN:         cfg.Sentry.DSN,
		Environment: cfg.Sentry.Environment,
	}, logger)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	var pub publisher = events.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		pub = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		logger.Info("publishing week events", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	resolver := service.NewResolver(db)
	engine := service.NewEngine(db, resolver, service.EngineOptions{
		RunTypes:  cfg.Engine.RunTypes,
		MinSpeed:  cfg.Engine.MinSpeedMPS,
		Publisher: pub,
		Logger:    logger,
	})

	return &app{
		cfg:       cfg,
		logger:    logger,
		reporter:  reporter,
		db:        db,
		publisher: pub,
		resolver:  resolver,
		engine:    engine,
		zones:     service.NewZoneService(db, logger),
		query:     service.NewQueryService(db, resolver),
	}, nil
}

func (a *app) Close() {
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn("closing week publisher", "error", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("closing database", "error", err)
	}
	a.reporter.Flush(2 * time.Second)
}

func (a *app) oauthConfig() (*auth.Config, error) {
	if err := a.cfg.ValidateStrava(); err != nil {
		return nil, err
	}
	return &auth.Config{
		ClientID:     a.cfg.Strava.ClientID,
		ClientSecret: a.cfg.Strava.ClientSecret,
		RedirectURL:  redirectURL,
	}, nil
}

// stravaClient builds an API client from the stored token.
func (a *app) stravaClient(ctx context.Context) (*strava.Client, error) {
	oc, err := a.oauthConfig()
	if err != nil {
		return nil, err
	}
	ts, err := auth.NewTokenSource(ctx, auth.NewOAuthConfig(*oc), a.db, a.logger)
	if errors.Is(err, store.ErrNoAuth) {
		return nil, errors.New("not logged in, run \"paceload login\" first")
	}
	if err != nil {
		return nil, err
	}
	return strava.NewClient(ts, strava.WithRateLimiter(strava.NewRateLimiter())), nil
}

func (a *app) retryPolicy() ingest.RetryPolicy {
	p := ingest.DefaultRetryPolicy()
	p.MaxRetries = a.cfg.Ingest.MaxRetries
	p.InitialInterval = a.cfg.Ingest.InitialBackoff.Duration
	return p
}

func (a *app) syncService(client *strava.Client) *service.SyncService {
	retry := a.retryPolicy()
	opts := service.SyncOptions{Logger: a.logger}
	if a.cfg.Ingest.WeatherEnabled {
		opts.Weather = ingest.NewWeatherEnricher(a.cfg.Ingest.WeatherURL, a.db, retry, a.logger)
	}
	cascade := ingest.NewCascade(client, client, retry, a.logger)
	return service.NewSyncService(client, cascade, a.db, a.engine, opts)
}

func (a *app) worker() *recompute.Worker {
	return recompute.NewWorker(a.db, a.engine, recompute.Options{
		PollInterval: a.cfg.Worker.PollInterval.Duration,
		Lease:        a.cfg.Worker.Lease.Duration,
		BaseDelay:    a.cfg.Worker.BaseDelay.Duration,
		MaxAttempts:  a.cfg.Worker.MaxAttempts,
		Logger:       a.logger,
		Reporter:     a.reporter,
	})
}

// athleteID returns explicit when set, otherwise the logged-in athlete.
func (a *app) athleteID(ctx context.Context, explicit int64) (int64, error) {
	if explicit > 0 {
		return explicit, nil
	}
	stored, err := a.db.GetAuth(ctx)
	if errors.Is(err, store.ErrNoAuth) {
		return 0, errors.New("no athlete given and not logged in, pass -athlete")
	}
	if err != nil {
		return 0, err
	}
	return stored.AthleteID, nil
}
