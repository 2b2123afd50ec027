// Package app wires the components of agentwatch together from a Config.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"agentwatch/internal/aggregator"
	"agentwatch/internal/alert"
	"agentwatch/internal/backup"
	"agentwatch/internal/config"
	"agentwatch/internal/detector"
	"agentwatch/internal/feed"
	"agentwatch/internal/growth"
	"agentwatch/internal/handler"
	"agentwatch/internal/ledger"
	"agentwatch/internal/metrics"
	"agentwatch/internal/pipeline"
	"agentwatch/internal/repository"
	"agentwatch/internal/scheduler"
	"agentwatch/internal/server"
	"agentwatch/internal/service"
	"agentwatch/internal/threads"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// App holds every long-lived component. Build it once per process.
type App struct {
	Config     *config.Config
	DB         *sqlx.DB
	Repos      *repository.Repositories
	Aggregator *aggregator.Aggregator
	Pipeline   *pipeline.Pipeline
	Metrics    *metrics.Cache
	Detector   *detector.Detector
	Growth     *growth.Tracker
	Bot        *alert.Bot

	backup *backup.Writer
	logger *zap.Logger
}

// New connects to the database, runs migrations and builds all components.
// The ledger is empty until Warm is called.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := repository.Open(cfg.Database.Driver, cfg.Database.URL, logger)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(db, logger); err != nil {
		db.Close()
		return nil, err
	}
	a, err := NewWithDB(cfg, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// NewWithDB builds all components over an already migrated database.
func NewWithDB(cfg *config.Config, db *sqlx.DB, logger *zap.Logger) (*App, error) {
	repos := repository.New(db, logger)

	tracker, err := threads.NewTracker(cfg.Cache.ThreadCapacity, repos.Messages, logger)
	if err != nil {
		return nil, err
	}

	var backupWriter *backup.Writer
	var sink pipeline.Backup
	if cfg.Backup.Enabled {
		backupWriter, err = backup.OpenWriter(cfg.Backup.Path, logger)
		if err != nil {
			return nil, err
		}
		sink = backupWriter
	}

	agg := aggregator.New(repos.Agents, repos.Interactions, logger)
	p := pipeline.New(ledger.New(logger), tracker, repos.Messages, repos, agg, sink, logger)
	cache := metrics.NewCache(agg, p, cfg.Cache.MetricsCapacity, cfg.Cache.MetricsTTL, logger)

	bot, err := alert.NewBot(cfg.Alerts.TelegramBotToken, cfg.Alerts.ChatID, cfg.Alerts.MinSeverity, repos.Patterns, logger)
	if err != nil {
		logger.Warn("Telegram alerts disabled, bot could not be created", zap.Error(err))
		bot = nil
	}
	var notifier detector.Notifier
	if bot != nil {
		notifier = bot
	}

	return &App{
		Config:     cfg,
		DB:         db,
		Repos:      repos,
		Aggregator: agg,
		Pipeline:   p,
		Metrics:    cache,
		Detector:   detector.New(repos.Messages, repos.Growth, repos.Patterns, agg, notifier, cfg.Detection, logger),
		Growth:     growth.NewTracker(agg, repos.Growth, cfg.Detection.GrowthThreshold, logger),
		Bot:        bot,
		backup:     backupWriter,
		logger:     logger,
	}, nil
}

// Warm rebuilds in-memory state from the database. When the store cannot be
// read the ledger stays empty and the process carries on with what it has.
func (a *App) Warm(ctx context.Context) {
	if err := a.Pipeline.Warm(ctx); err != nil {
		a.logger.Error("Failed to rebuild state from the message log, starting empty", zap.Error(err))
	}
}

// Server builds the HTTP API over the app's components.
func (a *App) Server() *server.Server {
	return server.NewServer(server.Handlers{
		Health:       handler.NewHealthHandler(a.DB, a.Repos.Messages, a.Pipeline, a.logger),
		Analytics:    handler.NewAnalyticsHandler(a.Metrics, a.logger),
		Messages:     handler.NewMessageHandler(a.Repos.Messages, a.logger),
		Interactions: handler.NewInteractionHandler(a.Aggregator, a.logger),
		Patterns:     handler.NewPatternHandler(a.Repos.Patterns, a.logger),
		Growth:       handler.NewGrowthHandler(a.Repos.Growth, a.logger),
		Commands:     handler.NewCommandHandler(a.Pipeline, a.Detector, a.Metrics, a.logger),
		Auth: handler.NewAuthHandler(
			service.NewAuthService(a.Config.Auth.Operators, []byte(a.Config.Auth.JWTSecret), a.Config.Auth.TokenTTL, a.logger),
			a.logger,
		),
	}, []byte(a.Config.Auth.JWTSecret), a.logger)
}

// Scheduler builds the periodic tasks: metrics refresh, detection and growth snapshot.
func (a *App) Scheduler() *scheduler.Scheduler {
	sc := a.Config.Scheduler
	return scheduler.New(a.logger,
		scheduler.Task{Name: "metrics_refresh", Interval: sc.MetricsInterval, Run: func(context.Context) error {
			a.Metrics.Refresh()
			return nil
		}},
		scheduler.Task{Name: "pattern_detection", Interval: sc.DetectionInterval, Run: func(ctx context.Context) error {
			a.Detector.RunDetection(ctx, time.Now())
			return nil
		}},
		scheduler.Task{Name: "growth_snapshot", Interval: sc.SnapshotInterval, Run: func(context.Context) error {
			_, err := a.Growth.SnapshotToday()
			return err
		}},
	)
}

// Run starts the background loops (scheduler, feed collector, Telegram bot)
// and blocks until ctx is cancelled and they have all stopped.
func (a *App) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.Scheduler().Run(ctx)
	}()

	if a.Config.Collector.Enabled {
		client := feed.NewClient(a.Config.Collector.URL, a.Config.Collector.RequestTimeout, a.logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Pipeline.Run(ctx, client, a.Config.Collector.PollInterval)
		}()
	} else {
		a.logger.Info("Feed collector is disabled")
	}

	if a.Bot != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.Bot.Start(ctx); err != nil {
				a.logger.Error("Telegram bot stopped", zap.Error(err))
			}
		}()
	}

	wg.Wait()
}

// Close flushes the backup log and closes the database.
func (a *App) Close() error {
	var firstErr error
	if a.backup != nil {
		if err := a.backup.Close(); err != nil {
			firstErr = fmt.Errorf("failed to close backup log: %w", err)
		}
	}
	if err := a.DB.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
