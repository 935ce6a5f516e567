// Package app assembles the hub from configuration: store, repositories,
// catalog, event bus, sessions and the application handlers.
package app

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lingoleap/lingoleap-hub/config"
	"github.com/lingoleap/lingoleap-hub/internal/application/command"
	"github.com/lingoleap/lingoleap-hub/internal/application/query"
	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
	"github.com/lingoleap/lingoleap-hub/internal/infrastructure/content"
	"github.com/lingoleap/lingoleap-hub/internal/infrastructure/messaging"
	"github.com/lingoleap/lingoleap-hub/internal/infrastructure/persistence/kv"
	"github.com/lingoleap/lingoleap-hub/internal/infrastructure/persistence/postgres"
	"github.com/lingoleap/lingoleap-hub/internal/infrastructure/persistence/redis"
	"github.com/lingoleap/lingoleap-hub/internal/infrastructure/persistence/sqlite"
	"github.com/lingoleap/lingoleap-hub/internal/infrastructure/session"
	"github.com/lingoleap/lingoleap-hub/pkg/logger"
	"github.com/lingoleap/lingoleap-hub/pkg/timeutil"
)

// EventBus is the bus the hub publishes to.
type EventBus interface {
	shared.EventBus
	Close() error
	Metrics() *messaging.Metrics
}

// Options overrides parts of the assembly. Zero values use the config.
type Options struct {
	// Clock replaces the system clock, e.g. for the CLI's --date flag.
	Clock timeutil.Clock
	// Store replaces the configured backend. The App takes ownership.
	Store kv.Store
}

// App holds every long-lived component.
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	Clock    timeutil.Clock
	Store    kv.Store
	Repos    kv.Repositories
	Catalog  *content.Catalog
	Bus      EventBus
	Sessions *session.Registry

	// Commands
	Streaks  *command.UpdateStreakHandler
	XP       *command.ApplyXPHandler
	Scores   *command.RecordScoreHandler
	Complete *command.CompleteActivityHandler
	SignUp   *command.SignUpHandler
	Auth     *command.SessionHandler
	Survey   *command.SaveSurveyHandler

	// Queries
	Leaderboard *query.GetLeaderboardHandler
	Progress    *query.ProgressHandler
	StreakView  *query.GetStreakHandler

	// fanoutClient is owned when event fan-out runs on a store other than Redis.
	fanoutClient *goredis.Client
}

// New builds the App. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (a *App, err error) {
	if log == nil {
		log = logger.Nop()
	}
	a = &App{Config: cfg, Log: log, Clock: opts.Clock}
	if a.Clock == nil {
		a.Clock = timeutil.SystemClock{Location: cfg.App.Location}
	}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 1. STORE
	// ─────────────────────────────────────────────────────────────────────────
	a.Store = opts.Store
	if a.Store == nil {
		if a.Store, err = OpenStore(ctx, cfg); err != nil {
			return a, err
		}
	}
	a.Repos = kv.NewRepositories(a.Store)
	log.Info("store ready", logger.String("backend", string(cfg.Storage.Backend)))

	// ─────────────────────────────────────────────────────────────────────────
	// 2. CONTENT
	// ─────────────────────────────────────────────────────────────────────────
	if a.Catalog, err = content.Load(cfg.Content.CatalogPath); err != nil {
		return a, fmt.Errorf("loading lesson catalog: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	if a.Bus, err = a.openBus(ctx); err != nil {
		return a, err
	}
	if err = a.Bus.SubscribeAll(messaging.LogHandler(log.With(logger.Component("events")))); err != nil {
		return a, err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	a.Sessions = session.NewRegistry(cfg.Session.TTL, a.Clock, log)

	a.Streaks = command.NewUpdateStreakHandler(a.Repos.Streaks, a.Clock, a.Bus, log)
	a.XP = command.NewApplyXPHandler(a.Repos.Proficiency, a.Bus, log)
	a.Scores = command.NewRecordScoreHandler(a.Repos.Progress, a.Catalog, a.Bus, log)
	a.Complete = command.NewCompleteActivityHandler(a.XP, a.Scores)
	a.SignUp = command.NewSignUpHandler(a.Repos.Users, a.Clock, cfg.Session.BcryptCost, a.Bus, log)
	a.Auth = command.NewSessionHandler(a.Repos.Users, a.Sessions, a.Streaks, a.Bus, log)
	a.Survey = command.NewSaveSurveyHandler(a.Repos.Proficiency, log)

	a.Leaderboard = query.NewGetLeaderboardHandler(a.Repos.Users, a.Repos.Proficiency, log)
	a.Progress = query.NewProgressHandler(a.Repos.Proficiency, a.Repos.Progress, a.Catalog, log)
	a.StreakView = query.NewGetStreakHandler(a.Repos.Streaks, log)

	return a, nil
}

func (a *App) openBus(ctx context.Context) (EventBus, error) {
	cfg := a.Config
	local := messaging.InMemoryEventBusConfig{
		AsyncMode:      cfg.Events.Async,
		WorkerPoolSize: cfg.Events.Workers,
		Logger:         a.Log,
	}
	if !cfg.Events.RedisFanout {
		return messaging.NewInMemoryEventBus(local), nil
	}

	var client *goredis.Client
	if rs, ok := a.Store.(*redis.Store); ok {
		client = rs.Client()
	} else {
		var err error
		if client, err = redis.NewClient(ctx, RedisConfig(cfg)); err != nil {
			return nil, fmt.Errorf("event fan-out: %w", err)
		}
		a.fanoutClient = client
	}

	channel := cfg.Events.Channel
	if channel == "" {
		channel = redis.PubSubChannel(cfg.Redis.Namespace, "events")
	}
	bus, err := messaging.NewRedisEventBus(ctx, messaging.RedisEventBusConfig{
		Client:         client,
		Channel:        channel,
		LocalBusConfig: local,
		Logger:         a.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("event fan-out: %w", err)
	}
	return bus, nil
}

// Close drains the bus and releases the store. Safe on a partly built App.
func (a *App) Close() error {
	var errs []error
	if a.Bus != nil {
		errs = append(errs, a.Bus.Close())
	}
	if a.fanoutClient != nil {
		errs = append(errs, a.fanoutClient.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}

// ══════════════════════════════════════════════════════════════════════════════
// STORE SELECTION
// ══════════════════════════════════════════════════════════════════════════════

// OpenStore opens the backend named by cfg.Storage.Backend. The postgres
// backend applies pending migrations before returning.
func OpenStore(ctx context.Context, cfg *config.Config) (kv.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return kv.NewMemoryStore(), nil
	case config.BackendSQLite:
		return opened(sqlite.Open(ctx, sqlite.Config{Path: cfg.SQLite.Path, BusyTimeout: cfg.SQLite.BusyTimeout}))
	case config.BackendPostgres:
		return opened(postgres.Open(ctx, PostgresConfig(cfg)))
	case config.BackendRedis:
		return opened(redis.Open(ctx, RedisConfig(cfg)))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// opened keeps a failed open from leaking a typed nil into the interface.
func opened[S kv.Store](s S, err error) (kv.Store, error) {
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return s, nil
}

// PostgresConfig maps the Database section onto the pool settings.
func PostgresConfig(cfg *config.Config) postgres.Config {
	pc := postgres.DefaultConfig()
	pc.URL = cfg.Database.URL
	pc.MaxConns = int32(cfg.Database.MaxConns)
	pc.MinConns = int32(cfg.Database.MinConns)
	pc.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pc.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	pc.ConnectTimeout = cfg.Database.ConnectTimeout
	return pc
}

// RedisConfig maps the Redis section onto the client settings.
func RedisConfig(cfg *config.Config) redis.Config {
	rc := redis.DefaultConfig()
	rc.URL = cfg.Redis.URL
	rc.Host = cfg.Redis.Host
	rc.Port = cfg.Redis.Port
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	rc.Namespace = cfg.Redis.Namespace
	rc.PoolSize = cfg.Redis.PoolSize
	rc.MinIdleConns = cfg.Redis.MinIdleConns
	rc.DialTimeout = cfg.Redis.DialTimeout
	rc.ReadTimeout = cfg.Redis.ReadTimeout
	rc.WriteTimeout = cfg.Redis.WriteTimeout
	return rc
}
