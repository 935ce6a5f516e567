package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lingoleap/lingoleap-hub/config"
	"github.com/lingoleap/lingoleap-hub/internal/app"
	httpserver "github.com/lingoleap/lingoleap-hub/internal/interface/http"
	"github.com/lingoleap/lingoleap-hub/internal/interface/http/handlers"
	"github.com/lingoleap/lingoleap-hub/pkg/logger"
)

func newServeCmd(rt *runtime) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				rt.cfg.HTTP.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return rt.withApp(ctx, func(ctx context.Context, a *app.App) error {
				return serve(ctx, a)
			})
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Listen port override")
	return cmd
}

// serve runs the API and the session sweeper until ctx ends or either fails.
func serve(ctx context.Context, a *app.App) error {
	cfg := a.Config
	log := a.Log.With(logger.Component("serve"))

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("store", handlers.NewPingCheck(a.Store))

	srv := httpserver.NewServer(serverConfig(cfg), httpserver.Dependencies{
		UpdateStreak:     a.Streaks,
		ApplyXP:          a.XP,
		RecordScore:      a.Scores,
		CompleteActivity: a.Complete,
		SignUp:           a.SignUp,
		Sessions:         a.Auth,
		SaveSurvey:       a.Survey,
		Leaderboard:      a.Leaderboard,
		Progress:         a.Progress,
		Streak:           a.StreakView,
		HealthChecker:    health,
		Logger:           a.Log,
	})

	log.Info("LingoLeap hub is running",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("backend", string(cfg.Storage.Backend)),
		logger.String("address", cfg.HTTPAddr()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, cfg.App.ShutdownTimeout)
	})
	g.Go(func() error {
		return a.Sessions.Run(gctx, cfg.Session.SweepInterval)
	})

	err := g.Wait()
	log.Info("shutdown complete")
	return err
}

func serverConfig(cfg *config.Config) httpserver.Config {
	sc := httpserver.DefaultConfig()
	sc.Host = cfg.HTTP.Host
	sc.Port = cfg.HTTP.Port
	if cfg.HTTP.ReadTimeout > 0 {
		sc.ReadTimeout = cfg.HTTP.ReadTimeout
	}
	if cfg.HTTP.WriteTimeout > 0 {
		sc.WriteTimeout = cfg.HTTP.WriteTimeout
	}
	if cfg.HTTP.IdleTimeout > 0 {
		sc.IdleTimeout = cfg.HTTP.IdleTimeout
	}
	sc.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	sc.EnableCORS = len(cfg.HTTP.CORSOrigins) > 0
	sc.AllowedOrigins = cfg.HTTP.CORSOrigins
	sc.RequireSession = cfg.HTTP.RequireSession
	if cfg.App.Version != "" {
		sc.Version = cfg.App.Version
	}
	return sc
}
