// Package cli is the lingoleap command line: the API server plus one-shot
// commands that operate directly on the configured store.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lingoleap/lingoleap-hub/config"
	"github.com/lingoleap/lingoleap-hub/internal/app"
	"github.com/lingoleap/lingoleap-hub/pkg/logger"
	"github.com/lingoleap/lingoleap-hub/pkg/timeutil"
)

// Options configures the root command. Zero values load from the environment.
type Options struct {
	// Config skips config.Load when set.
	Config *config.Config
	// Log replaces the logger built from the config.
	Log *logger.Logger
}

// runtime is the state the persistent pre-run prepares for every subcommand.
type runtime struct {
	opts Options

	cfg *config.Config
	log *logger.Logger

	backend  string
	logLevel string
	date     string
	asJSON   bool
}

// NewRootCmd creates the top-level "lingoleap" command.
func NewRootCmd(opts Options) *cobra.Command {
	rt := &runtime{opts: opts}

	root := &cobra.Command{
		Use:           "lingoleap",
		Short:         "LingoLeap progression hub: streaks, XP, lessons and the leaderboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.prepare()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&rt.backend, "backend", "", "Storage backend override: memory, sqlite, postgres or redis")
	pf.StringVar(&rt.logLevel, "log-level", "", "Log level override: debug, info, warn or error")
	pf.StringVar(&rt.date, "date", "", "Treat this YYYY-MM-DD as today instead of the system date")
	pf.BoolVar(&rt.asJSON, "json", false, "Print results as JSON")

	root.AddCommand(
		newServeCmd(rt),
		newMigrateCmd(rt),
		newSignUpCmd(rt),
		newLoginCmd(rt),
		newSurveyCmd(rt),
		newStreakCmd(rt),
		newXPCmd(rt),
		newScoreCmd(rt),
		newCompleteCmd(rt),
		newLessonsCmd(rt),
		newLeaderboardCmd(rt),
	)

	return root
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	root := NewRootCmd(Options{})
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func (rt *runtime) prepare() error {
	cfg := rt.opts.Config
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if rt.backend != "" {
		cfg.Storage.Backend = config.StorageBackend(strings.ToLower(rt.backend))
	}
	if rt.logLevel != "" {
		cfg.Observability.LogLevel = rt.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	rt.cfg = cfg

	rt.log = rt.opts.Log
	if rt.log == nil {
		rt.log = logger.New(logger.Options{
			Output:    os.Stderr,
			Level:     logger.ParseLevel(cfg.Observability.LogLevel),
			Format:    logger.Format(cfg.Observability.LogFormat),
			AddCaller: cfg.IsDevelopment(),
		})
	}
	return nil
}

// clock honours --date so streaks can be replayed for a given day.
func (rt *runtime) clock() (timeutil.Clock, error) {
	if rt.date == "" {
		return nil, nil
	}
	d, err := timeutil.ParseDate(rt.date)
	if err != nil {
		return nil, fmt.Errorf("invalid --date: %w", err)
	}
	return timeutil.ClockAt(d), nil
}

// withApp assembles the hub for one command and tears it down afterwards.
func (rt *runtime) withApp(ctx context.Context, fn func(context.Context, *app.App) error) (err error) {
	clock, err := rt.clock()
	if err != nil {
		return err
	}

	a, err := app.New(ctx, rt.cfg, rt.log, app.Options{Clock: clock})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(ctx, a)
}
