package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lingoleap/lingoleap-hub/internal/app"
	"github.com/lingoleap/lingoleap-hub/internal/application/command"
	"github.com/lingoleap/lingoleap-hub/internal/application/query"
	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK & SURVEY
// ══════════════════════════════════════════════════════════════════════════════

func newStreakCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "streak <username>",
		Short: "Record a login for today (or --date) and show the streak",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.Streaks.Handle(ctx, command.UpdateStreakCommand{Username: args[0]})
				if err != nil {
					return err
				}
				return rt.emit(cmd, res.Streak, func(w io.Writer) {
					fmt.Fprintf(w, "%s: %d day streak (%s, last login %s)\n",
						args[0], res.Streak.Count, res.Outcome, res.Streak.LastLogin)
				})
			})
		},
	}
}

func newSurveyCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:     "survey <username> <language=level>...",
		Short:   "Save onboarding survey answers, replacing all proficiency",
		Example: "  lingoleap survey ana hi=Beginner ta=Intermediate kn=None",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			levels := make(map[string]string, len(args)-1)
			for _, pair := range args[1:] {
				lang, level, ok := strings.Cut(pair, "=")
				if !ok {
					return fmt.Errorf("expected language=level, got %q", pair)
				}
				levels[lang] = level
			}

			return rt.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				rec, err := a.Survey.Handle(ctx, command.SaveSurveyCommand{Username: args[0], Levels: levels})
				if err != nil {
					return err
				}
				return rt.emit(cmd, rec, func(w io.Writer) {
					langs := make([]string, 0, len(rec))
					for lang := range rec {
						langs = append(langs, string(lang))
					}
					sort.Strings(langs)
					for _, lang := range langs {
						st := rec[shared.LanguageCode(lang)]
						fmt.Fprintf(w, "%s: %s (%d XP)\n", lang, st.Level, st.XP)
					}
				})
			})
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// XP & LESSONS
// ══════════════════════════════════════════════════════════════════════════════

func newXPCmd(rt *runtime) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "xp <username> <language> <amount>",
		Short: "Award XP in a language",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseInt("amount", args[2])
			if err != nil {
				return err
			}

			return rt.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.XP.Handle(ctx, command.ApplyXPCommand{
					Username: args[0],
					Language: args[1],
					Amount:   amount,
					Source:   source,
				})
				if err != nil {
					return err
				}
				return rt.emit(cmd, res, func(w io.Writer) {
					fmt.Fprintf(w, "%s/%s: %s, %d XP\n", args[0], args[1], res.NewState.Level, res.NewState.XP)
					if res.LeveledUp {
						fmt.Fprintf(w, "level up: %s -> %s\n", res.OldLevel, res.NewState.Level)
					}
				})
			})
		},
	}

	cmd.Flags().StringVar(&source, "source", "manual", "What earned the XP")
	return cmd
}

func newScoreCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "score <username> <language> <lesson-id> <activity-title> <score>",
		Short: "Record an activity score without awarding XP",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := scoreArgs(args)
			if err != nil {
				return err
			}

			return rt.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.Scores.Handle(ctx, c)
				if err != nil {
					return err
				}
				return rt.emit(cmd, res, func(w io.Writer) {
					if res.Recorded {
						fmt.Fprintf(w, "recorded %d for %q\n", c.Score, c.ActivityTitle)
					} else {
						fmt.Fprintf(w, "kept the existing better score for %q\n", c.ActivityTitle)
					}
					if res.JustCompleted {
						fmt.Fprintf(w, "lesson %d completed\n", c.LessonID)
					}
				})
			})
		},
	}
}

func newCompleteCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <username> <language> <lesson-id> <activity-title> <score>",
		Short: "Finish an activity: award XP for the score and record it",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := scoreArgs(args)
			if err != nil {
				return err
			}

			return rt.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.Complete.Handle(ctx, command.CompleteActivityCommand(c))
				if err != nil {
					return err
				}
				return rt.emit(cmd, res, func(w io.Writer) {
					fmt.Fprintf(w, "+%d XP (%s, %d XP)\n", res.XPGained, res.Proficiency.Level, res.Proficiency.XP)
					if res.LeveledUp {
						fmt.Fprintln(w, "level up!")
					}
					if res.JustCompleted {
						fmt.Fprintf(w, "lesson %d completed\n", c.LessonID)
					}
				})
			})
		},
	}
}

func newLessonsCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "lessons <username> <language>",
		Short: "List the lessons at the user's level and which ones are playable",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.Progress.AvailableLessons(ctx, query.UserLanguageQuery{Username: args[0], Language: args[1]})
				if err != nil {
					return err
				}
				return rt.emit(cmd, res, func(w io.Writer) {
					fmt.Fprintf(w, "level: %s\n", res.Level)
					for _, l := range res.Lessons {
						mark := " "
						if l.Completed {
							mark = "x"
						}
						fmt.Fprintf(w, "[%s] %d. %s (%s, %s)\n", mark, l.ID, l.Title, l.Level, l.Status)
					}
				})
			})
		},
	}
}

func scoreArgs(args []string) (command.RecordScoreCommand, error) {
	lessonID, err := parseInt("lesson-id", args[2])
	if err != nil {
		return command.RecordScoreCommand{}, err
	}
	score, err := parseInt("score", args[4])
	if err != nil {
		return command.RecordScoreCommand{}, err
	}
	return command.RecordScoreCommand{
		Username:      args[0],
		Language:      args[1],
		LessonID:      lessonID,
		ActivityTitle: args[3],
		Score:         score,
	}, nil
}
