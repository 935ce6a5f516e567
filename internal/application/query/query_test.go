package query_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingoleap/lingoleap-hub/internal/application/query"
	"github.com/lingoleap/lingoleap-hub/internal/domain/account"
	"github.com/lingoleap/lingoleap-hub/internal/domain/leaderboard"
	"github.com/lingoleap/lingoleap-hub/internal/domain/lesson"
	"github.com/lingoleap/lingoleap-hub/internal/domain/proficiency"
	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
	"github.com/lingoleap/lingoleap-hub/internal/domain/streak"
	"github.com/lingoleap/lingoleap-hub/internal/infrastructure/content"
	"github.com/lingoleap/lingoleap-hub/internal/infrastructure/persistence/kv"
)

type brokenLister struct{}

func (brokenLister) List(context.Context) ([]shared.Username, error) { return nil, assert.AnError }

type brokenProficiency struct{}

func (brokenProficiency) Get(context.Context, shared.Username) (proficiency.Record, error) {
	return nil, assert.AnError
}

func (brokenProficiency) All(context.Context) (map[shared.Username]proficiency.Record, error) {
	return nil, assert.AnError
}

type brokenStreaks struct{}

func (brokenStreaks) Get(context.Context, shared.Username) (streak.Data, error) {
	return streak.Data{}, assert.AnError
}

func defaultCatalog(t *testing.T) *content.Catalog {
	t.Helper()
	c, err := content.Default()
	require.NoError(t, err)
	return c
}

func seed(t *testing.T) kv.Repositories {
	t.Helper()
	ctx := context.Background()
	repos := kv.NewRepositories(kv.NewMemoryStore())

	for _, u := range []shared.Username{"ana", "bo", "cy"} {
		created, err := repos.Users.Create(ctx, account.User{Username: u, PasswordHash: "x", CreatedAt: time.Unix(0, 0)})
		require.NoError(t, err)
		require.True(t, created)
	}
	require.NoError(t, repos.Proficiency.Replace(ctx, "ana", proficiency.Record{
		"hi": {Level: proficiency.Intermediate, XP: 1200},
		"ta": {Level: proficiency.Beginner, XP: 300},
	}))
	require.NoError(t, repos.Proficiency.Replace(ctx, "bo", proficiency.Record{
		"kn": {Level: proficiency.Beginner, XP: 1500},
	}))
	// dee never signed up but has XP on record.
	require.NoError(t, repos.Proficiency.Replace(ctx, "dee", proficiency.Record{
		"te": {Level: proficiency.Beginner, XP: 10},
	}))
	return repos
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

func TestGetLeaderboard_RanksEveryone(t *testing.T) {
	repos := seed(t)
	h := query.NewGetLeaderboardHandler(repos.Users, repos.Proficiency, nil)

	res, err := h.Handle(context.Background(), query.GetLeaderboardQuery{})
	require.NoError(t, err)

	assert.Equal(t, []leaderboard.Entry{
		{Rank: 1, Username: "ana", TotalXP: 1500},
		{Rank: 2, Username: "bo", TotalXP: 1500},
		{Rank: 3, Username: "dee", TotalXP: 10},
		{Rank: 4, Username: "cy", TotalXP: 0},
	}, res.Entries, "ties break by username")
	assert.Equal(t, 4, res.TotalCount)
	assert.False(t, res.HasMore)

	assert.Equal(t, 3010, leaderboard.TotalXP(res.Entries))
}

func TestGetLeaderboard_Paging(t *testing.T) {
	repos := seed(t)
	h := query.NewGetLeaderboardHandler(repos.Users, repos.Proficiency, nil)
	ctx := context.Background()

	res, err := h.Handle(ctx, query.GetLeaderboardQuery{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, leaderboard.Rank(2), res.Entries[0].Rank)
	assert.Equal(t, shared.Username("bo"), res.Entries[0].Username)
	assert.True(t, res.HasMore)

	res, err = h.Handle(ctx, query.GetLeaderboardQuery{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
	assert.NotNil(t, res.Entries)
	assert.Equal(t, 4, res.TotalCount)

	_, err = h.Handle(ctx, query.GetLeaderboardQuery{Limit: -1})
	assert.True(t, shared.IsValidation(err))
	_, err = h.Handle(ctx, query.GetLeaderboardQuery{Offset: -1})
	assert.True(t, shared.IsValidation(err))
}

func TestGetLeaderboard_StorageFailures(t *testing.T) {
	repos := seed(t)
	ctx := context.Background()

	res, err := query.NewGetLeaderboardHandler(brokenLister{}, repos.Proficiency, nil).
		Handle(ctx, query.GetLeaderboardQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalCount, "records alone still rank")

	res, err = query.NewGetLeaderboardHandler(repos.Users, brokenProficiency{}, nil).
		Handle(ctx, query.GetLeaderboardQuery{})
	require.NoError(t, err)
	require.Len(t, res.Entries, 3)
	for _, e := range res.Entries {
		assert.Zero(t, e.TotalXP)
	}

	res, err = query.NewGetLeaderboardHandler(brokenLister{}, brokenProficiency{}, nil).
		Handle(ctx, query.GetLeaderboardQuery{})
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

func TestProficiency_DefaultsAndFailures(t *testing.T) {
	repos := seed(t)
	ctx := context.Background()
	h := query.NewProgressHandler(repos.Proficiency, repos.Progress, defaultCatalog(t), nil)

	st, err := h.Proficiency(ctx, query.UserLanguageQuery{Username: "ana", Language: "hi"})
	require.NoError(t, err)
	assert.Equal(t, proficiency.State{Level: proficiency.Intermediate, XP: 1200}, st)

	st, err = h.Proficiency(ctx, query.UserLanguageQuery{Username: "ana", Language: "ml"})
	require.NoError(t, err)
	assert.Equal(t, proficiency.Default(), st)

	_, err = h.Proficiency(ctx, query.UserLanguageQuery{Username: "", Language: "hi"})
	assert.True(t, shared.IsValidation(err))

	broken := query.NewProgressHandler(brokenProficiency{}, repos.Progress, defaultCatalog(t), nil)
	st, err = broken.Proficiency(ctx, query.UserLanguageQuery{Username: "ana", Language: "hi"})
	require.NoError(t, err)
	assert.Equal(t, proficiency.Default(), st)
}

func TestAvailableLessons_GatedByLevel(t *testing.T) {
	repos := seed(t)
	ctx := context.Background()
	h := query.NewProgressHandler(repos.Proficiency, repos.Progress, defaultCatalog(t), nil)

	_, err := repos.Progress.Update(ctx, "ana", func(r lesson.Record) (lesson.Record, bool, error) {
		if r == nil {
			r = lesson.Record{}
		}
		r["hi"] = lesson.LanguageProgress{1: {Completed: true, Scores: map[string]int{"x": 90}}}
		return r, true, nil
	})
	require.NoError(t, err)

	res, err := h.AvailableLessons(ctx, query.UserLanguageQuery{Username: "ana", Language: "hi"})
	require.NoError(t, err)
	assert.Equal(t, proficiency.Intermediate, res.Level)

	ids := make([]int, 0, len(res.Lessons))
	for _, l := range res.Lessons {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []int{1, 2, 3}, ids, "the Advanced lesson stays locked")
	assert.True(t, res.Lessons[0].Completed)
	assert.False(t, res.Lessons[1].Completed)
	assert.Equal(t, []lesson.Status{lesson.StatusCompleted, lesson.StatusUnlocked, lesson.StatusLocked}, statuses(res))

	res, err = h.AvailableLessons(ctx, query.UserLanguageQuery{Username: "cy", Language: "hi"})
	require.NoError(t, err)
	assert.Len(t, res.Lessons, 2)
	assert.Equal(t, []lesson.Status{lesson.StatusUnlocked, lesson.StatusLocked}, statuses(res))

	progress, err := h.LessonProgress(ctx, query.UserLanguageQuery{Username: "ana", Language: "hi"})
	require.NoError(t, err)
	assert.True(t, progress[1].Completed)
}

func statuses(res query.AvailableLessonsResult) []lesson.Status {
	out := make([]lesson.Status, 0, len(res.Lessons))
	for _, l := range res.Lessons {
		out = append(out, l.Status)
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK
// ══════════════════════════════════════════════════════════════════════════════

func TestGetStreak_ReadsWithoutRecordingAVisit(t *testing.T) {
	repos := seed(t)
	ctx := context.Background()
	require.NoError(t, repos.Streaks.Set(ctx, "ana", streak.Data{Count: 4, LastLogin: "2024-06-01"}))

	h := query.NewGetStreakHandler(repos.Streaks, nil)
	for range 2 {
		d, err := h.Handle(ctx, "ana")
		require.NoError(t, err)
		assert.Equal(t, streak.Data{Count: 4, LastLogin: "2024-06-01"}, d)
	}

	d, err := h.Handle(ctx, "cy")
	require.NoError(t, err)
	assert.Equal(t, streak.Default(), d)

	_, err = h.Handle(ctx, "")
	assert.True(t, shared.IsValidation(err))

	d, err = query.NewGetStreakHandler(brokenStreaks{}, nil).Handle(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, streak.Default(), d)
}
