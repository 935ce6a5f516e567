package command_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lingoleap/lingoleap-hub/internal/application/command"
	"github.com/lingoleap/lingoleap-hub/internal/domain/lesson"
	"github.com/lingoleap/lingoleap-hub/internal/domain/proficiency"
	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
	"github.com/lingoleap/lingoleap-hub/internal/domain/streak"
	"github.com/lingoleap/lingoleap-hub/internal/infrastructure/persistence/kv"
	"github.com/lingoleap/lingoleap-hub/internal/infrastructure/session"
	"github.com/lingoleap/lingoleap-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURES
// ══════════════════════════════════════════════════════════════════════════════

type recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

func (r *recorder) Publish(e shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []shared.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shared.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType())
	}
	return out
}

// staticCatalog serves one language from a fixed list.
type staticCatalog map[int]lesson.Template

func (c staticCatalog) Lessons(shared.LanguageCode) []lesson.Template {
	out := make([]lesson.Template, 0, len(c))
	for _, t := range c {
		out = append(out, t)
	}
	return out
}

func (c staticCatalog) Lesson(_ shared.LanguageCode, id int) (lesson.Template, bool) {
	t, ok := c[id]
	return t, ok
}

// brokenStore fails every operation.
type brokenStore struct{}

var errDisk = errors.New("disk on fire")

func (brokenStore) Get(context.Context, string) ([]byte, error)        { return nil, errDisk }
func (brokenStore) Set(context.Context, string, []byte) error          { return errDisk }
func (brokenStore) Delete(context.Context, string) error               { return errDisk }
func (brokenStore) Keys(context.Context, string) ([]string, error)     { return nil, errDisk }
func (brokenStore) Update(context.Context, string, kv.UpdateFunc) error { return errDisk }
func (brokenStore) Ping(context.Context) error                         { return errDisk }
func (brokenStore) Close() error                                       { return nil }

// writeFailStore reads from an inner store but rejects every write.
type writeFailStore struct{ kv.Store }

func (s writeFailStore) Set(context.Context, string, []byte) error { return errDisk }
func (s writeFailStore) Update(ctx context.Context, key string, fn kv.UpdateFunc) error {
	raw, err := s.Store.Get(ctx, key)
	exists := err == nil
	if _, err := fn(raw, exists); err != nil {
		return err
	}
	return errDisk
}

// setFailStore rejects plain writes and only lets atomic updates through.
type setFailStore struct{ kv.Store }

func (setFailStore) Set(context.Context, string, []byte) error { return errDisk }

type fixture struct {
	repos    kv.Repositories
	clock    *timeutil.FixedClock
	events   *recorder
	streaks  *command.UpdateStreakHandler
	xp       *command.ApplyXPHandler
	scores   *command.RecordScoreHandler
	complete *command.CompleteActivityHandler
	signUp   *command.SignUpHandler
	sessions *command.SessionHandler
	survey   *command.SaveSurveyHandler
}

func newFixture(t *testing.T, store kv.Store) *fixture {
	t.Helper()
	if store == nil {
		store = kv.NewMemoryStore()
	}
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{
		repos:  kv.NewRepositories(store),
		clock:  timeutil.ClockAt("2024-03-10"),
		events: &recorder{},
	}
	catalog := staticCatalog{
		7: {ID: 7, Title: "Two Games", Level: proficiency.Beginner, Activities: []lesson.Activity{
			{Type: "LISTEN_MATCH", Title: "A"},
			{Type: "SPEAK_THE_WORD", Title: "B"},
		}},
	}

	f.streaks = command.NewUpdateStreakHandler(f.repos.Streaks, f.clock, f.events, nil)
	f.xp = command.NewApplyXPHandler(f.repos.Proficiency, f.events, nil)
	f.scores = command.NewRecordScoreHandler(f.repos.Progress, catalog, f.events, nil)
	f.complete = command.NewCompleteActivityHandler(f.xp, f.scores)
	f.signUp = command.NewSignUpHandler(f.repos.Users, f.clock, bcrypt.MinCost, f.events, nil)
	f.sessions = command.NewSessionHandler(f.repos.Users, session.NewRegistry(72*time.Hour, f.clock, nil), f.streaks, f.events, nil)
	f.survey = command.NewSaveSurveyHandler(f.repos.Proficiency, nil)
	return f
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK
// ══════════════════════════════════════════════════════════════════════════════

func TestUpdateStreak_AnaScenario(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	steps := []struct {
		day   timeutil.Date
		count int
	}{
		{"2024-03-10", 1},
		{"2024-03-10", 1},
		{"2024-03-11", 2},
		{"2024-03-14", 1},
	}
	for _, s := range steps {
		f.clock.SetDate(s.day)
		res, err := f.streaks.Handle(ctx, command.UpdateStreakCommand{Username: "ana"})
		require.NoError(t, err)
		assert.Equal(t, streak.Data{Count: s.count, LastLogin: s.day}, res.Streak, s.day)
		assert.True(t, res.Persisted)
	}

	stored, err := f.repos.Streaks.Get(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, streak.Data{Count: 1, LastLogin: "2024-03-14"}, stored)

	// The repeated same-day login publishes nothing.
	assert.Len(t, f.events.types(), 3)
}

func TestUpdateStreak_ExplicitDateOverridesClock(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.streaks.Handle(context.Background(), command.UpdateStreakCommand{Username: "ana", Today: "2020-01-01"})
	require.NoError(t, err)
	assert.Equal(t, timeutil.Date("2020-01-01"), res.Streak.LastLogin)
}

func TestUpdateStreak_StorageFailuresFallBack(t *testing.T) {
	ctx := context.Background()

	t.Run("read", func(t *testing.T) {
		f := newFixture(t, brokenStore{})
		res, err := f.streaks.Handle(ctx, command.UpdateStreakCommand{Username: "ana"})
		require.NoError(t, err)
		assert.Equal(t, streak.Data{Count: 1, LastLogin: "2024-03-10"}, res.Streak)
		assert.False(t, res.Persisted)
	})

	t.Run("write", func(t *testing.T) {
		inner := kv.NewMemoryStore()
		require.NoError(t, kv.NewRepositories(inner).Streaks.Set(ctx, "ana", streak.Data{Count: 4, LastLogin: "2024-03-09"}))

		f := newFixture(t, writeFailStore{inner})
		res, err := f.streaks.Handle(ctx, command.UpdateStreakCommand{Username: "ana"})
		require.NoError(t, err)
		assert.Equal(t, streak.Data{Count: 5, LastLogin: "2024-03-10"}, res.Streak)
		assert.False(t, res.Persisted)
	})
}

func TestUpdateStreak_RejectsBadUsername(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.streaks.Handle(context.Background(), command.UpdateStreakCommand{Username: "  "})
	assert.True(t, shared.IsValidation(err))
}

// ══════════════════════════════════════════════════════════════════════════════
// XP
// ══════════════════════════════════════════════════════════════════════════════

func TestApplyXP_BoScenario(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.xp.Handle(ctx, command.ApplyXPCommand{Username: "bo", Language: "hi", Amount: 950})
	require.NoError(t, err)
	assert.False(t, res.LeveledUp)
	assert.Equal(t, proficiency.State{Level: proficiency.Beginner, XP: 950}, res.NewState)

	res, err = f.xp.Handle(ctx, command.ApplyXPCommand{Username: "bo", Language: "hi", Amount: 60})
	require.NoError(t, err)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, proficiency.State{Level: proficiency.Intermediate, XP: 1010}, res.NewState)

	assert.Equal(t, []shared.EventType{
		shared.EventXPGained, shared.EventXPGained, shared.EventLevelUp,
	}, f.events.types())
}

func TestApplyXP_Validation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	cases := []command.ApplyXPCommand{
		{Username: "bo", Language: "hi", Amount: -1},
		{Username: "bo", Language: "Hindi", Amount: 1},
		{Username: "", Language: "hi", Amount: 1},
	}
	for _, c := range cases {
		_, err := f.xp.Handle(ctx, c)
		assert.True(t, shared.IsValidation(err), "%+v", c)
	}

	rec, err := f.repos.Proficiency.Get(ctx, "bo")
	require.NoError(t, err)
	assert.Empty(t, rec)
}

func TestApplyXP_ZeroDeltaNeverChangesLevel(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.xp.Handle(ctx, command.ApplyXPCommand{Username: "bo", Language: "hi", Amount: 999})
	require.NoError(t, err)

	res, err := f.xp.Handle(ctx, command.ApplyXPCommand{Username: "bo", Language: "hi", Amount: 0})
	require.NoError(t, err)
	assert.False(t, res.LeveledUp)
	assert.Equal(t, 999, res.NewState.XP)
}

func TestApplyXP_ConcurrentUpdatesAreNotLost(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	const workers, perWorker = 10, 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, err := f.xp.Handle(ctx, command.ApplyXPCommand{Username: "bo", Language: "hi", Amount: 5})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	rec, err := f.repos.Proficiency.Get(ctx, "bo")
	require.NoError(t, err)
	assert.Equal(t, proficiency.State{Level: proficiency.Intermediate, XP: workers * perWorker * 5}, rec.Get("hi"))

	levelUps := 0
	for _, typ := range f.events.types() {
		if typ == shared.EventLevelUp {
			levelUps++
		}
	}
	assert.Equal(t, 1, levelUps)
}

func TestApplyXP_OverflowIsRejectedAndNothingIsStored(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.xp.Handle(ctx, command.ApplyXPCommand{Username: "bo", Language: "hi", Amount: 3500})
	require.NoError(t, err)
	before := len(f.events.types())

	res, err := f.xp.Handle(ctx, command.ApplyXPCommand{Username: "bo", Language: "hi", Amount: math.MaxInt})
	require.ErrorIs(t, err, shared.ErrXPOverflow)
	assert.True(t, shared.IsValidation(err))
	assert.Equal(t, proficiency.Result{}, res)

	rec, err := f.repos.Proficiency.Get(ctx, "bo")
	require.NoError(t, err)
	assert.Equal(t, proficiency.State{Level: proficiency.Advanced, XP: 3500}, rec.Get("hi"))
	assert.Len(t, f.events.types(), before)
}

func TestApplyXP_StorageFailureReturnsDefaultBasedResult(t *testing.T) {
	f := newFixture(t, brokenStore{})
	res, err := f.xp.Handle(context.Background(), command.ApplyXPCommand{Username: "bo", Language: "hi", Amount: 1200})
	require.NoError(t, err)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, 1200, res.NewState.XP)
	assert.Empty(t, f.events.types())
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON SCORES
// ══════════════════════════════════════════════════════════════════════════════

func TestRecordScore_LessonScenario(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	score := func(title string, s int) command.RecordScoreResult {
		t.Helper()
		res, err := f.scores.Handle(ctx, command.RecordScoreCommand{
			Username: "cy", Language: "hi", LessonID: 7, ActivityTitle: title, Score: s,
		})
		require.NoError(t, err)
		return res
	}

	res := score("A", 80)
	assert.Equal(t, lesson.Progress{Completed: false, Scores: map[string]int{"A": 80}}, res.Progress[7])

	res = score("A", 60)
	assert.False(t, res.Recorded)
	assert.Equal(t, 80, res.Progress[7].Scores["A"])

	res = score("B", 90)
	assert.True(t, res.JustCompleted)
	assert.Equal(t, lesson.Progress{Completed: true, Scores: map[string]int{"A": 80, "B": 90}}, res.Progress[7])

	stored, err := f.repos.Progress.Get(ctx, "cy")
	require.NoError(t, err)
	assert.Equal(t, res.Progress, stored.Get("hi"))

	assert.Equal(t, []shared.EventType{shared.EventLessonCompleted}, f.events.types())
}

func TestRecordScore_UnknownLessonNeverCompletes(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.scores.Handle(context.Background(), command.RecordScoreCommand{
		Username: "cy", Language: "hi", LessonID: 99, ActivityTitle: "X", Score: 100,
	})
	require.NoError(t, err)
	assert.True(t, res.Recorded)
	assert.False(t, res.Progress[99].Completed)
}

func TestRecordScore_Validation(t *testing.T) {
	f := newFixture(t, nil)
	for _, c := range []command.RecordScoreCommand{
		{Username: "cy", Language: "hi", LessonID: 7, ActivityTitle: "A", Score: 101},
		{Username: "cy", Language: "hi", LessonID: 7, ActivityTitle: "A", Score: -1},
		{Username: "cy", Language: "hi", LessonID: 0, ActivityTitle: "A", Score: 50},
		{Username: "cy", Language: "hi", LessonID: 7, ActivityTitle: " ", Score: 50},
	} {
		_, err := f.scores.Handle(context.Background(), c)
		assert.True(t, shared.IsValidation(err), "%+v", c)
	}
}

func TestCompleteActivity_AwardsXPAndRecordsScore(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.complete.Handle(ctx, command.CompleteActivityCommand{
		Username: "cy", Language: "hi", LessonID: 7, ActivityTitle: "A", Score: 85,
	})
	require.NoError(t, err)
	assert.Equal(t, 128, res.XPGained)
	assert.Equal(t, 128, res.Proficiency.XP)
	assert.Equal(t, 85, res.Progress[7].Scores["A"])
	assert.False(t, res.JustCompleted)

	res, err = f.complete.Handle(ctx, command.CompleteActivityCommand{
		Username: "cy", Language: "hi", LessonID: 7, ActivityTitle: "B", Score: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, 278, res.Proficiency.XP)
	assert.True(t, res.JustCompleted)
}

func TestCompleteActivity_InvalidScoreAwardsNothing(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.complete.Handle(ctx, command.CompleteActivityCommand{
		Username: "cy", Language: "hi", LessonID: 7, ActivityTitle: "A", Score: 150,
	})
	require.Error(t, err)

	rec, err := f.repos.Proficiency.Get(ctx, "cy")
	require.NoError(t, err)
	assert.Empty(t, rec)
}

// ══════════════════════════════════════════════════════════════════════════════
// ACCOUNTS
// ══════════════════════════════════════════════════════════════════════════════

func TestSignUpAndLogin(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.signUp.Handle(ctx, command.SignUpCommand{Username: "ana", Password: "s3cret"})
	require.NoError(t, err)
	assert.True(t, res.Success)

	res, err = f.signUp.Handle(ctx, command.SignUpCommand{Username: "ana", Password: "other"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Username already exists.", res.Message)

	user, err := f.repos.Users.Get(ctx, "ana")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", user.PasswordHash)

	bad, err := f.sessions.Login(ctx, command.LoginCommand{Username: "ana", Password: "wrong"})
	require.NoError(t, err)
	assert.False(t, bad.Success)
	assert.Equal(t, "Invalid username or password.", bad.Message)

	unknown, err := f.sessions.Login(ctx, command.LoginCommand{Username: "zed", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, bad, unknown)

	ok, err := f.sessions.Login(ctx, command.LoginCommand{Username: "ana", Password: "s3cret"})
	require.NoError(t, err)
	require.True(t, ok.Success)
	assert.NotEmpty(t, ok.Token)
	assert.Equal(t, shared.Username("ana"), ok.User.Username)
	assert.Equal(t, streak.Data{Count: 1, LastLogin: "2024-03-10"}, *ok.Streak)

	f.clock.SetDate("2024-03-11")
	resumed, err := f.sessions.Resume(ctx, ok.Token)
	require.NoError(t, err)
	assert.Equal(t, 2, resumed.Streak.Count)

	who, err := f.sessions.Authenticate(ok.Token)
	require.NoError(t, err)
	assert.Equal(t, shared.Username("ana"), who)

	f.sessions.Logout(ctx, ok.Token)
	_, err = f.sessions.Resume(ctx, ok.Token)
	assert.True(t, shared.IsUnauthorized(err))
}

func TestSignUp_Validation(t *testing.T) {
	f := newFixture(t, nil)
	for _, c := range []command.SignUpCommand{
		{Username: "", Password: "pw"},
		{Username: "has space", Password: "pw"},
		{Username: "ana", Password: ""},
	} {
		_, err := f.signUp.Handle(context.Background(), c)
		assert.True(t, shared.IsValidation(err), "%+v", c)
	}
}

func TestSignUp_StorageFailureIsAnError(t *testing.T) {
	f := newFixture(t, brokenStore{})
	_, err := f.signUp.Handle(context.Background(), command.SignUpCommand{Username: "ana", Password: "pw"})
	assert.ErrorIs(t, err, shared.ErrStorage)
}

func TestLogin_UnreadableAccountIsInvalidCredentials(t *testing.T) {
	f := newFixture(t, brokenStore{})
	res, err := f.sessions.Login(context.Background(), command.LoginCommand{Username: "ana", Password: "pw"})
	require.NoError(t, err)
	assert.False(t, res.Success)
}

// ══════════════════════════════════════════════════════════════════════════════
// SURVEY
// ══════════════════════════════════════════════════════════════════════════════

func TestSaveSurvey(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.xp.Handle(ctx, command.ApplyXPCommand{Username: "dee", Language: "ta", Amount: 10})
	require.NoError(t, err)

	rec, err := f.survey.Handle(ctx, command.SaveSurveyCommand{
		Username: "dee",
		Levels:   map[string]string{"hi": "None", "kn": "Intermediate", "te": "advanced"},
	})
	require.NoError(t, err)

	want := proficiency.Record{
		"hi": {Level: proficiency.Beginner, XP: 0},
		"kn": {Level: proficiency.Intermediate, XP: 1000},
		"te": {Level: proficiency.Advanced, XP: 3000},
	}
	assert.Equal(t, want, rec)

	stored, err := f.repos.Proficiency.Get(ctx, "dee")
	require.NoError(t, err)
	assert.Equal(t, want, stored, "survey replaces earlier languages")

	_, err = f.survey.Handle(ctx, command.SaveSurveyCommand{Username: "dee", Levels: map[string]string{"hi": "Expert"}})
	assert.True(t, shared.IsValidation(err))
	stored, err = f.repos.Proficiency.Get(ctx, "dee")
	require.NoError(t, err)
	assert.Equal(t, want, stored, "a rejected survey writes nothing")

	_, err = f.survey.Handle(ctx, command.SaveSurveyCommand{Username: "dee", Levels: map[string]string{"hi": "Expert"}})
	assert.True(t, shared.IsValidation(err))
	_, err = f.survey.Handle(ctx, command.SaveSurveyCommand{Username: "dee"})
	assert.True(t, shared.IsValidation(err))
}

func TestSaveSurvey_WritesThroughAtomicUpdate(t *testing.T) {
	inner := kv.NewMemoryStore()
	f := newFixture(t, setFailStore{inner})
	ctx := context.Background()

	_, err := f.survey.Handle(ctx, command.SaveSurveyCommand{Username: "dee", Levels: map[string]string{"hi": "Intermediate"}})
	require.NoError(t, err)

	rec, err := kv.NewRepositories(inner).Proficiency.Get(ctx, "dee")
	require.NoError(t, err)
	assert.Equal(t, proficiency.Record{"hi": {Level: proficiency.Intermediate, XP: 1000}}, rec)
}
