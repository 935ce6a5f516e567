package lesson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingoleap/lingoleap-hub/internal/domain/proficiency"
	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
)

func twoActivityLesson() *Template {
	return &Template{
		ID:    1,
		Title: "The Arrival",
		Level: proficiency.Beginner,
		Activities: []Activity{
			{Type: "LISTEN_MATCH", Title: "A"},
			{Type: "SPEAK_THE_WORD", Title: "B"},
		},
	}
}

func TestRecordScore_CompletionAndBestScore(t *testing.T) {
	lp := LanguageProgress{}
	tmpl := twoActivityLesson()

	out, err := RecordScore(lp, ScoreInput{LessonID: 1, Title: "A", Score: 80}, tmpl)
	require.NoError(t, err)
	assert.True(t, out.Recorded)
	assert.False(t, out.JustCompleted)
	assert.False(t, lp[1].Completed)

	out, err = RecordScore(lp, ScoreInput{LessonID: 1, Title: "B", Score: 60}, tmpl)
	require.NoError(t, err)
	assert.True(t, out.JustCompleted)
	assert.True(t, lp[1].Completed)

	out, err = RecordScore(lp, ScoreInput{LessonID: 1, Title: "A", Score: 50}, tmpl)
	require.NoError(t, err)
	assert.False(t, out.Recorded)
	assert.False(t, out.JustCompleted)
	assert.Equal(t, 80, lp[1].Scores["A"])
	assert.True(t, lp[1].Completed)
}

func TestRecordScore_EqualScoreIsNotAnImprovement(t *testing.T) {
	lp := LanguageProgress{}
	_, err := RecordScore(lp, ScoreInput{LessonID: 1, Title: "A", Score: 70}, nil)
	require.NoError(t, err)

	out, err := RecordScore(lp, ScoreInput{LessonID: 1, Title: "A", Score: 70}, nil)
	require.NoError(t, err)
	assert.False(t, out.Recorded)

	out, err = RecordScore(lp, ScoreInput{LessonID: 1, Title: "A", Score: 71}, nil)
	require.NoError(t, err)
	assert.True(t, out.Recorded)
	assert.Equal(t, 71, lp[1].Scores["A"])
}

func TestRecordScore_FirstZeroIsRecorded(t *testing.T) {
	lp := LanguageProgress{}
	tmpl := &Template{ID: 2, Activities: []Activity{{Title: "Only"}}}

	out, err := RecordScore(lp, ScoreInput{LessonID: 2, Title: "Only", Score: 0}, tmpl)
	require.NoError(t, err)
	assert.True(t, out.Recorded)
	assert.True(t, lp[2].Completed)

	score, ok := lp[2].BestScore("Only")
	assert.True(t, ok)
	assert.Zero(t, score)
}

func TestRecordScore_UnknownLessonLeavesCompletion(t *testing.T) {
	lp := LanguageProgress{}
	_, err := RecordScore(lp, ScoreInput{LessonID: 9, Title: "X", Score: 100}, nil)
	require.NoError(t, err)
	assert.False(t, lp[9].Completed)
	assert.Equal(t, 100, lp[9].Scores["X"])
}

func TestRecordScore_Validation(t *testing.T) {
	lp := LanguageProgress{}
	for _, in := range []ScoreInput{
		{LessonID: 1, Title: "A", Score: -1},
		{LessonID: 1, Title: "A", Score: 101},
		{LessonID: 0, Title: "A", Score: 10},
		{LessonID: 1, Title: "  ", Score: 10},
	} {
		_, err := RecordScore(lp, in, nil)
		assert.ErrorIs(t, err, shared.ErrValidation)
	}
	assert.Empty(t, lp)
}

func TestRecordScore_DoesNotAliasPreviousMap(t *testing.T) {
	before := LanguageProgress{1: {Scores: map[string]int{"A": 10}}}
	snapshot := before.Clone()

	_, err := RecordScore(before, ScoreInput{LessonID: 1, Title: "A", Score: 90}, nil)
	require.NoError(t, err)

	assert.Equal(t, 10, snapshot[1].Scores["A"])
	assert.Equal(t, 90, before[1].Scores["A"])
}

func TestRecord_Get(t *testing.T) {
	r := Record{"hi": {1: NewProgress()}}
	assert.Len(t, r.Get("hi"), 1)
	assert.NotNil(t, r.Get("ta"))
	assert.Empty(t, r.Get("ta"))
}

func TestStatuses_OpenInCatalogOrder(t *testing.T) {
	lessons := []Template{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 5}}

	assert.Equal(t,
		[]Status{StatusUnlocked, StatusLocked, StatusLocked, StatusLocked},
		Statuses(lessons, LanguageProgress{}))

	lp := LanguageProgress{
		1: {Completed: true},
		2: {Scores: map[string]int{"A": 40}},
		5: {Completed: true},
	}
	assert.Equal(t,
		[]Status{StatusCompleted, StatusUnlocked, StatusLocked, StatusCompleted},
		Statuses(lessons, lp), "a completed lesson stays completed even when its predecessor is not")

	assert.Empty(t, Statuses(nil, lp))
}
