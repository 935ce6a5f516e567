package proficiency

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
)

func TestLevelFor(t *testing.T) {
	tests := []struct {
		xp   int
		want Level
	}{
		{0, Beginner},
		{999, Beginner},
		{1000, Intermediate},
		{2999, Intermediate},
		{3000, Advanced},
		{100000, Advanced},
		{-5, Beginner},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFor(tt.xp), "xp=%d", tt.xp)
	}
}

func TestApply_AddsXPAndNeverDemotes(t *testing.T) {
	start := State{Level: Intermediate, XP: 10}
	for _, delta := range []int{0, 1, 150, 989, 5000} {
		res, err := Apply(start, delta)
		require.NoError(t, err)
		assert.Equal(t, start.XP+delta, res.NewState.XP)
		assert.True(t, res.NewState.Level.AtLeast(start.Level))
	}
}

func TestApply_PromotesOnceAtThousand(t *testing.T) {
	s := Default()
	promotions := 0
	for _, delta := range []int{150, 150, 150, 150, 150, 150, 100} {
		res, err := Apply(s, delta)
		require.NoError(t, err)
		if res.LeveledUp {
			promotions++
		}
		s = res.NewState
	}

	assert.Equal(t, 1000, s.XP)
	assert.Equal(t, Intermediate, s.Level)
	assert.Equal(t, 1, promotions)

	res, err := Apply(s, 0)
	require.NoError(t, err)
	assert.False(t, res.LeveledUp)
	assert.Equal(t, s, res.NewState)
}

func TestApply_JumpPastBothThresholds(t *testing.T) {
	res, err := Apply(Default(), 3500)
	require.NoError(t, err)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, Advanced, res.NewState.Level)
	assert.Equal(t, Beginner, res.OldLevel)
}

func TestApply_RejectsNegativeDelta(t *testing.T) {
	_, err := Apply(Default(), -1)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestApply_RejectsOverflowingDelta(t *testing.T) {
	start := State{Level: Advanced, XP: 3500}

	_, err := Apply(start, math.MaxInt)
	require.ErrorIs(t, err, shared.ErrXPOverflow)
	assert.True(t, shared.IsValidation(err))

	res, err := Apply(start, math.MaxInt-3500)
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt, res.NewState.XP)
}

func TestApply_RepairsUnknownLevel(t *testing.T) {
	res, err := Apply(State{Level: "Expert", XP: 1200}, 0)
	require.NoError(t, err)
	assert.Equal(t, Intermediate, res.NewState.Level)
	assert.False(t, res.LeveledUp)
}

func TestParseSurveyLevel(t *testing.T) {
	l, err := ParseSurveyLevel("None")
	require.NoError(t, err)
	assert.Equal(t, Beginner, l)

	l, err = ParseSurveyLevel("advanced")
	require.NoError(t, err)
	assert.Equal(t, Advanced, l)

	_, err = ParseSurveyLevel("Fluent")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestForSurvey(t *testing.T) {
	assert.Equal(t, State{Level: Beginner, XP: 0}, ForSurvey(None))
	assert.Equal(t, State{Level: Intermediate, XP: 1000}, ForSurvey(Intermediate))
	assert.Equal(t, State{Level: Advanced, XP: 3000}, ForSurvey(Advanced))
}

func TestXPForScore(t *testing.T) {
	assert.Equal(t, 150, XPForScore(100))
	assert.Equal(t, 0, XPForScore(0))
	assert.Equal(t, 2, XPForScore(1))
	assert.Equal(t, 122, XPForScore(81))
}

func TestRecord(t *testing.T) {
	r := Record{"hi": {Level: Beginner, XP: 150}, "es": {Level: Intermediate, XP: 1200}}
	assert.Equal(t, 1350, r.TotalXP())
	assert.Equal(t, Default(), r.Get("fr"))
	assert.Equal(t, 150, r.Get("hi").XP)

	huge := Record{"hi": {Level: Advanced, XP: math.MaxInt}, "es": {Level: Beginner, XP: 10}}
	assert.Equal(t, math.MaxInt, huge.TotalXP())
}
