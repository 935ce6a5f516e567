package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingoleap/lingoleap-hub/config"
	"github.com/lingoleap/lingoleap-hub/internal/application/query"
	"github.com/lingoleap/lingoleap-hub/pkg/logger"
)

// testConfig points every invocation at the same on-disk SQLite file so
// state carries over between commands.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		App:     config.AppConfig{Environment: config.EnvDevelopment, Location: time.UTC},
		Storage: config.StorageConfig{Backend: config.BackendSQLite},
		SQLite:  config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "hub.db")},
		Redis:   config.RedisConfig{Namespace: "lingoleap:"},
		HTTP:    config.HTTPConfig{Port: 8080},
		Session: config.SessionConfig{TTL: time.Hour, BcryptCost: 4},
		Events:  config.EventsConfig{Workers: 1},
	}
}

// executeCmd runs a cobra command and captures stdout/stderr.
func executeCmd(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(Options{Config: cfg, Log: logger.Nop()})
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestCLI_AccountAndProgression(t *testing.T) {
	cfg := testConfig(t)

	out, err := executeCmd(t, cfg, "signup", "ana", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "Sign up successful")

	out, err = executeCmd(t, cfg, "signup", "ana", "other")
	require.Error(t, err)
	assert.Contains(t, out, "Username already exists.")

	_, err = executeCmd(t, cfg, "login", "ana", "wrong")
	require.Error(t, err)

	out, err = executeCmd(t, cfg, "--date", "2024-06-01", "login", "ana", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "streak: 1 day(s), last login 2024-06-01")

	out, err = executeCmd(t, cfg, "--date", "2024-06-02", "streak", "ana")
	require.NoError(t, err)
	assert.Contains(t, out, "ana: 2 day streak (extended, last login 2024-06-02)")

	out, err = executeCmd(t, cfg, "xp", "ana", "hi", "900")
	require.NoError(t, err)
	assert.Contains(t, out, "ana/hi: Beginner, 900 XP")

	out, err = executeCmd(t, cfg, "complete", "ana", "hi", "1", "Find the Station", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "+150 XP (Intermediate, 1050 XP)")
	assert.Contains(t, out, "level up!")
	assert.Contains(t, out, "lesson 1 completed")

	out, err = executeCmd(t, cfg, "score", "ana", "hi", "1", "Find the Station", "20")
	require.NoError(t, err)
	assert.Contains(t, out, "kept the existing better score")

	out, err = executeCmd(t, cfg, "lessons", "ana", "hi")
	require.NoError(t, err)
	assert.Contains(t, out, "level: Intermediate")
	assert.Contains(t, out, "[x] 1.")
	assert.Contains(t, out, "(Beginner, completed)")
	assert.Contains(t, out, "[ ] 3. ")
	assert.Contains(t, out, "(Intermediate, locked)")
}

func TestCLI_SurveyAndLeaderboard(t *testing.T) {
	cfg := testConfig(t)

	for _, u := range []string{"ana", "bo"} {
		_, err := executeCmd(t, cfg, "signup", u, "pw")
		require.NoError(t, err)
	}

	out, err := executeCmd(t, cfg, "survey", "bo", "ta=Intermediate", "kn=None")
	require.NoError(t, err)
	assert.Equal(t, "kn: Beginner (0 XP)\nta: Intermediate (1000 XP)\n", out)

	out, err = executeCmd(t, cfg, "--json", "leaderboard")
	require.NoError(t, err)
	var res query.GetLeaderboardResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Entries, 2)
	assert.EqualValues(t, "bo", res.Entries[0].Username)
	assert.Equal(t, 1000, res.Entries[0].TotalXP)
	assert.EqualValues(t, "ana", res.Entries[1].Username)
	assert.Equal(t, 0, res.Entries[1].TotalXP)

	out, err = executeCmd(t, cfg, "leaderboard", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "bo")
	assert.NotContains(t, out, "ana")
	assert.Contains(t, out, "showing 1 of 2")
}

func TestCLI_ArgumentErrors(t *testing.T) {
	cfg := testConfig(t)

	tests := []struct {
		name string
		args []string
	}{
		{"non-numeric xp", []string{"xp", "ana", "hi", "lots"}},
		{"negative xp", []string{"xp", "ana", "hi", "-5"}},
		{"non-numeric lesson", []string{"score", "ana", "hi", "one", "A", "10"}},
		{"score out of range", []string{"complete", "ana", "hi", "1", "A", "101"}},
		{"malformed survey", []string{"survey", "ana", "hi"}},
		{"bad date", []string{"--date", "June 1st", "streak", "ana"}},
		{"missing args", []string{"lessons", "ana"}},
		{"status on sqlite", []string{"migrate", "--status"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCmd(t, cfg, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestCLI_MigrateNonPostgres(t *testing.T) {
	out, err := executeCmd(t, testConfig(t), "migrate")
	require.NoError(t, err)
	assert.Equal(t, "sqlite backend ready\n", out)
}

func TestCLI_InvalidBackendOverride(t *testing.T) {
	_, err := executeCmd(t, testConfig(t), "--backend", "mongo", "leaderboard")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORAGE_BACKEND")
}

func TestServerConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTP.Host = "127.0.0.1"
	cfg.HTTP.Port = 9090
	cfg.HTTP.RateLimitPerMinute = 30
	cfg.HTTP.CORSOrigins = []string{"https://app.example"}
	cfg.HTTP.RequireSession = true

	sc := serverConfig(cfg)
	assert.Equal(t, "127.0.0.1:9090", sc.Address())
	assert.Equal(t, 30, sc.RateLimitPerMinute)
	assert.True(t, sc.EnableCORS)
	assert.True(t, sc.RequireSession)
	assert.Equal(t, 15*time.Second, sc.ReadTimeout)
}
