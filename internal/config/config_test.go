package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	t.Setenv("DB_PASSWORD", "test")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Lockout.MaxFailedAttempts)
	assert.Equal(t, 60*time.Minute, cfg.Lockout.AttemptWindow)
	assert.Equal(t, 15*time.Minute, cfg.Lockout.BaseLockout)
	assert.Equal(t, 2, cfg.Lockout.Multiplier)
	assert.Equal(t, 120*time.Minute, cfg.Lockout.MaxLockout)

	assert.Equal(t, int64(60), cfg.RateLimit.Limit)
	assert.Equal(t, 60*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, "memory", cfg.RateLimit.Store)

	assert.False(t, cfg.Reset.TrackFailedVerifications)
	assert.False(t, cfg.Reset.RequireToken)
	assert.Equal(t, 10*time.Minute, cfg.Reset.TokenExpiry)
	assert.Equal(t, "local", cfg.Identity.Provider)
	assert.False(t, cfg.Email.Enabled())
	assert.Empty(t, cfg.Events.KafkaBrokers)
}

func TestServerConfig_Timeouts(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		read  time.Duration
		write time.Duration
		idle  time.Duration
	}{
		{"defaults", nil, 15 * time.Second, 15 * time.Second, 60 * time.Second},
		{
			"custom",
			map[string]string{"SERVER_READ_TIMEOUT": "30s", "SERVER_WRITE_TIMEOUT": "45s", "SERVER_IDLE_TIMEOUT": "120s"},
			30 * time.Second, 45 * time.Second, 120 * time.Second,
		},
		{"invalid falls back", map[string]string{"SERVER_READ_TIMEOUT": "not-a-duration"}, 15 * time.Second, 15 * time.Second, 60 * time.Second},
		{"zero honored", map[string]string{"SERVER_READ_TIMEOUT": "0s"}, 0, 15 * time.Second, 60 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tt.read, cfg.Server.ReadTimeout)
			assert.Equal(t, tt.write, cfg.Server.WriteTimeout)
			assert.Equal(t, tt.idle, cfg.Server.IdleTimeout)
		})
	}
}

func TestLoad_PolicyFileThenEnvOverride(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "policy.toml")
	policy := `
[lockout]
max_failed_attempts = 3
base_lockout = "10m"
max_lockout = "60m"

[rate_limit]
limit = 20
window = "30s"

[reset]
track_failed_verifications = true
`
	require.NoError(t, os.WriteFile(path, []byte(policy), 0o600))
	t.Setenv("POLICY_FILE", path)
	t.Setenv("RATE_LIMIT_LIMIT", "25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Lockout.MaxFailedAttempts)
	assert.Equal(t, 10*time.Minute, cfg.Lockout.BaseLockout)
	assert.Equal(t, 60*time.Minute, cfg.Lockout.MaxLockout)
	assert.Equal(t, 60*time.Minute, cfg.Lockout.AttemptWindow, "unset keys keep defaults")
	assert.Equal(t, int64(25), cfg.RateLimit.Limit, "env wins over policy file")
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.True(t, cfg.Reset.TrackFailedVerifications)
}

func TestLoad_ResetQuestionBounds(t *testing.T) {
	tests := []struct {
		name   string
		policy string
		valid  bool
	}{
		{"raised minimum", "[reset]\nmin_questions = 5\n", true},
		{"below floor", "[reset]\nmin_questions = 2\n", false},
		{"above ceiling", "[reset]\nmin_questions = 11\n", false},
		{"required above minimum", "[reset]\nmin_questions = 3\nrequired_correct_answers = 4\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			path := filepath.Join(t.TempDir(), "policy.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.policy), 0o600))
			t.Setenv("POLICY_FILE", path)

			cfg, err := Load()
			if !tt.valid {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 5, cfg.Reset.MinQuestions)
		})
	}
}

func TestLoad_MissingPolicyFile(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("POLICY_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing db password", map[string]string{"DB_PASSWORD": ""}},
		{"short jwt secret", map[string]string{"JWT_SECRET": "short"}},
		{"zero attempts", map[string]string{"LOCKOUT_MAX_FAILED_ATTEMPTS": "0"}},
		{"max below base", map[string]string{"LOCKOUT_MAX_DURATION": "5m"}},
		{"redis without addr", map[string]string{"RATE_LIMIT_STORE": "redis"}},
		{"unknown store", map[string]string{"RATE_LIMIT_STORE": "memcached"}},
		{"http provider without url", map[string]string{"IDENTITY_PROVIDER": "http"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestValidateJWTSecret(t *testing.T) {
	assert.NoError(t, validateJWTSecret("0123456789abcdef", "development"))
	assert.Error(t, validateJWTSecret("0123456789abcdef", "production"))
	assert.Error(t, validateJWTSecret("changeme", "development"))
}
