package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(name string) string { return vars[name] }
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mathtutor.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := load("", env(nil))
	require.NoError(t, err)

	want := Default()
	if diff := cmp.Diff(&want, cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestFileThenEnv(t *testing.T) {
	path := writeConfig(t, `
addr = ":9000"
request_timeout = "45s"

[llm]
model = "claude-sonnet-4-5"
max_tool_rounds = 4

[store]
driver = "memory"

[log]
level = "debug"
format = "json"
`)

	cfg, err := load(path, env(map[string]string{
		"MATHTUTOR_ADDR":    ":9100",
		"ANTHROPIC_API_KEY": "sk-ant",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Addr)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "claude-sonnet-4-5", cfg.LLM.Model)
	assert.Equal(t, 4, cfg.LLM.MaxToolRounds)
	assert.Equal(t, "sk-ant", cfg.LLM.APIKey)
	assert.Equal(t, 10, cfg.LLM.HistoryWindow)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestUnknownKeys(t *testing.T) {
	path := writeConfig(t, "adress = \":9000\"\n")
	_, err := load(path, env(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adress")
}

func TestMissingFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "nope.toml"), env(nil))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	cfg, err := load("", env(map[string]string{
		"MATHTUTOR_MODEL":           "gpt-4o-mini",
		"OPENAI_API_KEY":            "sk-openai",
		"MATHTUTOR_TEMPERATURE":     "0.2",
		"MATHTUTOR_HISTORY_WINDOW":  "4",
		"MATHTUTOR_CORS_ORIGINS":    "http://localhost:5173,https://tutor.example",
		"MATHTUTOR_STORE":           "redis",
		"REDIS_URL":                 "redis://localhost:6379/0",
		"MATHTUTOR_REQUEST_TIMEOUT": "10s",
	}))
	require.NoError(t, err)

	assert.Equal(t, "sk-openai", cfg.LLM.APIKey)
	assert.InDelta(t, 0.2, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 4, cfg.LLM.HistoryWindow)
	assert.Equal(t, []string{"http://localhost:5173", "https://tutor.example"}, cfg.CORSOrigins)
	assert.Equal(t, DriverRedis, cfg.Store.Driver)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Store.RedisURL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
}

func TestExplicitKeyWins(t *testing.T) {
	cfg, err := load("", env(map[string]string{
		"MATHTUTOR_API_KEY": "explicit",
		"GEMINI_API_KEY":    "from-env",
	}))
	require.NoError(t, err)
	assert.Equal(t, "explicit", cfg.LLM.APIKey)
}

func TestInvalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"bad number", map[string]string{"MATHTUTOR_MAX_TOKENS": "muchos"}},
		{"bad duration", map[string]string{"MATHTUTOR_REQUEST_TIMEOUT": "pronto"}},
		{"unknown driver", map[string]string{"MATHTUTOR_STORE": "mongo"}},
		{"redis without url", map[string]string{"MATHTUTOR_STORE": "redis"}},
		{"zero tool rounds", map[string]string{"MATHTUTOR_MAX_TOOL_ROUNDS": "0"}},
		{"bad log format", map[string]string{"MATHTUTOR_LOG_FORMAT": "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load("", env(tt.vars))
			assert.Error(t, err)
		})
	}
}

func TestProviderKey(t *testing.T) {
	getenv := env(map[string]string{
		"GOOGLE_API_KEY":    "google",
		"ANTHROPIC_API_KEY": "anthropic",
		"OPENAI_API_KEY":    "openai",
	})
	assert.Equal(t, "google", ProviderKey("gemini-2.5-flash", getenv))
	assert.Equal(t, "anthropic", ProviderKey("claude-sonnet-4-5", getenv))
	assert.Equal(t, "openai", ProviderKey("gpt-4o", getenv))
	assert.Equal(t, "openai", ProviderKey("o3-mini", getenv))
	assert.Equal(t, "", ProviderKey("llama3.2", getenv))
}
