// Package config loads tutor settings from an optional TOML file and the
// environment.
//
// Precedence, lowest first: built-in defaults, the TOML file, MATHTUTOR_*
// environment variables. Commands apply their flags on top.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config holds runtime configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `toml:"addr" validate:"required"`
	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins []string `toml:"cors_origins"`
	// RequestTimeout bounds each HTTP request, LLM calls included.
	RequestTimeout time.Duration `toml:"request_timeout" validate:"gte=0"`

	LLM   LLM   `toml:"llm"`
	Store Store `toml:"store"`
	Log   Log   `toml:"log"`
}

// LLM configures the chat and vision provider.
type LLM struct {
	// Model selects the provider by prefix (gemini-, claude-, gpt-, ...).
	Model   string `toml:"model" validate:"required"`
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url" validate:"omitempty,url"`
	// Temperature < 0 leaves the provider default.
	Temperature   float64 `toml:"temperature" validate:"lte=2"`
	MaxTokens     int     `toml:"max_tokens" validate:"gte=0"`
	MaxToolRounds int     `toml:"max_tool_rounds" validate:"gte=1,lte=50"`
	// HistoryWindow is how many stored messages are replayed into a chat.
	HistoryWindow int `toml:"history_window" validate:"gte=0"`
}

// Store selects and configures the conversation store.
type Store struct {
	Driver      string `toml:"driver" validate:"oneof=memory sqlite redis"`
	Path        string `toml:"path" validate:"required_if=Driver sqlite"`
	RedisURL    string `toml:"redis_url" validate:"required_if=Driver redis"`
	RedisPrefix string `toml:"redis_prefix"`
}

// Log configures the process logger.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format" validate:"omitempty,oneof=text json logfmt"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:           ":8000",
		CORSOrigins:    []string{"*"},
		RequestTimeout: 2 * time.Minute,
		LLM: LLM{
			Model:         "gemini-2.5-flash",
			Temperature:   -1,
			MaxToolRounds: 10,
			HistoryWindow: 10,
		},
		Store: Store{
			Driver:      DriverSQLite,
			Path:        "mathtutor.db",
			RedisPrefix: "mathtutor",
		},
		Log: Log{Format: "text"},
	}
}

// Load reads path (optional) and the process environment.
func Load(path string) (*Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, errors.Newf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	}

	if err := applyEnv(&cfg, getenv); err != nil {
		return nil, err
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = ProviderKey(cfg.LLM.Model, getenv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v := getenv(name)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "%s", name)
		}
		*dst = n
		return nil
	}

	str("MATHTUTOR_ADDR", &cfg.Addr)
	if v := getenv("MATHTUTOR_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = strings.Split(v, ",")
	}
	if v := getenv("MATHTUTOR_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(err, "MATHTUTOR_REQUEST_TIMEOUT")
		}
		cfg.RequestTimeout = d
	}

	str("MATHTUTOR_MODEL", &cfg.LLM.Model)
	str("MATHTUTOR_API_KEY", &cfg.LLM.APIKey)
	str("MATHTUTOR_BASE_URL", &cfg.LLM.BaseURL)
	if v := getenv("MATHTUTOR_TEMPERATURE"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrap(err, "MATHTUTOR_TEMPERATURE")
		}
		cfg.LLM.Temperature = t
	}
	if err := num("MATHTUTOR_MAX_TOKENS", &cfg.LLM.MaxTokens); err != nil {
		return err
	}
	if err := num("MATHTUTOR_MAX_TOOL_ROUNDS", &cfg.LLM.MaxToolRounds); err != nil {
		return err
	}
	if err := num("MATHTUTOR_HISTORY_WINDOW", &cfg.LLM.HistoryWindow); err != nil {
		return err
	}

	str("MATHTUTOR_STORE", &cfg.Store.Driver)
	str("MATHTUTOR_DB_PATH", &cfg.Store.Path)
	str("REDIS_URL", &cfg.Store.RedisURL)
	str("MATHTUTOR_REDIS_URL", &cfg.Store.RedisURL)
	str("MATHTUTOR_REDIS_PREFIX", &cfg.Store.RedisPrefix)

	str("MATHTUTOR_LOG_LEVEL", &cfg.Log.Level)
	str("MATHTUTOR_LOG_FORMAT", &cfg.Log.Format)
	return nil
}

// ProviderKey returns the well-known API key variable for the provider that
// serves model, or "" when the provider needs none.
func ProviderKey(model string, getenv func(string) string) string {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "gemini-"):
		if k := getenv("GEMINI_API_KEY"); k != "" {
			return k
		}
		return getenv("GOOGLE_API_KEY")
	case strings.HasPrefix(m, "claude-"):
		return getenv("ANTHROPIC_API_KEY")
	case strings.HasPrefix(m, "gpt-"), strings.HasPrefix(m, "o1-"), strings.HasPrefix(m, "o3"):
		return getenv("OPENAI_API_KEY")
	default:
		return ""
	}
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}
