// Package wiring builds the components the commands share from a loaded
// config.Config.
package wiring

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/ArianneAlonso/tutor-math-mcp/chat"
	"github.com/ArianneAlonso/tutor-math-mcp/curriculum"
	"github.com/ArianneAlonso/tutor-math-mcp/internal/config"
	"github.com/ArianneAlonso/tutor-math-mcp/internal/logging"
	"github.com/ArianneAlonso/tutor-math-mcp/llm"
	"github.com/ArianneAlonso/tutor-math-mcp/mathtools"
	"github.com/ArianneAlonso/tutor-math-mcp/mcp"
	"github.com/ArianneAlonso/tutor-math-mcp/persistence"
	"github.com/ArianneAlonso/tutor-math-mcp/persistence/redisstore"
	"github.com/ArianneAlonso/tutor-math-mcp/persistence/sqlitestore"
)

// ServerName and Version identify the MCP server.
const (
	ServerName = "tutor-matematicas"
	Version    = "1.0.0"
)

const mcpInstructions = "Herramientas para resolver ecuaciones lineales y cuadráticas y evaluar expresiones, " +
	"más el temario de matemáticas de secundaria como recursos."

// SetupLogging applies the level and format from cfg. An empty level keeps
// the MATHTUTOR_DEBUG setting.
func SetupLogging(cfg config.Log) error {
	if cfg.Level != "" {
		level, err := logging.ParseLevel(cfg.Level)
		if err != nil {
			return err
		}
		logging.SetLogLevel(level)
	}
	return logging.SetFormat(cfg.Format)
}

// OpenStore opens the store cfg.Driver names.
func OpenStore(ctx context.Context, cfg config.Store) (persistence.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return persistence.NewMemoryStore(), nil
	case config.DriverSQLite:
		store, err := sqlitestore.New(cfg.Path)
		if err != nil {
			return nil, errors.Wrapf(err, "open sqlite store %s", cfg.Path)
		}
		return store, nil
	case config.DriverRedis:
		store, err := redisstore.Open(ctx, cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, errors.Wrap(err, "open redis store")
		}
		return store, nil
	default:
		return nil, errors.Newf("unknown store driver %q", cfg.Driver)
	}
}

// LLMConfig converts the file settings to an llm.Config. A negative
// temperature means the provider default.
func LLMConfig(cfg config.LLM) *llm.Config {
	c := &llm.Config{
		Model:         cfg.Model,
		APIKey:        cfg.APIKey,
		BaseURL:       cfg.BaseURL,
		MaxTokens:     cfg.MaxTokens,
		MaxToolRounds: cfg.MaxToolRounds,
	}
	if cfg.Temperature >= 0 {
		t := cfg.Temperature
		c.Temperature = &t
	}
	return c
}

// NewClient builds the chat client for cfg.Model.
func NewClient(cfg config.LLM) (chat.Client, error) {
	return llm.NewClient(LLMConfig(cfg))
}

// NewMCPServer serves the math tools plus the curriculum's resources and
// prompts.
func NewMCPServer(c *curriculum.Curriculum) (*mcp.Server, error) {
	registry := mcp.NewRegistry()
	for _, tool := range mathtools.Tools() {
		if err := registry.Register(tool); err != nil {
			return nil, errors.Wrapf(err, "register %s", tool.Name())
		}
	}
	return mcp.NewServer(registry,
		mcp.Implementation{Name: ServerName, Version: Version},
		mcp.WithInstructions(mcpInstructions),
		mcp.WithResources(c),
		mcp.WithPrompts(c),
		mcp.WithLogger(logging.Logger().With("component", "mcp")),
	)
}
