// Command mathtutor serves the math tutor HTTP API.
package main

import (
	"context"
	"flag"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	tutor "github.com/ArianneAlonso/tutor-math-mcp"
	"github.com/ArianneAlonso/tutor-math-mcp/curriculum"
	"github.com/ArianneAlonso/tutor-math-mcp/internal/config"
	"github.com/ArianneAlonso/tutor-math-mcp/internal/httpapi"
	"github.com/ArianneAlonso/tutor-math-mcp/internal/logging"
	"github.com/ArianneAlonso/tutor-math-mcp/internal/wiring"
	"github.com/ArianneAlonso/tutor-math-mcp/persistence"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		logging.Logger().Error("mathtutor failed", "error", err)
		os.Exit(1)
	}
}

type flags struct {
	configPath string
	addr       string
	model      string
	store      string
	dbPath     string
	logLevel   string
}

func parseFlags(args []string, stderr io.Writer) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("mathtutor", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configPath, "config", os.Getenv("MATHTUTOR_CONFIG"), "TOML config file")
	fs.StringVar(&f.addr, "addr", "", "listen address (overrides config)")
	fs.StringVar(&f.model, "model", "", "LLM model, e.g. gemini-2.5-flash, claude-sonnet-4-5, gpt-4o")
	fs.StringVar(&f.store, "store", "", "store driver: memory, sqlite or redis")
	fs.StringVar(&f.dbPath, "db", "", "SQLite database path")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	return f, nil
}

// loadConfig reads the config file and environment, then applies flags.
func loadConfig(f flags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.addr != "" {
		cfg.Addr = f.addr
	}
	if f.model != "" {
		cfg.LLM.Model = f.model
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = config.ProviderKey(f.model, os.Getenv)
		}
	}
	if f.store != "" {
		cfg.Store.Driver = f.store
	}
	if f.dbPath != "" {
		cfg.Store.Path = f.dbPath
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	return cfg, cfg.Validate()
}

// app is the assembled server. close releases the store.
type app struct {
	handler http.Handler
	store   persistence.Store
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	client, err := wiring.NewClient(cfg.LLM)
	if err != nil {
		return nil, errors.Wrap(err, "create LLM client")
	}
	store, err := wiring.OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	cur := curriculum.Default()
	t, err := tutor.New(client, store,
		tutor.WithCurriculum(cur),
		tutor.WithHistoryWindow(cfg.LLM.HistoryWindow))
	if err != nil {
		store.Close()
		return nil, err
	}
	mcpServer, err := wiring.NewMCPServer(cur)
	if err != nil {
		store.Close()
		return nil, err
	}

	api := httpapi.New(t, store, mcpServer,
		httpapi.WithCORSOrigins(cfg.CORSOrigins...),
		httpapi.WithRequestTimeout(cfg.RequestTimeout))
	return &app{handler: api.Handler(), store: store}, nil
}

func (a *app) close() error {
	return a.store.Close()
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	f, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	if err := wiring.SetupLogging(cfg.Log); err != nil {
		return err
	}
	logger := logging.Logger()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			logger.Warn("close store", "error", err)
		}
	}()

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", cfg.Addr)
	}
	return serve(ctx, ln, a.handler)
}

// serve runs the HTTP server on ln until ctx is done, then shuts it down
// gracefully.
func serve(ctx context.Context, ln net.Listener, h http.Handler) error {
	logger := logging.Logger()
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
