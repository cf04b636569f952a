// Command mathtutor-mcp serves the math tools, the topic resources and the
// prompt templates over MCP on stdin/stdout. Logs go to stderr.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ArianneAlonso/tutor-math-mcp/curriculum"
	"github.com/ArianneAlonso/tutor-math-mcp/internal/config"
	"github.com/ArianneAlonso/tutor-math-mcp/internal/logging"
	"github.com/ArianneAlonso/tutor-math-mcp/internal/wiring"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		logging.Logger().Error("mathtutor-mcp failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("mathtutor-mcp", flag.ContinueOnError)
	fs.SetOutput(stderr)
	logLevel := fs.String("log-level", "", "debug, info, warn or error")
	logFormat := fs.String("log-format", "text", "text, json or logfmt")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logging.SetOutput(stderr)
	if err := wiring.SetupLogging(config.Log{Level: *logLevel, Format: *logFormat}); err != nil {
		return err
	}

	server, err := wiring.NewMCPServer(curriculum.Default())
	if err != nil {
		return err
	}
	logging.Logger().Info("serving MCP on stdio", "server", wiring.ServerName, "version", wiring.Version)
	return server.Serve(ctx, stdin, stdout)
}
