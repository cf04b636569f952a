// Command mathtutor-cli is an interactive terminal tutor.
//
// Type a question and press Enter on an empty line to send it. A line of
// the form "/imagen <path>" attaches a picture of the exercise to the next
// message. "exit", "quit" or "salir" ends the session.
package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/cockroachdb/errors"

	tutor "github.com/ArianneAlonso/tutor-math-mcp"
	"github.com/ArianneAlonso/tutor-math-mcp/chat"
	"github.com/ArianneAlonso/tutor-math-mcp/internal/config"
	"github.com/ArianneAlonso/tutor-math-mcp/internal/logging"
	"github.com/ArianneAlonso/tutor-math-mcp/internal/wiring"
	"github.com/ArianneAlonso/tutor-math-mcp/persistence"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if err := run(context.Background(), cfg, os.Stdin, os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}

// Config holds the CLI settings.
type Config struct {
	Model          string
	APIKey         string
	Temperature    float64
	MaxTokens      int
	DBPath         string
	UserID         string
	ConversationID string
	Debug          bool
}

func parseFlags(args []string) (*Config, error) {
	var cfg Config
	defaults := config.Default()
	fs := flag.NewFlagSet("mathtutor-cli", flag.ContinueOnError)

	fs.StringVar(&cfg.Model, "model", envOr("MATHTUTOR_MODEL", defaults.LLM.Model), "Model to use (e.g., gemini-2.5-flash, claude-sonnet-4-5, gpt-4o, llama3.2)")
	fs.StringVar(&cfg.APIKey, "api-key", "", "API key (defaults to environment variable based on provider)")
	fs.Float64Var(&cfg.Temperature, "temperature", -1, "Temperature for response generation (negative for the provider default)")
	fs.IntVar(&cfg.MaxTokens, "max-tokens", 0, "Maximum tokens in response (0 for default)")
	fs.StringVar(&cfg.DBPath, "db", "", "SQLite database to keep conversations in (in memory when empty)")
	fs.StringVar(&cfg.UserID, "user", "", "User id that owns new conversations")
	fs.StringVar(&cfg.ConversationID, "conversation", "", "Resume an existing conversation")
	fs.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

// createClientFunc is a variable to allow mocking in tests
var createClientFunc = func(cfg *Config) (chat.Client, error) {
	return wiring.NewClient(config.LLM{
		Model:         cfg.Model,
		APIKey:        cfg.APIKey,
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
		MaxToolRounds: config.Default().LLM.MaxToolRounds,
	})
}

func openStore(ctx context.Context, cfg *Config) (persistence.Store, error) {
	if cfg.DBPath == "" {
		return wiring.OpenStore(ctx, config.Store{Driver: config.DriverMemory})
	}
	return wiring.OpenStore(ctx, config.Store{Driver: config.DriverSQLite, Path: cfg.DBPath})
}

func run(ctx context.Context, cfg *Config, input io.Reader, output, errOutput io.Writer) error {
	logging.SetOutput(errOutput)
	if cfg.Debug {
		if err := wiring.SetupLogging(config.Log{Level: "debug"}); err != nil {
			return err
		}
	}

	client, err := createClientFunc(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to create client")
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	t, err := tutor.New(client, store, tutor.WithTitler(tutor.TruncateTitler{}))
	if err != nil {
		return err
	}

	conversationID := cfg.ConversationID
	if conversationID != "" {
		conv, err := store.GetConversation(ctx, conversationID)
		if err != nil {
			return errors.Wrap(err, "resume conversation")
		}
		_, _ = fmt.Fprintf(output, "Continuando \"%s\" (%d mensajes).\n", conv.Title, len(conv.Messages))
	}

	reader := bufio.NewReader(input)

	_, _ = fmt.Fprintln(output, "Tutor de matemáticas. Escribe 'salir' para terminar.")
	_, _ = fmt.Fprintln(output, "Escribe tu mensaje y pulsa Enter en una línea vacía para enviarlo.")
	_, _ = fmt.Fprintln(output, "---")

	for {
		_, _ = fmt.Fprint(output, "\nTú: ")

		text, imagePath, done, err := readMessage(reader)
		if err != nil {
			return errors.Wrap(err, "error reading input")
		}
		if done {
			_, _ = fmt.Fprintln(output, "\n¡Hasta luego!")
			return nil
		}
		if strings.TrimSpace(text) == "" && imagePath == "" {
			continue
		}

		req := tutor.ChatRequest{Message: text, ConversationID: conversationID, UserID: cfg.UserID}
		if imagePath != "" {
			data, err := os.ReadFile(imagePath)
			if err != nil {
				_, _ = fmt.Fprintf(errOutput, "\nError: %v\n", err)
				continue
			}
			req.ImageBase64 = base64.StdEncoding.EncodeToString(data)
		}

		resp, err := t.Chat(ctx, req)
		if err != nil {
			_, _ = fmt.Fprintf(errOutput, "\nError: %v\n", err)
			continue
		}
		conversationID = resp.ConversationID

		_, _ = fmt.Fprintf(output, "\nTutor: %s\n", resp.Response)
		_, _ = fmt.Fprintln(output, "---")
	}
}

// readMessage reads lines until an empty line or EOF. done is set on an
// exit command or when input ends with nothing pending.
func readMessage(reader *bufio.Reader) (text, imagePath string, done bool, err error) {
	var lines []string
	for {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", "", false, err
		}
		eof := err == io.EOF
		line = strings.TrimRight(line, "\n\r")

		switch {
		case len(lines) == 0 && imagePath == "" && isExit(line):
			return "", "", true, nil
		case strings.HasPrefix(line, "/imagen "):
			imagePath = strings.TrimSpace(strings.TrimPrefix(line, "/imagen "))
		case line == "":
			if len(lines) > 0 || imagePath != "" {
				return strings.Join(lines, "\n"), imagePath, false, nil
			}
		default:
			lines = append(lines, line)
		}

		if eof {
			if len(lines) == 0 && imagePath == "" {
				return "", "", true, nil
			}
			return strings.Join(lines, "\n"), imagePath, false, nil
		}
	}
}

func isExit(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "exit", "quit", "salir":
		return true
	}
	return false
}
