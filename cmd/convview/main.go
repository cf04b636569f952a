// Command convview prints tutor conversations stored in SQLite.
//
// Usage:
//
//	convview list --db path/to/mathtutor.db [--user USER_ID]
//	convview show --db path/to/mathtutor.db --conversation ID [--format json|jsonl]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ArianneAlonso/tutor-math-mcp/persistence/sqlitestore"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	var err error
	switch cmd := args[0]; cmd {
	case "list":
		err = runList(ctx, args[1:], stdout, stderr)
	case "show":
		err = runShow(ctx, args[1:], stdout, stderr)
	case "-h", "--help", "help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", cmd)
		printUsage(stderr)
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `convview - view tutor conversations from SQLite

Usage:
  convview list --db <path> [--user <id>]
      List a user's conversations, most recent first. Without --user,
      lists anonymous conversations.

  convview show --db <path> --conversation <id> [--format json|jsonl]
      Show a conversation (default format: json)

Formats:
  json   - The conversation with its messages as one JSON object (default)
  jsonl  - One message per line

Examples:
  convview list --db ./mathtutor.db --user 6f1c...
  convview show --db ./mathtutor.db --conversation abc123 --format jsonl | jq .text
`)
}

func runList(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "", "path to SQLite database")
	userID := fs.String("user", "", "user ID whose conversations to list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" {
		return errors.New("--db is required")
	}

	store, err := sqlitestore.New(*dbPath)
	if err != nil {
		return errors.Wrap(err, "open database")
	}
	defer store.Close()

	convs, err := store.ListConversations(ctx, *userID)
	if err != nil {
		return errors.Wrap(err, "list conversations")
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for _, c := range convs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.UpdatedAt.Local().Format(time.DateTime), c.Title)
	}
	return tw.Flush()
}

func runShow(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "", "path to SQLite database")
	conversationID := fs.String("conversation", "", "conversation ID to display")
	format := fs.String("format", "json", "output format: json or jsonl")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *dbPath == "" {
		return errors.New("--db is required")
	}
	if *conversationID == "" {
		return errors.New("--conversation is required")
	}
	if *format != "json" && *format != "jsonl" {
		return errors.New("--format must be 'json' or 'jsonl'")
	}

	store, err := sqlitestore.New(*dbPath)
	if err != nil {
		return errors.Wrap(err, "open database")
	}
	defer store.Close()

	conv, err := store.GetConversation(ctx, *conversationID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	switch *format {
	case "json":
		enc.SetIndent("", "  ")
		if err := enc.Encode(conv); err != nil {
			return errors.Wrap(err, "encode json")
		}
	case "jsonl":
		for _, m := range conv.Messages {
			if err := enc.Encode(m); err != nil {
				return errors.Wrap(err, "encode jsonl")
			}
		}
	}
	return nil
}
