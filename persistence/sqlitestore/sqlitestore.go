// Package sqlitestore provides SQLite-based persistence for users and
// conversations.
package sqlitestore

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ArianneAlonso/tutor-math-mcp/persistence"
)

// SQLiteStore implements persistence.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ persistence.Store = (*SQLiteStore)(nil)

// New creates a new SQLite-based store at the given path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	// one writer at a time; ":memory:" databases are also per-connection
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "init schema")
	}

	return store, nil
}

// initSchema creates the necessary tables if they don't exist.
func (s *SQLiteStore) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS users (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    email           TEXT NOT NULL UNIQUE,
    hashed_password TEXT NOT NULL,
    created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS conversations (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL DEFAULT '',
    title      TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id, updated_at);

CREATE TABLE IF NOT EXISTS messages (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id TEXT NOT NULL,
    sender          TEXT NOT NULL,
    text            TEXT NOT NULL,
    image_base64    TEXT NOT NULL DEFAULT '',
    analysis_result TEXT NOT NULL DEFAULT '',
    message_type    TEXT NOT NULL,
    timestamp       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);
`
	_, err := s.db.Exec(schema)
	return err
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse timestamp %q", s)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// CreateUser implements persistence.Store.
func (s *SQLiteStore) CreateUser(ctx context.Context, user persistence.User) (persistence.User, error) {
	user = persistence.PrepareUser(user)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, hashed_password, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, user.HashedPassword, formatTime(user.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.User{}, errors.Mark(errors.Newf("email %q already registered", user.Email), persistence.ErrDuplicateEmail)
		}
		return persistence.User{}, errors.Wrap(err, "insert user")
	}
	return user, nil
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg string) (persistence.User, error) {
	var u persistence.User
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, hashed_password, created_at FROM users WHERE `+where+` = ?`, arg,
	).Scan(&u.ID, &u.Name, &u.Email, &u.HashedPassword, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.User{}, persistence.NotFound("user", arg)
		}
		return persistence.User{}, errors.Wrap(err, "query user")
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.User{}, err
	}
	return u, nil
}

// GetUser implements persistence.Store.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (persistence.User, error) {
	return s.getUser(ctx, "id", id)
}

// GetUserByEmail implements persistence.Store.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	return s.getUser(ctx, "email", persistence.NormalizeEmail(email))
}

// CreateConversation implements persistence.Store.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv persistence.Conversation) (persistence.Conversation, error) {
	conv = persistence.PrepareConversation(conv)

	err := s.ExecInTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO conversations (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			conv.ID, conv.UserID, conv.Title, formatTime(conv.CreatedAt), formatTime(conv.UpdatedAt),
		)
		if err != nil {
			return errors.Wrap(err, "insert conversation")
		}
		return insertMessages(ctx, tx, conv.ID, conv.Messages)
	})
	if err != nil {
		return persistence.Conversation{}, err
	}
	return conv, nil
}

func insertMessages(ctx context.Context, tx *sql.Tx, conversationID string, msgs []persistence.Message) error {
	for _, m := range msgs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO messages (conversation_id, sender, text, image_base64, analysis_result, message_type, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			conversationID, m.Sender, m.Text, m.ImageBase64, string(m.AnalysisResult), m.MessageType, formatTime(m.Timestamp),
		)
		if err != nil {
			return errors.Wrap(err, "insert message")
		}
	}
	return nil
}

// AppendMessages implements persistence.Store.
func (s *SQLiteStore) AppendMessages(ctx context.Context, conversationID string, msgs ...persistence.Message) error {
	msgs = persistence.PrepareMessages(msgs...)

	return s.ExecInTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE conversations SET updated_at = ? WHERE id = ?`,
			formatTime(time.Now()), conversationID,
		)
		if err != nil {
			return errors.Wrap(err, "touch conversation")
		}
		if n, err := res.RowsAffected(); err != nil {
			return errors.Wrap(err, "rows affected")
		} else if n == 0 {
			return persistence.NotFound("conversation", conversationID)
		}
		return insertMessages(ctx, tx, conversationID, msgs)
	})
}

// GetConversation implements persistence.Store.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (persistence.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE id = ?`, id)
	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Conversation{}, persistence.NotFound("conversation", id)
		}
		return persistence.Conversation{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT sender, text, image_base64, analysis_result, message_type, timestamp FROM messages WHERE conversation_id = ? ORDER BY id`, id)
	if err != nil {
		return persistence.Conversation{}, errors.Wrap(err, "query messages")
	}
	defer rows.Close()

	conv.Messages = []persistence.Message{}
	for rows.Next() {
		var m persistence.Message
		var analysis, ts string
		if err := rows.Scan(&m.Sender, &m.Text, &m.ImageBase64, &analysis, &m.MessageType, &ts); err != nil {
			return persistence.Conversation{}, errors.Wrap(err, "scan message")
		}
		if analysis != "" {
			m.AnalysisResult = []byte(analysis)
		}
		if m.Timestamp, err = parseTime(ts); err != nil {
			return persistence.Conversation{}, err
		}
		conv.Messages = append(conv.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return persistence.Conversation{}, errors.Wrap(err, "iterate messages")
	}
	return conv, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (persistence.Conversation, error) {
	var c persistence.Conversation
	var createdAt, updatedAt string
	if err := row.Scan(&c.ID, &c.UserID, &c.Title, &createdAt, &updatedAt); err != nil {
		return persistence.Conversation{}, err
	}
	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Conversation{}, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Conversation{}, err
	}
	return c, nil
}

// ListConversations implements persistence.Store.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID string) ([]persistence.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE user_id = ? ORDER BY updated_at DESC, id`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "query conversations")
	}
	defer rows.Close()

	var convs []persistence.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan conversation")
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate conversations")
	}
	return convs, nil
}

// DeleteConversation implements persistence.Store.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, id string) error {
	return s.ExecInTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
		if err != nil {
			return errors.Wrap(err, "delete conversation")
		}
		if n, err := res.RowsAffected(); err != nil {
			return errors.Wrap(err, "rows affected")
		} else if n == 0 {
			return persistence.NotFound("conversation", id)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
			return errors.Wrap(err, "delete messages")
		}
		return nil
	})
}

// Close implements persistence.Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ExecInTransaction executes a function within a transaction.
func (s *SQLiteStore) ExecInTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return errors.Wrap(tx.Commit(), "commit")
}
