// Package persistence stores tutor users and their conversations.
//
// Store is implemented in memory here, on SQLite in sqlitestore, and on
// Redis in redisstore. All implementations pass the storetest suite.
package persistence

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a user or conversation does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEmail is returned by CreateUser when the email is taken.
	ErrDuplicateEmail = errors.New("email already registered")
)

// Senders of conversation messages.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// Message types.
const (
	TypeText     = "text"
	TypeImage    = "image"
	TypeAnalysis = "analysis"
)

// User is a registered student.
type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"hashed_password"`
	CreatedAt      time.Time `json:"created_at"`
}

// Message is one turn of a conversation.
type Message struct {
	Sender         string          `json:"sender"`
	Text           string          `json:"text"`
	ImageBase64    string          `json:"image_base64,omitempty"`
	AnalysisResult json.RawMessage `json:"analysis_result,omitempty"`
	MessageType    string          `json:"message_type"`
	Timestamp      time.Time       `json:"timestamp"`
}

// Conversation is a titled list of messages owned by a user. UserID is
// empty for anonymous conversations.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists users and conversations. Implementations are safe for
// concurrent use.
type Store interface {
	// CreateUser stores a new user, assigning ID and CreatedAt when unset.
	// Emails are compared case-insensitively.
	CreateUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)

	// CreateConversation stores a new conversation, assigning ID and
	// timestamps when unset.
	CreateConversation(ctx context.Context, conv Conversation) (Conversation, error)
	// AppendMessages adds messages to the end of a conversation.
	AppendMessages(ctx context.Context, conversationID string, msgs ...Message) error
	GetConversation(ctx context.Context, id string) (Conversation, error)
	// ListConversations returns the user's conversations, most recently
	// updated first, without their messages.
	ListConversations(ctx context.Context, userID string) ([]Conversation, error)
	DeleteConversation(ctx context.Context, id string) error

	// Close releases resources.
	Close() error
}

// NormalizeEmail is the key under which emails are compared.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PrepareUser fills the defaults CreateUser applies.
func PrepareUser(user User) User {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Email = NormalizeEmail(user.Email)
	return user
}

// PrepareConversation fills the defaults CreateConversation applies.
func PrepareConversation(conv Conversation) Conversation {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = conv.CreatedAt
	}
	conv.Messages = PrepareMessages(conv.Messages...)
	return conv
}

// PrepareMessages defaults message types and timestamps.
func PrepareMessages(msgs ...Message) []Message {
	out := make([]Message, len(msgs))
	now := time.Now().UTC()
	for i, m := range msgs {
		if m.MessageType == "" {
			m.MessageType = TypeText
		}
		if m.Timestamp.IsZero() {
			m.Timestamp = now
		}
		out[i] = m
	}
	return out
}

// SortNewestFirst orders conversations by UpdatedAt, newest first, with ID
// as the tie breaker.
func SortNewestFirst(convs []Conversation) {
	slices.SortStableFunc(convs, func(a, b Conversation) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// NotFound returns an ErrNotFound-marked error naming the missing record.
func NotFound(kind, id string) error {
	return errors.Mark(errors.Newf("%s %q not found", kind, id), ErrNotFound)
}

// MemoryStore provides an in-memory implementation of Store.
type MemoryStore struct {
	mu            sync.Mutex
	users         map[string]User
	emails        map[string]string
	conversations map[string]*Conversation
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]User),
		emails:        make(map[string]string),
		conversations: make(map[string]*Conversation),
	}
}

func (m *MemoryStore) CreateUser(_ context.Context, user User) (User, error) {
	user = PrepareUser(user)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.emails[user.Email]; taken {
		return User{}, errors.Mark(errors.Newf("email %q already registered", user.Email), ErrDuplicateEmail)
	}
	if _, taken := m.users[user.ID]; taken {
		return User{}, errors.Newf("user %q already exists", user.ID)
	}
	m.users[user.ID] = user
	m.emails[user.Email] = user.ID
	return user, nil
}

func (m *MemoryStore) GetUser(_ context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return User{}, NotFound("user", id)
	}
	return user, nil
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.emails[NormalizeEmail(email)]
	if !ok {
		return User{}, NotFound("user", email)
	}
	return m.users[id], nil
}

func (m *MemoryStore) CreateConversation(_ context.Context, conv Conversation) (Conversation, error) {
	conv = PrepareConversation(conv)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.conversations[conv.ID]; taken {
		return Conversation{}, errors.Newf("conversation %q already exists", conv.ID)
	}
	stored := cloneConversation(conv)
	m.conversations[conv.ID] = &stored
	return conv, nil
}

func (m *MemoryStore) AppendMessages(_ context.Context, conversationID string, msgs ...Message) error {
	msgs = PrepareMessages(msgs...)

	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[conversationID]
	if !ok {
		return NotFound("conversation", conversationID)
	}
	conv.Messages = append(conv.Messages, msgs...)
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) GetConversation(_ context.Context, id string) (Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return Conversation{}, NotFound("conversation", id)
	}
	return cloneConversation(*conv), nil
}

func (m *MemoryStore) ListConversations(_ context.Context, userID string) ([]Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var convs []Conversation
	for _, conv := range m.conversations {
		if conv.UserID != userID {
			continue
		}
		header := *conv
		header.Messages = nil
		convs = append(convs, header)
	}
	SortNewestFirst(convs)
	return convs, nil
}

func (m *MemoryStore) DeleteConversation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[id]; !ok {
		return NotFound("conversation", id)
	}
	delete(m.conversations, id)
	return nil
}

// Close is a no-op for the in-memory store as there are no resources to release.
func (m *MemoryStore) Close() error {
	return nil
}

func cloneConversation(conv Conversation) Conversation {
	conv.Messages = slices.Clone(conv.Messages)
	if conv.Messages == nil {
		conv.Messages = []Message{}
	}
	return conv
}
