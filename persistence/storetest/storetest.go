// Package storetest is a conformance suite for persistence.Store
// implementations.
package storetest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArianneAlonso/tutor-math-mcp/persistence"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) persistence.Store

// timestamps only need to survive storage to the millisecond
var approxTime = cmpopts.EquateApproxTime(time.Millisecond)

// Run exercises every Store operation against stores made by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s persistence.Store)
	}{
		{"CreateAndGetUser", testCreateAndGetUser},
		{"DuplicateEmail", testDuplicateEmail},
		{"MissingUser", testMissingUser},
		{"ConversationRoundTrip", testConversationRoundTrip},
		{"AppendMessages", testAppendMessages},
		{"ListConversations", testListConversations},
		{"DeleteConversation", testDeleteConversation},
		{"ConcurrentAppends", testConcurrentAppends},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { assert.NoError(t, s.Close()) })
			tt.fn(t, s)
		})
	}
}

// FakeUser returns a user with random name and email.
func FakeUser() persistence.User {
	return persistence.User{
		Name:           gofakeit.Name(),
		Email:          gofakeit.Email(),
		HashedPassword: gofakeit.Password(true, true, true, false, false, 32),
	}
}

func fakeMessage(sender string) persistence.Message {
	return persistence.Message{
		Sender: sender,
		Text:   gofakeit.Word() + " " + gofakeit.Word(),
	}
}

func testCreateAndGetUser(t *testing.T, s persistence.Store) {
	ctx := context.Background()
	in := FakeUser()
	in.Email = "  Estudiante@Example.COM "

	created, err := s.CreateUser(ctx, in)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, "estudiante@example.com", created.Email)

	got, err := s.GetUser(ctx, created.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(created, got, approxTime); diff != "" {
		t.Errorf("GetUser mismatch (-want +got):\n%s", diff)
	}

	byEmail, err := s.GetUserByEmail(ctx, "ESTUDIANTE@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
}

func testDuplicateEmail(t *testing.T, s persistence.Store) {
	ctx := context.Background()
	user := FakeUser()
	_, err := s.CreateUser(ctx, user)
	require.NoError(t, err)

	again := FakeUser()
	again.Email = user.Email
	_, err = s.CreateUser(ctx, again)
	require.Error(t, err)
	assert.True(t, errors.Is(err, persistence.ErrDuplicateEmail), "got %v", err)
}

func testMissingUser(t *testing.T, s persistence.Store) {
	ctx := context.Background()
	_, err := s.GetUser(ctx, "missing")
	assert.True(t, errors.Is(err, persistence.ErrNotFound), "got %v", err)
	_, err = s.GetUserByEmail(ctx, "nadie@example.com")
	assert.True(t, errors.Is(err, persistence.ErrNotFound), "got %v", err)
}

func testConversationRoundTrip(t *testing.T, s persistence.Store) {
	ctx := context.Background()
	analysis := json.RawMessage(`[{"expr":"2+2","result":4,"assign":false}]`)

	conv, err := s.CreateConversation(ctx, persistence.Conversation{
		UserID: "u1",
		Title:  "Ecuaciones",
		Messages: []persistence.Message{
			fakeMessage(persistence.SenderUser),
			{
				Sender:         persistence.SenderBot,
				Text:           "Análisis de imagen",
				ImageBase64:    "aGVsbG8=",
				AnalysisResult: analysis,
				MessageType:    persistence.TypeAnalysis,
			},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, persistence.TypeText, conv.Messages[0].MessageType)

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(conv, got, approxTime, cmp.Comparer(jsonEqual)); diff != "" {
		t.Errorf("GetConversation mismatch (-want +got):\n%s", diff)
	}

	_, err = s.GetConversation(ctx, "missing")
	assert.True(t, errors.Is(err, persistence.ErrNotFound), "got %v", err)
}

func testAppendMessages(t *testing.T, s persistence.Store) {
	ctx := context.Background()
	conv, err := s.CreateConversation(ctx, persistence.Conversation{Title: "Práctica"})
	require.NoError(t, err)

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Messages)

	first, second := fakeMessage(persistence.SenderUser), fakeMessage(persistence.SenderBot)
	require.NoError(t, s.AppendMessages(ctx, conv.ID, first, second))
	require.NoError(t, s.AppendMessages(ctx, conv.ID, fakeMessage(persistence.SenderUser)))

	got, err = s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, first.Text, got.Messages[0].Text)
	assert.Equal(t, second.Text, got.Messages[1].Text)
	assert.Equal(t, persistence.SenderBot, got.Messages[1].Sender)
	assert.False(t, got.UpdatedAt.Before(conv.UpdatedAt))

	err = s.AppendMessages(ctx, "missing", first)
	assert.True(t, errors.Is(err, persistence.ErrNotFound), "got %v", err)
}

func testListConversations(t *testing.T, s persistence.Store) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	var ids []string
	for i := range 3 {
		conv, err := s.CreateConversation(ctx, persistence.Conversation{
			UserID:    "alumna",
			Title:     gofakeit.Word(),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			Messages:  []persistence.Message{fakeMessage(persistence.SenderUser)},
		})
		require.NoError(t, err)
		ids = append(ids, conv.ID)
	}
	_, err := s.CreateConversation(ctx, persistence.Conversation{UserID: "otro", Title: "ajena"})
	require.NoError(t, err)

	// appending moves the oldest conversation to the front
	require.NoError(t, s.AppendMessages(ctx, ids[0], fakeMessage(persistence.SenderUser)))

	convs, err := s.ListConversations(ctx, "alumna")
	require.NoError(t, err)
	require.Len(t, convs, 3)
	var got []string
	for _, c := range convs {
		got = append(got, c.ID)
		assert.Empty(t, c.Messages)
		assert.Equal(t, "alumna", c.UserID)
	}
	assert.Equal(t, []string{ids[0], ids[2], ids[1]}, got)

	none, err := s.ListConversations(ctx, "nadie")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testDeleteConversation(t *testing.T, s persistence.Store) {
	ctx := context.Background()
	conv, err := s.CreateConversation(ctx, persistence.Conversation{UserID: "u", Title: "borrar"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteConversation(ctx, conv.ID))
	_, err = s.GetConversation(ctx, conv.ID)
	assert.True(t, errors.Is(err, persistence.ErrNotFound), "got %v", err)

	convs, err := s.ListConversations(ctx, "u")
	require.NoError(t, err)
	assert.Empty(t, convs)

	err = s.DeleteConversation(ctx, conv.ID)
	assert.True(t, errors.Is(err, persistence.ErrNotFound), "got %v", err)
}

func testConcurrentAppends(t *testing.T, s persistence.Store) {
	ctx := context.Background()
	conv, err := s.CreateConversation(ctx, persistence.Conversation{Title: "concurrente"})
	require.NoError(t, err)

	const n = 10
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.AppendMessages(ctx, conv.ID, fakeMessage(persistence.SenderUser)))
		}()
	}
	wg.Wait()

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, n)
}

func jsonEqual(a, b json.RawMessage) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == len(b)
	}
	var x, y any
	if json.Unmarshal(a, &x) != nil || json.Unmarshal(b, &y) != nil {
		return false
	}
	return cmp.Equal(x, y)
}
