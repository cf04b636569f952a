package sqlitestore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArianneAlonso/tutor-math-mcp/persistence"
	"github.com/ArianneAlonso/tutor-math-mcp/persistence/storetest"
)

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) persistence.Store {
		store, err := New(":memory:")
		require.NoError(t, err)
		return store
	})
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "tutor.db")

	store, err := New(dbPath)
	require.NoError(t, err)

	user, err := store.CreateUser(ctx, storetest.FakeUser())
	require.NoError(t, err)
	conv, err := store.CreateConversation(ctx, persistence.Conversation{
		UserID:   user.ID,
		Title:    "Fracciones",
		Messages: []persistence.Message{{Sender: persistence.SenderUser, Text: "¿Cuánto es 1/2 + 1/3?"}},
	})
	require.NoError(t, err)
	require.NoError(t, store.AppendMessages(ctx, conv.ID, persistence.Message{
		Sender: persistence.SenderBot,
		Text:   "5/6",
	}))
	require.NoError(t, store.Close())

	reopened, err := New(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	gotUser, err := reopened.GetUserByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, gotUser.ID)
	assert.Equal(t, user.HashedPassword, gotUser.HashedPassword)

	got, err := reopened.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "5/6", got.Messages[1].Text)
	assert.Equal(t, persistence.TypeText, got.Messages[1].MessageType)

	_, err = reopened.CreateUser(ctx, persistence.User{Name: "otra", Email: user.Email, HashedPassword: "x"})
	assert.True(t, errors.Is(err, persistence.ErrDuplicateEmail), "got %v", err)
}

func TestTimestampsSortAsText(t *testing.T) {
	early, err := parseTime("2025-01-01T00:00:00.400000000Z")
	require.NoError(t, err)
	late, err := parseTime("2025-01-01T00:00:00.450000000Z")
	require.NoError(t, err)
	assert.True(t, early.Before(late))
	assert.Less(t, formatTime(early), formatTime(late))
}

func TestExecInTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	store, err := New(":memory:")
	require.NoError(t, err)
	defer store.Close()

	conv, err := store.CreateConversation(ctx, persistence.Conversation{Title: "tx"})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = store.ExecInTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, conv.ID); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.GetConversation(ctx, conv.ID)
	assert.NoError(t, err)
}
