package redisstore

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArianneAlonso/tutor-math-mcp/persistence"
	"github.com/ArianneAlonso/tutor-math-mcp/persistence/storetest"
)

var testRun atomic.Int64

// newTestStore connects to REDIS_URL under a prefix unique to the test and
// removes its keys afterwards.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	ctx := context.Background()
	prefix := fmt.Sprintf("test-%d-%d", time.Now().UnixNano(), testRun.Add(1))
	store, err := Open(ctx, url, prefix)
	require.NoError(t, err)

	cleanup, err := Open(ctx, url, prefix)
	require.NoError(t, err)
	t.Cleanup(func() {
		iter := cleanup.client.Scan(ctx, 0, prefix+"/*", 0).Iterator()
		for iter.Next(ctx) {
			cleanup.client.Del(ctx, iter.Val())
		}
		assert.NoError(t, iter.Err())
		cleanup.Close()
	})
	return store
}

func TestRedisStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) persistence.Store {
		return newTestStore(t)
	})
}

func TestKeys(t *testing.T) {
	s := New(redis.NewClient(&redis.Options{}), "tutor")
	defer s.Close()

	assert.Equal(t, "tutor/users/u1", s.userKey("u1"))
	assert.Equal(t, "tutor/emails/a@b.c", s.emailKey("a@b.c"))
	assert.Equal(t, "tutor/conversations/c1", s.convKey("c1"))
	assert.Equal(t, "tutor/messages/c1", s.messagesKey("c1"))
	assert.Equal(t, "tutor/user-conversations/u1", s.userConvsKey("u1"))
}

func TestOpenRejectsBadURL(t *testing.T) {
	_, err := Open(context.Background(), "not a url", "x")
	assert.Error(t, err)
}

func TestAnonymousConversationsAreNotIndexed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, persistence.Conversation{Title: "anónima"})
	require.NoError(t, err)
	require.NoError(t, s.AppendMessages(ctx, conv.ID, persistence.Message{Sender: persistence.SenderUser, Text: "hola"}))

	n, err := s.client.Exists(ctx, s.prefix+"/user-conversations").Result()
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.DeleteConversation(ctx, conv.ID))
}
