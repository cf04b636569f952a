// Package redisstore implements persistence.Store on Redis.
//
// Keys are namespaced under a prefix:
//
//	<prefix>/users/<id>                 user JSON
//	<prefix>/emails/<email>             user id, claimed with SETNX
//	<prefix>/conversations/<id>         conversation header JSON (no messages)
//	<prefix>/messages/<id>              list of message JSON
//	<prefix>/user-conversations/<user>  sorted set of conversation ids by update time
package redisstore

import (
	"context"
	"encoding/json"
	"path"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/ArianneAlonso/tutor-math-mcp/persistence"
)

// maxTxRetries bounds optimistic-lock retries for conversation updates.
const maxTxRetries = 100

// Store implements persistence.Store using Redis.
type Store struct {
	client *redis.Client
	prefix string
}

var _ persistence.Store = (*Store)(nil)

// New returns a store using client with keys under prefix.
func New(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Open parses a redis:// URL, connects and pings the server.
func Open(ctx context.Context, url, prefix string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return New(client, prefix), nil
}

func (s *Store) userKey(id string) string     { return path.Join(s.prefix, "users", id) }
func (s *Store) emailKey(email string) string { return path.Join(s.prefix, "emails", email) }
func (s *Store) convKey(id string) string     { return path.Join(s.prefix, "conversations", id) }
func (s *Store) messagesKey(id string) string { return path.Join(s.prefix, "messages", id) }
// userConvsKey indexes a user's conversations by update time. Anonymous
// conversations are not indexed.
func (s *Store) userConvsKey(userID string) string {
	return path.Join(s.prefix, "user-conversations", userID)
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// CreateUser implements persistence.Store.
func (s *Store) CreateUser(ctx context.Context, user persistence.User) (persistence.User, error) {
	user = persistence.PrepareUser(user)

	data, err := json.Marshal(user)
	if err != nil {
		return persistence.User{}, errors.Wrap(err, "marshal user")
	}

	claimed, err := s.client.SetNX(ctx, s.emailKey(user.Email), user.ID, 0).Result()
	if err != nil {
		return persistence.User{}, errors.Wrap(err, "claim email")
	}
	if !claimed {
		return persistence.User{}, errors.Mark(errors.Newf("email %q already registered", user.Email), persistence.ErrDuplicateEmail)
	}

	if err := s.client.Set(ctx, s.userKey(user.ID), data, 0).Err(); err != nil {
		s.client.Del(ctx, s.emailKey(user.Email))
		return persistence.User{}, errors.Wrap(err, "store user")
	}
	return user, nil
}

// GetUser implements persistence.Store.
func (s *Store) GetUser(ctx context.Context, id string) (persistence.User, error) {
	data, err := s.client.Get(ctx, s.userKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return persistence.User{}, persistence.NotFound("user", id)
		}
		return persistence.User{}, errors.Wrap(err, "get user")
	}
	var user persistence.User
	if err := json.Unmarshal(data, &user); err != nil {
		return persistence.User{}, errors.Wrap(err, "unmarshal user")
	}
	return user, nil
}

// GetUserByEmail implements persistence.Store.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	id, err := s.client.Get(ctx, s.emailKey(persistence.NormalizeEmail(email))).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return persistence.User{}, persistence.NotFound("user", email)
		}
		return persistence.User{}, errors.Wrap(err, "get user by email")
	}
	return s.GetUser(ctx, id)
}

// CreateConversation implements persistence.Store.
func (s *Store) CreateConversation(ctx context.Context, conv persistence.Conversation) (persistence.Conversation, error) {
	conv = persistence.PrepareConversation(conv)

	header := conv
	header.Messages = nil
	data, err := json.Marshal(header)
	if err != nil {
		return persistence.Conversation{}, errors.Wrap(err, "marshal conversation")
	}
	msgs, err := marshalMessages(conv.Messages)
	if err != nil {
		return persistence.Conversation{}, err
	}

	created, err := s.client.SetNX(ctx, s.convKey(conv.ID), data, 0).Result()
	if err != nil {
		return persistence.Conversation{}, errors.Wrap(err, "store conversation")
	}
	if !created {
		return persistence.Conversation{}, errors.Newf("conversation %q already exists", conv.ID)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(msgs) > 0 {
			pipe.RPush(ctx, s.messagesKey(conv.ID), msgs...)
		}
		if conv.UserID != "" {
			pipe.ZAdd(ctx, s.userConvsKey(conv.UserID), redis.Z{Score: score(conv.UpdatedAt), Member: conv.ID})
		}
		return nil
	})
	if err != nil {
		return persistence.Conversation{}, errors.Wrap(err, "store conversation messages")
	}
	return conv, nil
}

func marshalMessages(msgs []persistence.Message) ([]any, error) {
	out := make([]any, 0, len(msgs))
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return nil, errors.Wrap(err, "marshal message")
		}
		out = append(out, data)
	}
	return out, nil
}

// AppendMessages implements persistence.Store. The header update is
// guarded by WATCH so a concurrent delete is not resurrected.
func (s *Store) AppendMessages(ctx context.Context, conversationID string, msgs ...persistence.Message) error {
	msgs = persistence.PrepareMessages(msgs...)
	payload, err := marshalMessages(msgs)
	if err != nil {
		return err
	}

	key := s.convKey(conversationID)
	txf := func(tx *redis.Tx) error {
		header, err := getHeader(ctx, tx, key, conversationID)
		if err != nil {
			return err
		}
		header.UpdatedAt = time.Now().UTC()
		data, err := json.Marshal(header)
		if err != nil {
			return errors.Wrap(err, "marshal conversation")
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if len(payload) > 0 {
				pipe.RPush(ctx, s.messagesKey(conversationID), payload...)
			}
			if header.UserID != "" {
				pipe.ZAdd(ctx, s.userConvsKey(header.UserID), redis.Z{Score: score(header.UpdatedAt), Member: conversationID})
			}
			return nil
		})
		return err
	}

	for range maxTxRetries {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, persistence.ErrNotFound) {
			return errors.Wrap(err, "append messages")
		}
		return err
	}
	return errors.Newf("append messages to %q: too much contention", conversationID)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getHeader(ctx context.Context, c getter, key, id string) (persistence.Conversation, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return persistence.Conversation{}, persistence.NotFound("conversation", id)
		}
		return persistence.Conversation{}, errors.Wrap(err, "get conversation")
	}
	var conv persistence.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return persistence.Conversation{}, errors.Wrap(err, "unmarshal conversation")
	}
	return conv, nil
}

// GetConversation implements persistence.Store.
func (s *Store) GetConversation(ctx context.Context, id string) (persistence.Conversation, error) {
	conv, err := getHeader(ctx, s.client, s.convKey(id), id)
	if err != nil {
		return persistence.Conversation{}, err
	}

	items, err := s.client.LRange(ctx, s.messagesKey(id), 0, -1).Result()
	if err != nil {
		return persistence.Conversation{}, errors.Wrap(err, "get messages")
	}
	conv.Messages = make([]persistence.Message, 0, len(items))
	for _, item := range items {
		var m persistence.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return persistence.Conversation{}, errors.Wrap(err, "unmarshal message")
		}
		conv.Messages = append(conv.Messages, m)
	}
	return conv, nil
}

// ListConversations implements persistence.Store.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]persistence.Conversation, error) {
	ids, err := s.client.ZRevRange(ctx, s.userConvsKey(userID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "list conversations")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.convKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "get conversations")
	}

	var convs []persistence.Conversation
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			// removed since the index was read
			continue
		}
		var conv persistence.Conversation
		if err := json.Unmarshal([]byte(str), &conv); err != nil {
			return nil, errors.Wrap(err, "unmarshal conversation")
		}
		convs = append(convs, conv)
	}
	persistence.SortNewestFirst(convs)
	return convs, nil
}

// DeleteConversation implements persistence.Store.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	header, err := getHeader(ctx, s.client, s.convKey(id), id)
	if err != nil {
		return err
	}

	var deleted *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, s.convKey(id))
		pipe.Del(ctx, s.messagesKey(id))
		if header.UserID != "" {
			pipe.ZRem(ctx, s.userConvsKey(header.UserID), id)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "delete conversation")
	}
	if deleted.Val() == 0 {
		return persistence.NotFound("conversation", id)
	}
	return nil
}

// Close implements persistence.Store.
func (s *Store) Close() error {
	return s.client.Close()
}
