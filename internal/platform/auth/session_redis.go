package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

type sessionStoreRedis struct {
	client *redis.Client
}

// NewSessionStoreRedis keeps each session under session:<id> and indexes
// them per actor in the set user_sessions:<actor id>.
func NewSessionStoreRedis(client *redis.Client) SessionStore {
	return &sessionStoreRedis{client: client}
}

func sessionKey(sessionID string) string { return "session:" + sessionID }

func userSessionsKey(actorID int64) string {
	return "user_sessions:" + strconv.FormatInt(actorID, 10)
}

func (s *sessionStoreRedis) Create(ctx context.Context, sessionID string, actorID int64) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(sessionID), actorID, 0)
		pipe.SAdd(ctx, userSessionsKey(actorID), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *sessionStoreRedis) Lookup(ctx context.Context, sessionID string) (int64, bool, error) {
	actorID, err := s.client.Get(ctx, sessionKey(sessionID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup session: %w", err)
	}
	return actorID, true, nil
}

// RevokeAll deletes the sessions listed in the actor's index and removes
// only those ids from it. A session created after the listing stays indexed
// and live.
func (s *sessionStoreRedis) RevokeAll(ctx context.Context, actorID int64) (int, error) {
	setKey := userSessionsKey(actorID)
	ids, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	keys, members := revokeBatch(ids)

	var removed *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.Del(ctx, keys...)
		pipe.SRem(ctx, setKey, members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	return int(removed.Val()), nil
}

// revokeBatch maps listed session ids to the keys to delete and the index
// members to remove.
func revokeBatch(ids []string) (keys []string, members []interface{}) {
	keys = make([]string, 0, len(ids))
	members = make([]interface{}, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
		members = append(members, id)
	}
	return keys, members
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
