package store

import (
	"context"
	"fmt"
	"time"

	"github.com/mycvconnect/mhire/internal/mhire/model"
	"github.com/mycvconnect/mhire/pkg/component/redis"
	"github.com/mycvconnect/mhire/pkg/utils/json"
)

// RedisSessionStore keeps each session as a Redis list of JSON turns so
// that several replicas share conversation state.
type RedisSessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	maxTurns int
}

// NewRedisSessionStore creates a store. ttl <= 0 disables expiry and
// maxTurns <= 0 keeps every turn.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration, maxTurns int) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl, maxTurns: maxTurns}
}

func (s *RedisSessionStore) key(sessionID string) string {
	return s.client.Key("session", sessionID)
}

// Load reads the whole list.
func (s *RedisSessionStore) Load(ctx context.Context, sessionID string) ([]model.Turn, error) {
	raw, err := s.client.Client().LRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	turns := make([]model.Turn, 0, len(raw))
	for _, item := range raw {
		var t model.Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("decode session turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// Append pushes the turns, trims and refreshes the TTL in one MULTI/EXEC.
func (s *RedisSessionStore) Append(ctx context.Context, sessionID string, turns ...model.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	values := make([]any, 0, len(turns))
	for _, t := range turns {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encode session turn: %w", err)
		}
		values = append(values, data)
	}

	key := s.key(sessionID)
	pipe := s.client.Client().TxPipeline()
	pipe.RPush(ctx, key, values...)
	if s.maxTurns > 0 {
		pipe.LTrim(ctx, key, int64(-s.maxTurns*2), -1)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append session: %w", err)
	}
	return nil
}
