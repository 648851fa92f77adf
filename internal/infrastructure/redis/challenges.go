package redisinfra

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Syddevv/SpenSyd-Server/internal/config"
	"github.com/Syddevv/SpenSyd-Server/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	fieldCode     = "code"
	fieldData     = "data"
	fieldAttempts = "attempts"
)

// deleteIfCodeLua removes KEYS[1] only while its code field equals ARGV[1].
// Returns 1 when the key was deleted, 0 otherwise.
var deleteIfCodeLua = redis.NewScript(`
local code = redis.call('HGET', KEYS[1], 'code')
if code and code == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// incrAttemptsLua bumps the attempts field of KEYS[1] only while its code field equals ARGV[1].
// Returns the new count, or -1 when the key is gone or holds another code.
var incrAttemptsLua = redis.NewScript(`
local code = redis.call('HGET', KEYS[1], 'code')
if code and code == ARGV[1] then
  return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
end
return -1
`)

// NewClient creates a Redis client from the application config.
func NewClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// ChallengeStore keeps challenges as Redis hashes so that several API instances share them.
// Key expiry follows Challenge.PurgeAt.
type ChallengeStore struct {
	client redis.UniversalClient
	prefix string
}

func NewChallengeStore(client redis.UniversalClient, prefix string) *ChallengeStore {
	if prefix == "" {
		prefix = "spensyd"
	}
	return &ChallengeStore{client: client, prefix: prefix}
}

func (s *ChallengeStore) key(flow domain.Flow, subject string) string {
	return s.prefix + ":challenge:" + string(flow) + ":" + subject
}

func (s *ChallengeStore) Put(ctx context.Context, c *domain.Challenge) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	key := s.key(c.Flow, c.Subject)
	purgeAt := time.Unix(c.PurgeAt, 0)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fieldCode, c.Code, fieldData, data, fieldAttempts, c.Attempts)
		pipe.ExpireAt(ctx, key, purgeAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put challenge: %w", err)
	}
	return nil
}

func (s *ChallengeStore) Get(ctx context.Context, flow domain.Flow, subject string) (*domain.Challenge, error) {
	vals, err := s.client.HMGet(ctx, s.key(flow, subject), fieldData, fieldAttempts).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get challenge: %w", err)
	}
	data, ok := vals[0].(string)
	if !ok {
		return nil, fmt.Errorf("challenge not found: %w", domain.ErrNotFound)
	}
	var c domain.Challenge
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("unmarshal challenge: %w", err)
	}
	// The counter lives outside the JSON blob so the script can bump it in place.
	if a, ok := vals[1].(string); ok {
		if c.Attempts, err = strconv.Atoi(a); err != nil {
			return nil, fmt.Errorf("parse challenge attempts: %w", err)
		}
	}
	return &c, nil
}

func (s *ChallengeStore) Delete(ctx context.Context, flow domain.Flow, subject string) error {
	if err := s.client.Del(ctx, s.key(flow, subject)).Err(); err != nil {
		return fmt.Errorf("redis delete challenge: %w", err)
	}
	return nil
}

func (s *ChallengeStore) DeleteIfCode(ctx context.Context, flow domain.Flow, subject, code string) (bool, error) {
	n, err := deleteIfCodeLua.Run(ctx, s.client, []string{s.key(flow, subject)}, code).Int()
	if err != nil {
		return false, fmt.Errorf("redis consume challenge: %w", err)
	}
	return n == 1, nil
}

func (s *ChallengeStore) IncrementAttempts(ctx context.Context, flow domain.Flow, subject, code string) (int, error) {
	n, err := incrAttemptsLua.Run(ctx, s.client, []string{s.key(flow, subject)}, code).Int()
	if err != nil {
		return 0, fmt.Errorf("redis record attempt: %w", err)
	}
	if n < 0 {
		return 0, fmt.Errorf("challenge not found: %w", domain.ErrNotFound)
	}
	return n, nil
}
