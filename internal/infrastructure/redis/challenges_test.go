package redisinfra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Syddevv/SpenSyd-Server/internal/application/verification"
	"github.com/Syddevv/SpenSyd-Server/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func sample(code string) *domain.Challenge {
	exp := time.Now().Add(15 * time.Minute).UTC().Truncate(time.Second)
	return &domain.Challenge{
		Subject:   "alice@example.com",
		Flow:      domain.FlowSignup,
		Code:      code,
		ExpiresAt: exp,
		Payload:   domain.ChallengePayload{Username: "alice", PasswordHash: "$2a$hash"},
		PurgeAt:   exp.Add(time.Hour).Unix(),
	}
}

func TestChallengeStore_PutGet_RoundTripsPayload(t *testing.T) {
	_, client := newTestRedis(t)
	s := NewChallengeStore(client, "test")
	ctx := context.Background()
	want := sample("123456")

	require.NoError(t, s.Put(ctx, want))
	got, err := s.Get(ctx, domain.FlowSignup, "alice@example.com")

	require.NoError(t, err)
	assert.Equal(t, want.Code, got.Code)
	assert.Equal(t, want.Payload, got.Payload)
	assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))
}

func TestChallengeStore_KeyLayoutAndTTL(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewChallengeStore(client, "test")
	require.NoError(t, s.Put(context.Background(), sample("123456")))

	key := "test:challenge:signup:alice@example.com"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, "123456", mr.HGet(key, "code"))
	assert.Greater(t, mr.TTL(key), time.Hour)
}

func TestChallengeStore_GetMissing(t *testing.T) {
	_, client := newTestRedis(t)
	s := NewChallengeStore(client, "test")
	_, err := s.Get(context.Background(), domain.FlowSignup, "nobody@example.com")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestChallengeStore_PurgedAfterTTL(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewChallengeStore(client, "test")
	require.NoError(t, s.Put(context.Background(), sample("123456")))

	mr.FastForward(2 * time.Hour)

	_, err := s.Get(context.Background(), domain.FlowSignup, "alice@example.com")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestChallengeStore_DeleteIfCode(t *testing.T) {
	_, client := newTestRedis(t)
	s := NewChallengeStore(client, "test")
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, sample("123456")))

	ok, err := s.DeleteIfCode(ctx, domain.FlowSignup, "alice@example.com", "654321")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.DeleteIfCode(ctx, domain.FlowSignup, "alice@example.com", "123456")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.DeleteIfCode(ctx, domain.FlowSignup, "alice@example.com", "123456")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChallengeStore_PutOverwritesPreviousCode(t *testing.T) {
	_, client := newTestRedis(t)
	s := NewChallengeStore(client, "test")
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, sample("111111")))
	require.NoError(t, s.Put(ctx, sample("222222")))

	ok, err := s.DeleteIfCode(ctx, domain.FlowSignup, "alice@example.com", "111111")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChallengeStore_IncrementAttempts(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewChallengeStore(client, "test")
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, sample("123456")))

	n, err := s.IncrementAttempts(ctx, domain.FlowSignup, "alice@example.com", "123456")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.IncrementAttempts(ctx, domain.FlowSignup, "alice@example.com", "123456")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "2", mr.HGet("test:challenge:signup:alice@example.com", "attempts"))

	got, err := s.Get(ctx, domain.FlowSignup, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Attempts)

	_, err = s.IncrementAttempts(ctx, domain.FlowSignup, "alice@example.com", "999999")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = s.IncrementAttempts(ctx, domain.FlowSignup, "nobody@example.com", "123456")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestChallengeStore_PutResetsAttempts(t *testing.T) {
	_, client := newTestRedis(t)
	s := NewChallengeStore(client, "test")
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, sample("111111")))
	_, err := s.IncrementAttempts(ctx, domain.FlowSignup, "alice@example.com", "111111")
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, sample("222222")))

	got, err := s.Get(ctx, domain.FlowSignup, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Attempts)
}

func TestChallengeStore_WithManager_DropsAfterMaxAttempts(t *testing.T) {
	_, client := newTestRedis(t)
	m := verification.NewManager(NewChallengeStore(client, "test"), verification.DefaultTTL, verification.WithMaxAttempts(2))
	ctx := context.Background()

	code, err := m.Create(ctx, domain.FlowPasswordReset, "alice@example.com", domain.ChallengePayload{}, nil)
	require.NoError(t, err)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	_, err = m.Consume(ctx, domain.FlowPasswordReset, "alice@example.com", wrong)
	assert.True(t, errors.Is(err, domain.ErrMismatch))
	_, err = m.Consume(ctx, domain.FlowPasswordReset, "alice@example.com", wrong)
	assert.True(t, errors.Is(err, domain.ErrTooManyAttempts))
	_, err = m.Consume(ctx, domain.FlowPasswordReset, "alice@example.com", code)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestChallengeStore_WithManager_SingleUse(t *testing.T) {
	_, client := newTestRedis(t)
	m := verification.NewManager(NewChallengeStore(client, "test"), verification.DefaultTTL)
	ctx := context.Background()

	code, err := m.Create(ctx, domain.FlowPasswordReset, "alice@example.com", domain.ChallengePayload{}, nil)
	require.NoError(t, err)

	_, err = m.Consume(ctx, domain.FlowPasswordReset, "alice@example.com", code)
	require.NoError(t, err)
	_, err = m.Consume(ctx, domain.FlowPasswordReset, "alice@example.com", code)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestChallengeStore_RedisDown(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewChallengeStore(client, "test")
	mr.Close()

	err := s.Put(context.Background(), sample("123456"))
	require.Error(t, err)
	_, err = s.Get(context.Background(), domain.FlowSignup, "alice@example.com")
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
}
