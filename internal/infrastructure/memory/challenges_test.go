package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Syddevv/SpenSyd-Server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func challenge(subject, code string, purgeAt time.Time) *domain.Challenge {
	return &domain.Challenge{
		Subject:   subject,
		Flow:      domain.FlowSignup,
		Code:      code,
		ExpiresAt: purgeAt.Add(-time.Hour),
		PurgeAt:   purgeAt.Unix(),
	}
}

func TestChallengeStore_GetMissing(t *testing.T) {
	s := NewChallengeStore()
	_, err := s.Get(context.Background(), domain.FlowSignup, "a@b.com")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestChallengeStore_PutOverwrites(t *testing.T) {
	s := NewChallengeStore()
	ctx := context.Background()
	future := time.Now().Add(time.Hour)

	require.NoError(t, s.Put(ctx, challenge("a@b.com", "111111", future)))
	require.NoError(t, s.Put(ctx, challenge("a@b.com", "222222", future)))

	got, err := s.Get(ctx, domain.FlowSignup, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "222222", got.Code)
	assert.Equal(t, 1, s.Len())
}

func TestChallengeStore_FlowsAreIndependent(t *testing.T) {
	s := NewChallengeStore()
	ctx := context.Background()
	c := challenge("a@b.com", "111111", time.Now().Add(time.Hour))
	require.NoError(t, s.Put(ctx, c))

	_, err := s.Get(ctx, domain.FlowPasswordReset, "a@b.com")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestChallengeStore_DeleteIfCode(t *testing.T) {
	s := NewChallengeStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, challenge("a@b.com", "111111", time.Now().Add(time.Hour))))

	ok, err := s.DeleteIfCode(ctx, domain.FlowSignup, "a@b.com", "999999")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())

	ok, err = s.DeleteIfCode(ctx, domain.FlowSignup, "a@b.com", "111111")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, s.Len())

	ok, err = s.DeleteIfCode(ctx, domain.FlowSignup, "a@b.com", "111111")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChallengeStore_IncrementAttempts(t *testing.T) {
	s := NewChallengeStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, challenge("a@b.com", "111111", time.Now().Add(time.Hour))))

	n, err := s.IncrementAttempts(ctx, domain.FlowSignup, "a@b.com", "111111")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.IncrementAttempts(ctx, domain.FlowSignup, "a@b.com", "111111")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.Get(ctx, domain.FlowSignup, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Attempts)

	_, err = s.IncrementAttempts(ctx, domain.FlowSignup, "a@b.com", "999999")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = s.IncrementAttempts(ctx, domain.FlowSignup, "nobody@b.com", "111111")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestChallengeStore_StoredValueIsCopied(t *testing.T) {
	s := NewChallengeStore()
	ctx := context.Background()
	c := challenge("a@b.com", "111111", time.Now().Add(time.Hour))
	require.NoError(t, s.Put(ctx, c))
	c.Code = "mutated"

	got, err := s.Get(ctx, domain.FlowSignup, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "111111", got.Code)
}

func TestChallengeStore_Purge(t *testing.T) {
	s := NewChallengeStore()
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Put(ctx, challenge("stale@b.com", "111111", now.Add(-time.Second))))
	require.NoError(t, s.Put(ctx, challenge("live@b.com", "222222", now.Add(time.Minute))))

	assert.Equal(t, 1, s.Purge())
	_, err := s.Get(ctx, domain.FlowSignup, "live@b.com")
	assert.NoError(t, err)
	_, err = s.Get(ctx, domain.FlowSignup, "stale@b.com")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestChallengeStore_RunStopsOnCancel(t *testing.T) {
	s := NewChallengeStore()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
