package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Syddevv/SpenSyd-Server/internal/domain"
)

type challengeKey struct {
	flow    domain.Flow
	subject string
}

// ChallengeStore is a process-local challenge backend for single-instance deployments.
// Entries past their PurgeAt are dropped by Run.
type ChallengeStore struct {
	mu      sync.Mutex
	entries map[challengeKey]domain.Challenge
	now     func() time.Time
}

func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{
		entries: make(map[challengeKey]domain.Challenge),
		now:     time.Now,
	}
}

func (s *ChallengeStore) Put(_ context.Context, c *domain.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[challengeKey{c.Flow, c.Subject}] = *c
	return nil
}

func (s *ChallengeStore) Get(_ context.Context, flow domain.Flow, subject string) (*domain.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.entries[challengeKey{flow, subject}]
	if !ok {
		return nil, fmt.Errorf("challenge not found: %w", domain.ErrNotFound)
	}
	return &c, nil
}

func (s *ChallengeStore) Delete(_ context.Context, flow domain.Flow, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, challengeKey{flow, subject})
	return nil
}

func (s *ChallengeStore) DeleteIfCode(_ context.Context, flow domain.Flow, subject, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := challengeKey{flow, subject}
	c, ok := s.entries[k]
	if !ok || c.Code != code {
		return false, nil
	}
	delete(s.entries, k)
	return true, nil
}

func (s *ChallengeStore) IncrementAttempts(_ context.Context, flow domain.Flow, subject, code string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := challengeKey{flow, subject}
	c, ok := s.entries[k]
	if !ok || c.Code != code {
		return 0, fmt.Errorf("challenge not found: %w", domain.ErrNotFound)
	}
	c.Attempts++
	s.entries[k] = c
	return c.Attempts, nil
}

// Len returns the number of stored challenges, including expired ones not yet purged.
func (s *ChallengeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Purge removes every challenge whose PurgeAt has passed and returns how many were removed.
func (s *ChallengeStore) Purge() int {
	now := s.now().Unix()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, c := range s.entries {
		if c.PurgeAt <= now {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// Run purges stale challenges every interval until ctx is cancelled.
func (s *ChallengeStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Purge(); n > 0 {
				slog.Debug("purged stale challenges", "count", n)
			}
		}
	}
}
