package verification

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/Syddevv/SpenSyd-Server/internal/domain"
)

// DefaultTTL is the validity window of a freshly issued code.
const DefaultTTL = 15 * time.Minute

// DefaultMaxAttempts is the number of wrong codes after which a challenge is dropped.
const DefaultMaxAttempts = 5

// Store is a keyed challenge backend. Implementations keep at most one challenge per
// (flow, subject); Put overwrites. Get returns domain.ErrNotFound for a missing key.
type Store interface {
	Put(ctx context.Context, c *domain.Challenge) error
	Get(ctx context.Context, flow domain.Flow, subject string) (*domain.Challenge, error)
	Delete(ctx context.Context, flow domain.Flow, subject string) error
	// DeleteIfCode atomically removes the challenge only while its code still equals code.
	DeleteIfCode(ctx context.Context, flow domain.Flow, subject, code string) (bool, error)
	// IncrementAttempts atomically bumps the failed attempt counter while the stored code
	// still equals code and returns the new count. It returns domain.ErrNotFound otherwise.
	IncrementAttempts(ctx context.Context, flow domain.Flow, subject, code string) (int, error)
}

// Deliver transmits a code to the subject. A challenge is stored only after Deliver succeeds.
type Deliver func(ctx context.Context, code string) error

// Manager applies code generation, expiry and one-time-use rules on top of a Store.
type Manager struct {
	store       Store
	ttl         time.Duration
	retention   time.Duration
	maxAttempts int
	now         func() time.Time
	newCode     func() (string, error)
}

type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRetention keeps expired challenges in the backend for d so a late attempt reports
// domain.ErrExpired instead of domain.ErrNotFound.
func WithRetention(d time.Duration) Option {
	return func(m *Manager) { m.retention = d }
}

// WithMaxAttempts sets how many wrong codes a challenge tolerates before it is dropped.
// Values below 1 keep the default.
func WithMaxAttempts(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

// WithCodeGenerator overrides code generation.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(m *Manager) { m.newCode = gen }
}

func NewManager(store Store, ttl time.Duration, opts ...Option) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Manager{
		store:       store,
		ttl:         ttl,
		retention:   time.Hour,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
		newCode:     NewCode,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the code validity window.
func (m *Manager) TTL() time.Duration { return m.ttl }

// ExpiresIn renders a code lifetime for emails in whole minutes, rounded up.
func ExpiresIn(d time.Duration) string {
	minutes := int((d + time.Minute - 1) / time.Minute)
	if minutes <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

// NewCode returns a uniformly random, zero-padded 6-digit numeric code.
func NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Create issues a new code for (flow, subject), delivers it and then stores it,
// replacing any previous challenge for the key.
func (m *Manager) Create(ctx context.Context, flow domain.Flow, subject string, payload domain.ChallengePayload, deliver Deliver) (string, error) {
	return m.issue(ctx, flow, subject, domain.StageNone, payload, deliver)
}

// CreateAt is Create for multi-step flows, starting the challenge at stage.
func (m *Manager) CreateAt(ctx context.Context, flow domain.Flow, subject string, stage domain.Stage, payload domain.ChallengePayload, deliver Deliver) (string, error) {
	return m.issue(ctx, flow, subject, stage, payload, deliver)
}

// Consume matches code against the stored challenge and deletes it on success.
// A mismatch leaves the challenge in place; an expired challenge is deleted.
func (m *Manager) Consume(ctx context.Context, flow domain.Flow, subject, code string) (*domain.Challenge, error) {
	c, err := m.load(ctx, flow, subject)
	if err != nil {
		return nil, err
	}
	if err := m.match(ctx, c, code); err != nil {
		return nil, err
	}
	ok, err := m.store.DeleteIfCode(ctx, flow, subject, c.Code)
	if err != nil {
		return nil, domain.Internal("consume challenge", err)
	}
	if !ok {
		// Consumed or replaced between Get and delete.
		return nil, fmt.Errorf("no pending %s verification: %w", flow, domain.ErrNotFound)
	}
	return c, nil
}

// Advance verifies code for a challenge sitting at stage from and moves it to stage to,
// keeping it stored and opening a fresh validity window for the next step.
func (m *Manager) Advance(ctx context.Context, flow domain.Flow, subject, code string, from, to domain.Stage) (*domain.Challenge, error) {
	c, err := m.Check(ctx, flow, subject, code, from)
	if err != nil {
		return nil, err
	}
	c.Stage = to
	c.Attempts = 0
	m.stamp(c)
	if err := m.store.Put(ctx, c); err != nil {
		return nil, domain.Internal("advance challenge", err)
	}
	return c, nil
}

// Reissue replaces the code of a challenge sitting at stage from with a fresh one bound to
// payload, delivers it, and only then records the move to stage to.
func (m *Manager) Reissue(ctx context.Context, flow domain.Flow, subject string, from, to domain.Stage, payload domain.ChallengePayload, deliver Deliver) (string, error) {
	c, err := m.loadAt(ctx, flow, subject, from)
	if err != nil {
		return "", err
	}
	if c.Expired(m.now()) {
		m.discard(ctx, c)
		return "", fmt.Errorf("%s verification expired: %w", flow, domain.ErrExpired)
	}
	return m.issue(ctx, flow, subject, to, payload, deliver)
}

// Check verifies code for a challenge sitting at stage at without modifying it.
// A missing challenge or a different stage is an out-of-order call.
func (m *Manager) Check(ctx context.Context, flow domain.Flow, subject, code string, at domain.Stage) (*domain.Challenge, error) {
	c, err := m.loadAt(ctx, flow, subject, at)
	if err != nil {
		return nil, err
	}
	if err := m.match(ctx, c, code); err != nil {
		return nil, err
	}
	return c, nil
}

// Require reports whether a challenge for (flow, subject) currently sits at stage at and
// is still valid, without consuming it.
func (m *Manager) Require(ctx context.Context, flow domain.Flow, subject string, at domain.Stage) error {
	c, err := m.loadAt(ctx, flow, subject, at)
	if err != nil {
		return err
	}
	if c.Expired(m.now()) {
		m.discard(ctx, c)
		return fmt.Errorf("%s verification expired: %w", flow, domain.ErrExpired)
	}
	return nil
}

// Grant stores a caller-chosen secret for (flow, subject) valid for ttl.
func (m *Manager) Grant(ctx context.Context, flow domain.Flow, subject, secret string, ttl time.Duration) error {
	c := &domain.Challenge{
		Subject:   subject,
		Flow:      flow,
		Code:      secret,
		ExpiresAt: m.now().Add(ttl),
	}
	c.PurgeAt = c.ExpiresAt.Add(m.retention).Unix()
	if err := m.store.Put(ctx, c); err != nil {
		return domain.Internal("store grant", err)
	}
	return nil
}

// Restore puts back a challenge returned by Consume when the step it unlocked could not be
// completed, so the same code or grant can be retried. Expired challenges are not restored.
func (m *Manager) Restore(ctx context.Context, c *domain.Challenge) error {
	if c.Expired(m.now()) {
		return nil
	}
	if err := m.store.Put(ctx, c); err != nil {
		return domain.Internal("restore challenge", err)
	}
	return nil
}

// Discard removes any challenge for (flow, subject). Missing keys are not an error.
func (m *Manager) Discard(ctx context.Context, flow domain.Flow, subject string) error {
	if err := m.store.Delete(ctx, flow, subject); err != nil {
		return domain.Internal("discard challenge", err)
	}
	return nil
}

func (m *Manager) issue(ctx context.Context, flow domain.Flow, subject string, stage domain.Stage, payload domain.ChallengePayload, deliver Deliver) (string, error) {
	code, err := m.newCode()
	if err != nil {
		return "", domain.Internal("issue code", err)
	}
	c := &domain.Challenge{
		Subject: subject,
		Flow:    flow,
		Code:    code,
		Stage:   stage,
		Payload: payload,
	}
	m.stamp(c)
	if deliver != nil {
		if err := deliver(ctx, code); err != nil {
			return "", domain.Internal("deliver code", err)
		}
	}
	if err := m.store.Put(ctx, c); err != nil {
		return "", domain.Internal("store challenge", err)
	}
	return code, nil
}

func (m *Manager) stamp(c *domain.Challenge) {
	c.ExpiresAt = m.now().Add(m.ttl)
	c.PurgeAt = c.ExpiresAt.Add(m.retention).Unix()
}

func (m *Manager) load(ctx context.Context, flow domain.Flow, subject string) (*domain.Challenge, error) {
	c, err := m.store.Get(ctx, flow, subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("no pending %s verification: %w", flow, domain.ErrNotFound)
		}
		return nil, domain.Internal("load challenge", err)
	}
	return c, nil
}

func (m *Manager) loadAt(ctx context.Context, flow domain.Flow, subject string, at domain.Stage) (*domain.Challenge, error) {
	c, err := m.load(ctx, flow, subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%s step requires %s: %w", flow, at, domain.ErrInvalidFlow)
		}
		return nil, err
	}
	if c.Stage != at {
		return nil, fmt.Errorf("%s is at %s, step requires %s: %w", flow, c.Stage, at, domain.ErrInvalidFlow)
	}
	return c, nil
}

// match applies the expiry and code checks in that order. Expired challenges are deleted,
// and so is a challenge whose failed attempts reach maxAttempts.
func (m *Manager) match(ctx context.Context, c *domain.Challenge, code string) error {
	if c.Expired(m.now()) {
		m.discard(ctx, c)
		return fmt.Errorf("%s code expired: %w", c.Flow, domain.ErrExpired)
	}
	if subtle.ConstantTimeCompare([]byte(c.Code), []byte(code)) == 1 {
		return nil
	}
	n, err := m.store.IncrementAttempts(ctx, c.Flow, c.Subject, c.Code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Consumed or replaced since it was loaded.
			return fmt.Errorf("no pending %s verification: %w", c.Flow, domain.ErrNotFound)
		}
		return domain.Internal("record attempt", err)
	}
	if n >= m.maxAttempts {
		m.discard(ctx, c)
		return fmt.Errorf("too many wrong %s codes, request a new one: %w", c.Flow, domain.ErrTooManyAttempts)
	}
	return fmt.Errorf("invalid %s code: %w", c.Flow, domain.ErrMismatch)
}

func (m *Manager) discard(ctx context.Context, c *domain.Challenge) {
	if _, err := m.store.DeleteIfCode(ctx, c.Flow, c.Subject, c.Code); err != nil {
		slog.Warn("failed to delete expired challenge", "flow", c.Flow, "subject", c.Subject, "err", err)
	}
}
