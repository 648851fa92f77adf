package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Syddevv/SpenSyd-Server/internal/application/verification"
	"github.com/Syddevv/SpenSyd-Server/internal/domain"
	jwtinfra "github.com/Syddevv/SpenSyd-Server/internal/infrastructure/jwt"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DefaultTokenTTL bounds the window between code verification and the password update.
const DefaultTokenTTL = 15 * time.Minute

const fieldPasswordHash = "password_hash"

const (
	codeSubject = "Your SpenSyd Password Reset Code"
	codeBody    = `We received a request to reset your SpenSyd password.

Code: %s

It expires in %s. If you didn't request a reset, you can ignore this email.

SpenSyd`

	changedSubject = "Your SpenSyd password was changed"
	changedBody    = `The password for your SpenSyd account was just changed.

If this wasn't you, reset your password immediately and contact support.

SpenSyd`
)

type Service interface {
	RequestReset(ctx context.Context, email string) error
	// VerifyCode consumes the emailed code and returns a single-use reset token.
	VerifyCode(ctx context.Context, email, code string) (string, error)
	ResetPassword(ctx context.Context, email, token, newPassword string) error
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type challenges interface {
	Create(ctx context.Context, flow domain.Flow, subject string, payload domain.ChallengePayload, deliver verification.Deliver) (string, error)
	Consume(ctx context.Context, flow domain.Flow, subject, code string) (*domain.Challenge, error)
	Grant(ctx context.Context, flow domain.Flow, subject, secret string, ttl time.Duration) error
	Restore(ctx context.Context, c *domain.Challenge) error
	Discard(ctx context.Context, flow domain.Flow, subject string) error
	TTL() time.Duration
}

type tokenIssuer interface {
	SignReset(email, grantID string, ttl time.Duration) (string, error)
	VerifyReset(tokenStr string) (*jwtinfra.Claims, error)
}

type mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type eventPublisher interface {
	Publish(ctx context.Context, event domain.AccountEvent) error
}

type service struct {
	users      userStore
	challenges challenges
	tokens     tokenIssuer
	mailer     mailer
	events     eventPublisher
	tokenTTL   time.Duration
	now        func() time.Time
}

type ServiceDeps struct {
	UserRepo   userStore
	Challenges challenges
	Tokens     tokenIssuer
	Mailer     mailer
	Events     eventPublisher
	TokenTTL   time.Duration
}

func NewService(deps ServiceDeps) Service {
	ttl := deps.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &service{
		users:      deps.UserRepo,
		challenges: deps.Challenges,
		tokens:     deps.Tokens,
		mailer:     deps.Mailer,
		events:     deps.Events,
		tokenTTL:   ttl,
		now:        time.Now,
	}
}

func (s *service) RequestReset(ctx context.Context, email string) error {
	if _, err := s.lookup(ctx, email); err != nil {
		return err
	}
	expiresIn := verification.ExpiresIn(s.challenges.TTL())
	_, err := s.challenges.Create(ctx, domain.FlowPasswordReset, email, domain.ChallengePayload{}, func(ctx context.Context, code string) error {
		return s.mailer.SendEmail(ctx, email, codeSubject, fmt.Sprintf(codeBody, code, expiresIn))
	})
	if err != nil {
		return err
	}
	slog.Info("password reset code sent", "email", email)
	return nil
}

func (s *service) VerifyCode(ctx context.Context, email, code string) (string, error) {
	c, err := s.challenges.Consume(ctx, domain.FlowPasswordReset, email, code)
	if err != nil {
		return "", err
	}
	grantID := uuid.NewString()
	if err := s.challenges.Grant(ctx, domain.FlowResetGrant, email, grantID, s.tokenTTL); err != nil {
		s.restore(ctx, c)
		return "", err
	}
	token, err := s.tokens.SignReset(email, grantID, s.tokenTTL)
	if err != nil {
		s.restore(ctx, c)
		return "", domain.Internal("sign reset token", err)
	}
	return token, nil
}

func (s *service) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	claims, err := s.tokens.VerifyReset(token)
	if err != nil {
		return err
	}
	if claims.Subject != email {
		return fmt.Errorf("reset token was issued for another account: %w", domain.ErrUnauthorized)
	}
	u, err := s.lookup(ctx, email)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return fmt.Errorf("password must be at most 72 bytes: %w", domain.ErrBadRequest)
		}
		return domain.Internal("hash password", err)
	}
	// The grant is the one-time part of the token.
	grant, err := s.challenges.Consume(ctx, domain.FlowResetGrant, email, claims.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrMismatch) {
			return fmt.Errorf("reset token already used: %w", domain.ErrUnauthorized)
		}
		return err
	}
	if err := s.users.Update(ctx, u.UserID, map[string]interface{}{fieldPasswordHash: string(hash)}); err != nil {
		s.restore(ctx, grant)
		return domain.Internal("update password", err)
	}
	if err := s.challenges.Discard(ctx, domain.FlowPasswordReset, email); err != nil {
		slog.Warn("failed to discard reset challenge", "email", email, "err", err)
	}
	slog.Info("password reset", "user_id", u.UserID)

	if err := s.mailer.SendEmail(ctx, email, changedSubject, changedBody); err != nil {
		slog.Warn("failed to send password change notice", "user_id", u.UserID, "err", err)
	}
	if err := s.events.Publish(ctx, domain.AccountEvent{
		Type: domain.EventPasswordReset, UserID: u.UserID, Email: email, OccurredAt: s.now().UTC(),
	}); err != nil {
		slog.Warn("failed to publish account event", "type", domain.EventPasswordReset, "user_id", u.UserID, "err", err)
	}
	return nil
}

// restore puts a consumed challenge back after the step it unlocked failed, so the
// user can retry with the same code or token.
func (s *service) restore(ctx context.Context, c *domain.Challenge) {
	if err := s.challenges.Restore(ctx, c); err != nil {
		slog.Warn("failed to restore challenge", "flow", c.Flow, "subject", c.Subject, "err", err)
	}
}

func (s *service) lookup(ctx context.Context, email string) (*domain.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("no account for %s: %w", email, domain.ErrNotFound)
		}
		return nil, domain.Internal("lookup user", err)
	}
	return u, nil
}
