package signup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Syddevv/SpenSyd-Server/internal/application/verification"
	"github.com/Syddevv/SpenSyd-Server/internal/domain"
	"github.com/Syddevv/SpenSyd-Server/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

const welcomeSubject = "Your SpenSyd Verification Code"

const welcomeBody = `Welcome to SpenSyd, %s!

We're excited to have you join our growing community of smart spenders.
Track your expenses effortlessly, gain insights into your spending habits, and take
control of your finances in one place.

To get started, verify your email with this code:

Code: %s

It expires in %s.

If you didn't sign up for SpenSyd, please ignore this email.

Thank you,
SpenSyd`

type Service interface {
	RequestCode(ctx context.Context, req domain.SignupRequest) error
	ConfirmCode(ctx context.Context, req domain.VerifyEmailRequest) (*domain.User, error)
}

type userStore interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
}

type challenges interface {
	Create(ctx context.Context, flow domain.Flow, subject string, payload domain.ChallengePayload, deliver verification.Deliver) (string, error)
	Consume(ctx context.Context, flow domain.Flow, subject, code string) (*domain.Challenge, error)
	Restore(ctx context.Context, c *domain.Challenge) error
	TTL() time.Duration
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
	mailer     mailer
	events     eventPublisher
	now        func() time.Time
}

type ServiceDeps struct {
	UserRepo   userStore
	Challenges challenges
	Mailer     mailer
	Events     eventPublisher
}

func NewService(deps ServiceDeps) Service {
	return &service{
		users:      deps.UserRepo,
		challenges: deps.Challenges,
		mailer:     deps.Mailer,
		events:     deps.Events,
		now:        time.Now,
	}
}

func (s *service) RequestCode(ctx context.Context, req domain.SignupRequest) error {
	if err := s.ensureAvailable(ctx, req.Username, req.Email); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return fmt.Errorf("password must be at most 72 bytes: %w", domain.ErrBadRequest)
		}
		return domain.Internal("hash password", err)
	}
	payload := domain.ChallengePayload{Username: req.Username, PasswordHash: string(hash)}
	expiresIn := verification.ExpiresIn(s.challenges.TTL())
	_, err = s.challenges.Create(ctx, domain.FlowSignup, req.Email, payload, func(ctx context.Context, code string) error {
		return s.mailer.SendEmail(ctx, req.Email, welcomeSubject, fmt.Sprintf(welcomeBody, req.Username, code, expiresIn))
	})
	if err != nil {
		return err
	}
	slog.Info("signup code sent", "email", req.Email)
	return nil
}

func (s *service) ConfirmCode(ctx context.Context, req domain.VerifyEmailRequest) (*domain.User, error) {
	c, err := s.challenges.Consume(ctx, domain.FlowSignup, req.Email, req.Code)
	if err != nil {
		return nil, err
	}
	// The account may have been registered between the two steps.
	if err := s.ensureAvailable(ctx, c.Payload.Username, req.Email); err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			s.restore(ctx, c)
		}
		return nil, err
	}
	now := s.now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Username:     c.Payload.Username,
		Email:        req.Email,
		PasswordHash: c.Payload.PasswordHash,
		Verified:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Put(ctx, u); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		s.restore(ctx, c)
		return nil, domain.Internal("create user", err)
	}
	slog.Info("account created", "user_id", u.UserID)
	if err := s.events.Publish(ctx, domain.AccountEvent{
		Type: domain.EventAccountCreated, UserID: u.UserID, Email: u.Email, OccurredAt: now,
	}); err != nil {
		slog.Warn("failed to publish account event", "type", domain.EventAccountCreated, "user_id", u.UserID, "err", err)
	}
	return u, nil
}

// restore puts the consumed signup back when the account could not be written, so the
// same code can be retried.
func (s *service) restore(ctx context.Context, c *domain.Challenge) {
	if err := s.challenges.Restore(ctx, c); err != nil {
		slog.Warn("failed to restore signup challenge", "email", c.Subject, "err", err)
	}
}

// ensureAvailable reports domain.ErrConflict when username or email already belongs to an account.
func (s *service) ensureAvailable(ctx context.Context, username, email string) error {
	if err := absent(s.users.GetByUsername(ctx, username)); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return fmt.Errorf("username already taken: %w", domain.ErrConflict)
		}
		return err
	}
	if err := absent(s.users.GetByEmail(ctx, email)); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return fmt.Errorf("email already registered: %w", domain.ErrConflict)
		}
		return err
	}
	return nil
}

func absent(_ *domain.User, err error) error {
	switch {
	case err == nil:
		return domain.ErrConflict
	case errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		return domain.Internal("lookup user", err)
	}
}
