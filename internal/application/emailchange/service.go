package emailchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Syddevv/SpenSyd-Server/internal/application/verification"
	"github.com/Syddevv/SpenSyd-Server/internal/domain"
)

const fieldEmail = "email"

const (
	currentSubject = "Confirm your SpenSyd email change"
	currentBody    = `You asked to change the email address on your SpenSyd account.

To confirm it's you, enter this code:

Code: %s

It expires in %s. If you didn't request this, you can ignore this email.

SpenSyd`

	newSubject = "Verify your new SpenSyd email"
	newBody    = `Enter this code to finish moving your SpenSyd account to this address:

Code: %s

It expires in %s.

SpenSyd`

	changedSubject = "Your SpenSyd email was changed"
	changedBody    = `The email address on your SpenSyd account was changed from %s to %s.

If this wasn't you, contact support immediately.

SpenSyd`
)

// Service runs the four-step email change of a logged-in user:
// confirm the current address, then verify the new one.
type Service interface {
	SendCurrentEmailCode(ctx context.Context, userID string) error
	VerifyCurrentEmailCode(ctx context.Context, userID, code string) error
	SendNewEmailCode(ctx context.Context, userID, newEmail string) error
	VerifyNewEmailCodeAndUpdate(ctx context.Context, userID, code string) (*domain.User, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type challenges interface {
	CreateAt(ctx context.Context, flow domain.Flow, subject string, stage domain.Stage, payload domain.ChallengePayload, deliver verification.Deliver) (string, error)
	Advance(ctx context.Context, flow domain.Flow, subject, code string, from, to domain.Stage) (*domain.Challenge, error)
	Require(ctx context.Context, flow domain.Flow, subject string, at domain.Stage) error
	Reissue(ctx context.Context, flow domain.Flow, subject string, from, to domain.Stage, payload domain.ChallengePayload, deliver verification.Deliver) (string, error)
	Check(ctx context.Context, flow domain.Flow, subject, code string, at domain.Stage) (*domain.Challenge, error)
	Discard(ctx context.Context, flow domain.Flow, subject string) error
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

// SendCurrentEmailCode starts (or restarts) the flow by emailing a code to the current address.
func (s *service) SendCurrentEmailCode(ctx context.Context, userID string) error {
	u, err := s.user(ctx, userID)
	if err != nil {
		return err
	}
	_, err = s.challenges.CreateAt(ctx, domain.FlowEmailChange, userID, domain.StageAwaitingCurrentCode, domain.ChallengePayload{},
		func(ctx context.Context, code string) error {
			return s.mailer.SendEmail(ctx, u.Email, currentSubject, fmt.Sprintf(currentBody, code, s.expiresIn()))
		})
	if err != nil {
		return err
	}
	slog.Info("email change started", "user_id", userID)
	return nil
}

func (s *service) VerifyCurrentEmailCode(ctx context.Context, userID, code string) error {
	_, err := s.challenges.Advance(ctx, domain.FlowEmailChange, userID, code,
		domain.StageAwaitingCurrentCode, domain.StageAwaitingNewEmail)
	return err
}

func (s *service) SendNewEmailCode(ctx context.Context, userID, newEmail string) error {
	if err := s.challenges.Require(ctx, domain.FlowEmailChange, userID, domain.StageAwaitingNewEmail); err != nil {
		return err
	}
	if err := s.ensureAvailable(ctx, userID, newEmail); err != nil {
		return err
	}
	payload := domain.ChallengePayload{NewEmail: newEmail}
	_, err := s.challenges.Reissue(ctx, domain.FlowEmailChange, userID,
		domain.StageAwaitingNewEmail, domain.StageAwaitingNewCode, payload,
		func(ctx context.Context, code string) error {
			return s.mailer.SendEmail(ctx, newEmail, newSubject, fmt.Sprintf(newBody, code, s.expiresIn()))
		})
	return err
}

func (s *service) VerifyNewEmailCodeAndUpdate(ctx context.Context, userID, code string) (*domain.User, error) {
	c, err := s.challenges.Check(ctx, domain.FlowEmailChange, userID, code, domain.StageAwaitingNewCode)
	if err != nil {
		return nil, err
	}
	newEmail := c.Payload.NewEmail
	if err := s.ensureAvailable(ctx, userID, newEmail); err != nil {
		return nil, err
	}
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	oldEmail := u.Email
	if err := s.users.Update(ctx, userID, map[string]interface{}{fieldEmail: newEmail}); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, domain.Internal("update email", err)
	}
	if err := s.challenges.Discard(ctx, domain.FlowEmailChange, userID); err != nil {
		slog.Warn("failed to discard email change challenge", "user_id", userID, "err", err)
	}
	u.Email = newEmail
	slog.Info("email changed", "user_id", userID)

	body := fmt.Sprintf(changedBody, oldEmail, newEmail)
	for _, to := range []string{oldEmail, newEmail} {
		if err := s.mailer.SendEmail(ctx, to, changedSubject, body); err != nil {
			slog.Warn("failed to send email change notice", "user_id", userID, "err", err)
		}
	}
	if err := s.events.Publish(ctx, domain.AccountEvent{
		Type: domain.EventEmailChanged, UserID: userID, Email: newEmail, OccurredAt: s.now().UTC(),
	}); err != nil {
		slog.Warn("failed to publish account event", "type", domain.EventEmailChanged, "user_id", userID, "err", err)
	}
	return u, nil
}

func (s *service) user(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
		}
		return nil, domain.Internal("load user", err)
	}
	return u, nil
}

// ensureAvailable rejects an address that already belongs to an account, including the caller's own.
func (s *service) ensureAvailable(ctx context.Context, userID, email string) error {
	owner, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return domain.Internal("lookup email", err)
	case owner.UserID == userID:
		return fmt.Errorf("new email matches the current one: %w", domain.ErrBadRequest)
	default:
		return fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}
}

func (s *service) expiresIn() string {
	return verification.ExpiresIn(s.challenges.TTL())
}
