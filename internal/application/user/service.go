package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Syddevv/SpenSyd-Server/internal/domain"
)

type Service interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	// Delete removes the account together with every activity it owns.
	Delete(ctx context.Context, userID string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Delete(ctx context.Context, userID string) error
}

type activityStore interface {
	DeleteByUser(ctx context.Context, userID string) error
}

type challengeDiscarder interface {
	Discard(ctx context.Context, flow domain.Flow, subject string) error
}

type eventPublisher interface {
	Publish(ctx context.Context, event domain.AccountEvent) error
}

type service struct {
	repo         userStore
	activityRepo activityStore
	challenges   challengeDiscarder
	events       eventPublisher
}

type ServiceDeps struct {
	UserRepo     userStore
	ActivityRepo activityStore
	Challenges   challengeDiscarder
	Events       eventPublisher
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:         deps.UserRepo,
		activityRepo: deps.ActivityRepo,
		challenges:   deps.Challenges,
		events:       deps.Events,
	}
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
		}
		return nil, domain.Internal("load user", err)
	}
	return u, nil
}

func (s *service) Delete(ctx context.Context, userID string) error {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.activityRepo.DeleteByUser(ctx, userID); err != nil {
		return domain.Internal("delete activities", err)
	}
	if err := s.repo.Delete(ctx, userID); err != nil {
		return domain.Internal("delete user", err)
	}
	if err := s.challenges.Discard(ctx, domain.FlowEmailChange, userID); err != nil {
		slog.Warn("failed to discard email change challenge", "user_id", userID, "err", err)
	}
	slog.Info("account deleted", "user_id", userID)
	if err := s.events.Publish(ctx, domain.AccountEvent{
		Type: domain.EventAccountDeleted, UserID: userID, Email: u.Email, OccurredAt: time.Now().UTC(),
	}); err != nil {
		slog.Warn("failed to publish account event", "type", domain.EventAccountDeleted, "user_id", userID, "err", err)
	}
	return nil
}
