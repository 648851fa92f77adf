package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/Syddevv/SpenSyd-Server/internal/domain"
	"github.com/Syddevv/SpenSyd-Server/internal/pkg/id"
)

// RecentLimit is the size of the recent activity feed.
const RecentLimit = 3

type Service interface {
	Add(ctx context.Context, userID string, req domain.CreateActivityRequest) (*domain.Activity, error)
	Recent(ctx context.Context, userID string) ([]domain.Activity, error)
}

type activityStore interface {
	Put(ctx context.Context, a *domain.Activity) error
	Recent(ctx context.Context, userID string, limit int) ([]domain.Activity, error)
}

type service struct {
	repo activityStore
	now  func() time.Time
}

func NewService(repo activityStore) Service {
	return &service{repo: repo, now: time.Now}
}

func (s *service) Add(ctx context.Context, userID string, req domain.CreateActivityRequest) (*domain.Activity, error) {
	now := s.now().UTC()
	date := now
	if req.Date != "" {
		d, err := parseDate(req.Date)
		if err != nil {
			return nil, fmt.Errorf("date must be YYYY-MM-DD or RFC3339: %w", domain.ErrBadRequest)
		}
		date = d
	}
	a := &domain.Activity{
		ActivityID: id.NewAt(now),
		UserID:     userID,
		Type:       req.Type,
		Category:   req.Category,
		Amount:     req.Amount,
		Date:       date,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Put(ctx, a); err != nil {
		return nil, domain.Internal("store activity", err)
	}
	return a, nil
}

func (s *service) Recent(ctx context.Context, userID string) ([]domain.Activity, error) {
	activities, err := s.repo.Recent(ctx, userID, RecentLimit)
	if err != nil {
		return nil, domain.Internal("list activities", err)
	}
	return activities, nil
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
