package http

import (
	"context"

	"github.com/Syddevv/SpenSyd-Server/internal/application/verification"
	"github.com/Syddevv/SpenSyd-Server/internal/domain"
	jwtinfra "github.com/Syddevv/SpenSyd-Server/internal/infrastructure/jwt"
	"github.com/Syddevv/SpenSyd-Server/internal/infrastructure/smtp"
	"github.com/Syddevv/SpenSyd-Server/internal/infrastructure/sns"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	Delete(ctx context.Context, userID string) error
}

// ActivityRepository is the minimal interface the router requires from an activity store.
type ActivityRepository interface {
	Put(ctx context.Context, a *domain.Activity) error
	Recent(ctx context.Context, userID string, limit int) ([]domain.Activity, error)
	DeleteByUser(ctx context.Context, userID string) error
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo     UserRepository
	ActivityRepo ActivityRepository
	Challenges   *verification.Manager
	Mailer       smtp.Mailer
	Events       sns.EventPublisher
	JWTProvider  *jwtinfra.Provider
}
