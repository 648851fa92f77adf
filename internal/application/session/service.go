package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Syddevv/SpenSyd-Server/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

type Service interface {
	Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error)
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type jwtSigner interface {
	Sign(userID string) (string, error)
}

type service struct {
	users       userStore
	jwtProvider jwtSigner
}

type ServiceDeps struct {
	UserRepo    userStore
	JWTProvider jwtSigner
}

func NewService(deps ServiceDeps) Service {
	return &service{users: deps.UserRepo, jwtProvider: deps.JWTProvider}
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("user does not exist: %w", domain.ErrNotFound)
		}
		return nil, domain.Internal("lookup user", err)
	}
	if !u.Verified {
		return nil, fmt.Errorf("please verify your email before logging in: %w", domain.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("wrong credentials: %w", domain.ErrUnauthorized)
	}
	token, err := s.jwtProvider.Sign(u.UserID)
	if err != nil {
		return nil, domain.Internal("sign token", err)
	}
	slog.Info("user logged in", "user_id", u.UserID)
	return &domain.LoginResult{Token: token, User: u.Public()}, nil
}
