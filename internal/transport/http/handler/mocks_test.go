package handler

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Syddevv/SpenSyd-Server/internal/domain"
	jwtinfra "github.com/Syddevv/SpenSyd-Server/internal/infrastructure/jwt"
	"github.com/Syddevv/SpenSyd-Server/internal/transport/http/middleware"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockSignupSvc struct{ mock.Mock }

func (m *mockSignupSvc) RequestCode(ctx context.Context, req domain.SignupRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockSignupSvc) ConfirmCode(ctx context.Context, req domain.VerifyEmailRequest) (*domain.User, error) {
	args := m.Called(ctx, req)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSessionSvc struct{ mock.Mock }

func (m *mockSessionSvc) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	args := m.Called(ctx, req)
	if res, _ := args.Get(0).(*domain.LoginResult); res != nil {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockUserSvc struct{ mock.Mock }

func (m *mockUserSvc) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserSvc) Delete(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockRecoverySvc struct{ mock.Mock }

func (m *mockRecoverySvc) RequestReset(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockRecoverySvc) VerifyCode(ctx context.Context, email, code string) (string, error) {
	args := m.Called(ctx, email, code)
	return args.String(0), args.Error(1)
}

func (m *mockRecoverySvc) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	return m.Called(ctx, email, token, newPassword).Error(0)
}

type mockEmailChangeSvc struct{ mock.Mock }

func (m *mockEmailChangeSvc) SendCurrentEmailCode(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockEmailChangeSvc) VerifyCurrentEmailCode(ctx context.Context, userID, code string) error {
	return m.Called(ctx, userID, code).Error(0)
}

func (m *mockEmailChangeSvc) SendNewEmailCode(ctx context.Context, userID, newEmail string) error {
	return m.Called(ctx, userID, newEmail).Error(0)
}

func (m *mockEmailChangeSvc) VerifyNewEmailCodeAndUpdate(ctx context.Context, userID, code string) (*domain.User, error) {
	args := m.Called(ctx, userID, code)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockActivitySvc struct{ mock.Mock }

func (m *mockActivitySvc) Add(ctx context.Context, userID string, req domain.CreateActivityRequest) (*domain.Activity, error) {
	args := m.Called(ctx, userID, req)
	if a, _ := args.Get(0).(*domain.Activity); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockActivitySvc) Recent(ctx context.Context, userID string) ([]domain.Activity, error) {
	args := m.Called(ctx, userID)
	list, _ := args.Get(0).([]domain.Activity)
	return list, args.Error(1)
}

// --- helpers ---

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func newTestJWTProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	keyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	return jwtinfra.NewProviderFromKey(testKey, time.Hour)
}

func jsonReq(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// bearerReq builds a request carrying an access token for userID.
func bearerReq(t *testing.T, p *jwtinfra.Provider, method, target, userID, body string) *http.Request {
	t.Helper()
	token, err := p.Sign(userID)
	require.NoError(t, err)
	r := jsonReq(method, target, body)
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

// serveAuthed wraps the handler with middleware.Auth before serving.
func serveAuthed(p *jwtinfra.Provider, h http.HandlerFunc, w http.ResponseWriter, r *http.Request) {
	middleware.Auth(p)(h).ServeHTTP(w, r)
}
