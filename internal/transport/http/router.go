package http

import (
	"context"
	"net/http"

	"github.com/Syddevv/SpenSyd-Server/internal/application/activity"
	"github.com/Syddevv/SpenSyd-Server/internal/application/emailchange"
	"github.com/Syddevv/SpenSyd-Server/internal/application/recovery"
	"github.com/Syddevv/SpenSyd-Server/internal/application/session"
	"github.com/Syddevv/SpenSyd-Server/internal/application/signup"
	"github.com/Syddevv/SpenSyd-Server/internal/application/user"
	"github.com/Syddevv/SpenSyd-Server/internal/config"
	"github.com/Syddevv/SpenSyd-Server/internal/transport/http/handler"
	appmiddleware "github.com/Syddevv/SpenSyd-Server/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. ctx bounds background work such as
// rate limiter cleanup.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10, on every endpoint that sends or checks a code or password.
	sensitiveRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(5), 10, cfg.TrustProxy)

	signupSvc := signup.NewService(signup.ServiceDeps{
		UserRepo:   deps.UserRepo,
		Challenges: deps.Challenges,
		Mailer:     deps.Mailer,
		Events:     deps.Events,
	})
	sessionSvc := session.NewService(session.ServiceDeps{
		UserRepo:    deps.UserRepo,
		JWTProvider: deps.JWTProvider,
	})
	userSvc := user.NewService(user.ServiceDeps{
		UserRepo:     deps.UserRepo,
		ActivityRepo: deps.ActivityRepo,
		Challenges:   deps.Challenges,
		Events:       deps.Events,
	})
	recoverySvc := recovery.NewService(recovery.ServiceDeps{
		UserRepo:   deps.UserRepo,
		Challenges: deps.Challenges,
		Tokens:     deps.JWTProvider,
		Mailer:     deps.Mailer,
		Events:     deps.Events,
		TokenTTL:   cfg.ResetTokenTTL,
	})
	emailSvc := emailchange.NewService(emailchange.ServiceDeps{
		UserRepo:   deps.UserRepo,
		Challenges: deps.Challenges,
		Mailer:     deps.Mailer,
		Events:     deps.Events,
	})
	activitySvc := activity.NewService(deps.ActivityRepo)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(signupSvc, sessionSvc, userSvc)
	resetH := handler.NewPasswordResetHandler(recoverySvc)
	emailH := handler.NewEmailChangeHandler(emailSvc)
	activityH := handler.NewActivityHandler(activitySvc)
	authMw := appmiddleware.Auth(deps.JWTProvider)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthH.Health)

		r.Route("/auth", func(r chi.Router) {
			// ── Public routes (no auth) ──────────────────────────────────────
			r.Group(func(r chi.Router) {
				r.Use(sensitiveRL.Limit)

				r.Post("/send-code", authH.SendCode)
				r.Post("/verify-email", authH.VerifyEmail)
				r.Post("/login", authH.Login)
				r.Post("/password-reset/request", resetH.Request)
				r.Post("/password-reset/verify", resetH.Verify)
				r.Post("/password-reset/reset", resetH.Reset)
			})

			// ── Authenticated routes ─────────────────────────────────────────
			r.Group(func(r chi.Router) {
				r.Use(authMw)

				r.Get("/verify", authH.Verify)
				r.Delete("/account", authH.DeleteAccount)

				r.Group(func(r chi.Router) {
					r.Use(sensitiveRL.Limit)

					r.Post("/email-change/current-code", emailH.CurrentCode)
					r.Post("/email-change/verify-current", emailH.VerifyCurrent)
					r.Post("/email-change/new-code", emailH.NewCode)
					r.Post("/email-change/verify-new", emailH.VerifyNew)
				})
			})
		})

		r.Route("/activities", func(r chi.Router) {
			r.Use(authMw)

			r.Post("/add", activityH.Add)
			r.Get("/recent", activityH.Recent)
		})
	})

	return r
}
