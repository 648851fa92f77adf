package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Syddevv/SpenSyd-Server/internal/application/verification"
	"github.com/Syddevv/SpenSyd-Server/internal/config"
	"github.com/Syddevv/SpenSyd-Server/internal/infrastructure/dynamo"
	jwtinfra "github.com/Syddevv/SpenSyd-Server/internal/infrastructure/jwt"
	"github.com/Syddevv/SpenSyd-Server/internal/infrastructure/memory"
	redisinfra "github.com/Syddevv/SpenSyd-Server/internal/infrastructure/redis"
	"github.com/Syddevv/SpenSyd-Server/internal/infrastructure/smtp"
	"github.com/Syddevv/SpenSyd-Server/internal/infrastructure/sns"
	"github.com/Syddevv/SpenSyd-Server/internal/pkg/logging"
	transporthttp "github.com/Syddevv/SpenSyd-Server/internal/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		fatal("dynamodb client", err)
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		fatal("jwt provider", err)
	}

	mailer, err := smtp.NewMailer(cfg)
	if err != nil {
		fatal("smtp mailer", err)
	}

	events, err := sns.NewPublisher(ctx, cfg)
	if err != nil {
		slog.Warn("account events disabled", "err", err)
		events = sns.Noop{}
	}

	store, err := challengeStore(ctx, cfg, dynamoClient)
	if err != nil {
		fatal("challenge store", err)
	}
	challenges := verification.NewManager(store, cfg.CodeTTL,
		verification.WithRetention(cfg.ChallengeRetention),
		verification.WithMaxAttempts(cfg.CodeMaxAttempts),
	)

	deps := &transporthttp.Deps{
		UserRepo:     dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		ActivityRepo: dynamo.NewActivityRepo(dynamoClient, cfg.DynamoTables.Activities),
		Challenges:   challenges,
		Mailer:       mailer,
		Events:       events,
		JWTProvider:  jwtProvider,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(ctx, cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "challenge_store", cfg.ChallengeStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server", err)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fatal("forced shutdown", err)
	}
	slog.Info("server stopped")
}

// challengeStore selects the verification backend named by CHALLENGE_STORE.
func challengeStore(ctx context.Context, cfg *config.Config, dynamoClient *dynamodb.Client) (verification.Store, error) {
	switch cfg.ChallengeStore {
	case config.ChallengeStoreMemory:
		s := memory.NewChallengeStore()
		go s.Run(ctx, cfg.ReaperInterval)
		return s, nil
	case config.ChallengeStoreRedis:
		client := redisinfra.NewClient(cfg)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			slog.Warn("redis not reachable at startup", "addr", cfg.RedisAddr, "err", err)
		}
		return redisinfra.NewChallengeStore(client, cfg.RedisPrefix), nil
	case config.ChallengeStoreDynamo:
		return dynamo.NewChallengeRepo(dynamoClient, cfg.DynamoTables.Challenges), nil
	default:
		return nil, fmt.Errorf("unknown challenge store %q", cfg.ChallengeStore)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
