package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Challenge store backends.
const (
	ChallengeStoreMemory = "memory"
	ChallengeStoreRedis  = "redis"
	ChallengeStoreDynamo = "dynamo"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	LogLevel       string
	LogFormat      string // "text" (tint) | "json"
	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	// Verification codes and the reset continuation token.
	ChallengeStore     string
	CodeTTL            time.Duration
	ChallengeRetention time.Duration // how long an expired challenge is kept to report "expired"
	ReaperInterval     time.Duration
	ResetTokenTTL      time.Duration
	CodeMaxAttempts    int // wrong codes tolerated before a challenge is dropped

	// TrustProxy keys rate limits on X-Forwarded-For / X-Real-Ip. Enable only behind a
	// proxy that overwrites those headers.
	TrustProxy bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	SMTPHost     string
	SMTPPort     int
	SMTPFrom     string
	SMTPFromName string
	SMTPUsername string
	SMTPPassword string
	SMTPTLS      bool
	MailTimeout  time.Duration

	SNSRegion      string
	SNSTopicARN    string   // account events; publishing is disabled when empty
	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users      string
	Activities string
	Challenges string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "5000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:      getEnv("DYNAMO_TABLE_USERS", "users"),
			Activities: getEnv("DYNAMO_TABLE_ACTIVITIES", "activities"),
			Challenges: getEnv("DYNAMO_TABLE_CHALLENGES", "verification_challenges"),
		},
		JWTPrivateKeyPath:  getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:   getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:          getEnvDuration("JWT_EXPIRY", 24*time.Hour),
		ChallengeStore:     strings.ToLower(getEnv("CHALLENGE_STORE", ChallengeStoreMemory)),
		CodeTTL:            getEnvDuration("CODE_TTL", 15*time.Minute),
		ChallengeRetention: getEnvDuration("CHALLENGE_RETENTION", time.Hour),
		ReaperInterval:     getEnvDuration("CHALLENGE_REAPER_INTERVAL", 5*time.Minute),
		ResetTokenTTL:      getEnvDuration("RESET_TOKEN_TTL", 15*time.Minute),
		CodeMaxAttempts:    getEnvInt("CODE_MAX_ATTEMPTS", 5),
		TrustProxy:         getEnvBool("TRUST_PROXY", false),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		RedisPrefix:        getEnv("REDIS_PREFIX", "spensyd"),
		SMTPHost:           getEnv("SMTP_HOST", "localhost"),
		SMTPPort:           getEnvInt("SMTP_PORT", 1025),
		SMTPFrom:           getEnv("SMTP_FROM", "noreply@spensyd.app"),
		SMTPFromName:       getEnv("SMTP_FROM_NAME", "SpenSyd"),
		SMTPUsername:       getEnv("SMTP_USERNAME", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
		SMTPTLS:            getEnvBool("SMTP_TLS", false),
		MailTimeout:        getEnvDuration("MAIL_TIMEOUT", 10*time.Second),
		SNSRegion:          getEnv("SNS_REGION", "us-east-1"),
		SNSTopicARN:        getEnv("SNS_TOPIC_ARN", ""),
		AllowedOrigins:     strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("15m", "24h").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
