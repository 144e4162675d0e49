// Package config handles application configuration.
package config

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port    int
	BaseURL string

	// Database
	DatabaseURL string

	// Authentication
	// JWTSecret verifies HS256 session tokens minted by the auth provider.
	JWTSecret     string
	EncryptionKey []byte // 32-byte key for AES-256-GCM encryption

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	StripeSuccessURL    string
	StripeCancelURL     string

	// AI providers (local consoles, keyless)
	OllamaEnabled   bool
	OllamaURL       string
	LMStudioEnabled bool
	LMStudioURL     string
	// AIStatusTimeout bounds provider status probes and is the client-side
	// abort window for availability checks.
	AIStatusTimeout time.Duration
	// AIChatTimeout bounds a single chat completion round-trip.
	AIChatTimeout time.Duration

	// Credits
	StarterCredits    int    // balance granted on lazy first-access insert
	DailyCreditAmount int    // daily claim bonus size
	DepositCredits    int    // flat deposit charged before an AI call
	TokensPerCredit   int    // token-to-credit conversion for usage cost
	ReferenceTimezone string // fixed timezone for daily-claim day boundaries

	// CORS
	CORSOrigins []string

	// Object Storage (S3-compatible) for raw CSV import archives
	StorageEnabled   bool
	StorageEndpoint  string // AWS_ENDPOINT_URL_S3
	StorageAccessKey string // AWS_ACCESS_KEY_ID
	StorageSecretKey string // AWS_SECRET_ACCESS_KEY
	StorageBucket    string
	StorageRegion    string

	// Idle shutdown settings (for scale-to-zero deployments)
	IdleTimeout time.Duration // Time before shutting down when idle (0 = disabled)
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		DatabaseURL: getEnv("DATABASE_URL", "file:finboard.db?_journal=WAL&_timeout=5000"),
		JWTSecret:   getEnv("JWT_SECRET", ""),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeSuccessURL:    getEnv("STRIPE_SUCCESS_URL", ""),
		StripeCancelURL:     getEnv("STRIPE_CANCEL_URL", ""),

		OllamaEnabled:   getEnvBool("OLLAMA_ENABLED", true),
		OllamaURL:       getEnv("OLLAMA_URL", "http://localhost:11434"),
		LMStudioEnabled: getEnvBool("LMSTUDIO_ENABLED", true),
		LMStudioURL:     getEnv("LMSTUDIO_URL", "http://localhost:1234"),
		AIStatusTimeout: getEnvDuration("AI_STATUS_TIMEOUT", 3*time.Second),
		AIChatTimeout:   getEnvDuration("AI_CHAT_TIMEOUT", 120*time.Second),

		StarterCredits:    getEnvInt("STARTER_CREDITS", 100),
		DailyCreditAmount: getEnvInt("DAILY_CREDIT_AMOUNT", 50),
		DepositCredits:    getEnvInt("AI_DEPOSIT_CREDITS", 5),
		TokensPerCredit:   getEnvInt("TOKENS_PER_CREDIT", 1000),
		ReferenceTimezone: getEnv("REFERENCE_TIMEZONE", "America/New_York"),

		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),

		// Object Storage (S3-compatible) - standard env vars
		StorageEndpoint:  getEnv("AWS_ENDPOINT_URL_S3", ""),
		StorageAccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		StorageSecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		StorageBucket:    getEnvWithFallback("BUCKET_NAME", "STORAGE_BUCKET", ""),
		StorageRegion:    getEnv("AWS_REGION", "auto"),
	}

	// Enable storage if bucket is configured
	cfg.StorageEnabled = cfg.StorageBucket != "" && cfg.StorageEndpoint != ""

	// Idle shutdown configuration (for scale-to-zero platforms)
	cfg.IdleTimeout = getEnvDuration("IDLE_TIMEOUT", 0) // 0 = disabled

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.DailyCreditAmount <= 0 {
		return nil, fmt.Errorf("DAILY_CREDIT_AMOUNT must be positive")
	}

	if _, err := time.LoadLocation(cfg.ReferenceTimezone); err != nil {
		return nil, fmt.Errorf("REFERENCE_TIMEZONE %q is invalid: %w", cfg.ReferenceTimezone, err)
	}

	// Set up encryption key (derive from JWT secret if not explicitly set)
	encKeyStr := getEnv("ENCRYPTION_KEY", "")
	if encKeyStr != "" {
		decoded, err := base64.StdEncoding.DecodeString(encKeyStr)
		if err != nil || len(decoded) != 32 {
			return nil, fmt.Errorf("ENCRYPTION_KEY must be a base64-encoded 32-byte key")
		}
		cfg.EncryptionKey = decoded
	} else {
		cfg.EncryptionKey = deriveEncryptionKey(cfg.JWTSecret)
	}

	return cfg, nil
}

// StripeEnabled returns true if Stripe credentials are configured.
func (c *Config) StripeEnabled() bool {
	return c.StripeSecretKey != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvSlice(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		return strings.Split(v, ",")
	}
	return fallback
}

func getEnvWithFallback(primary, secondary, fallback string) string {
	if v := os.Getenv(primary); v != "" {
		return v
	}
	return getEnv(secondary, fallback)
}

// deriveEncryptionKey creates a 32-byte AES-256 key from a secret string using HKDF.
// HKDF (HMAC-based Key Derivation Function) is appropriate for deriving keys from
// high-entropy secrets like JWT secrets. For low-entropy passwords, use Argon2 instead.
func deriveEncryptionKey(secret string) []byte {
	// Salt: fixed but unique to this application
	// Info: context string to bind the key to its purpose
	salt := []byte("finboard-api-encryption-key-v1")
	info := []byte("aes-256-gcm-encryption")

	hkdfReader := hkdf.New(sha256.New, []byte(secret), salt, info)

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		// This should never happen with valid inputs
		panic("hkdf: failed to derive key: " + err.Error())
	}

	return key
}
