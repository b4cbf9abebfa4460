package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend variant names.
const (
	BackendN8n     = "n8n"
	BackendLaravel = "laravel"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3BucketName   string
	SNSRegion      string
	SNSTopicARN    string // empty disables payment event notifications

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration
	AllowedOrigins    []string // CORS allowed origins

	Currency         string
	VerifierBackend  string
	N8nWebhookURL    string
	N8nSharedSecret  string
	LaravelVerifyURL string
	LaravelSecret    string
	QRGenerateURL    string // explicit override; derived from N8nWebhookURL when empty

	MaxFileSizeMB     int
	VerifierTimeout   time.Duration
	VerifierRetries   int
	QRProxyTimeout    time.Duration
	QRExpirySeconds   int
	RateLimitAttempts int
	RateLimitWindow   time.Duration
	SlipRetentionDays int
	NonceSecret       string
	CallbackMaxSkew   time.Duration
	ApprovalTTL       time.Duration
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Cache  string
	Orders string
}

// VerifierTarget is the resolved endpoint of the selected verification backend.
type VerifierTarget struct {
	Name   string
	URL    string
	Secret string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:  getEnv("APP_PORT", "3000"),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AWSRegion:      getEnv("AWS_REGION", "ap-southeast-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Cache:  getEnv("DYNAMO_TABLE_CACHE", "scanpay_cache"),
			Orders: getEnv("DYNAMO_TABLE_ORDERS", "scanpay_orders"),
		},
		S3BucketName:      getEnv("S3_BUCKET_NAME", "scanpay-slips"),
		SNSRegion:         getEnv("SNS_REGION", "ap-southeast-1"),
		SNSTopicARN:       getEnv("SNS_TOPIC_ARN", ""),
		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         getEnvDuration("JWT_EXPIRY", 8*time.Hour),
		AllowedOrigins:    strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),

		Currency:         getEnv("STORE_CURRENCY", "THB"),
		VerifierBackend:  getEnv("VERIFIER_BACKEND", BackendN8n),
		N8nWebhookURL:    getEnv("N8N_WEBHOOK_URL", ""),
		N8nSharedSecret:  getEnv("N8N_SHARED_SECRET", ""),
		LaravelVerifyURL: getEnv("LARAVEL_VERIFY_URL", ""),
		LaravelSecret:    getEnv("LARAVEL_SECRET", ""),
		QRGenerateURL:    getEnv("QR_GENERATE_WEBHOOK_URL", ""),

		MaxFileSizeMB:     getEnvInt("MAX_FILE_SIZE_MB", 5),
		VerifierTimeout:   getEnvDuration("VERIFIER_TIMEOUT", 8*time.Second),
		VerifierRetries:   clamp(getEnvInt("VERIFIER_RETRIES", 0), 0, 3),
		QRProxyTimeout:    getEnvDuration("QR_PROXY_TIMEOUT", 8*time.Second),
		QRExpirySeconds:   max(15, getEnvInt("QR_EXPIRY_SECONDS", 60)),
		RateLimitAttempts: getEnvInt("RATE_LIMIT_ATTEMPTS", 5),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", 60*time.Second),
		SlipRetentionDays: getEnvInt("SLIP_RETENTION_DAYS", 30),
		NonceSecret:       getEnv("NONCE_SECRET", ""),
		CallbackMaxSkew:   getEnvDuration("CALLBACK_MAX_SKEW", 300*time.Second),
		ApprovalTTL:       getEnvDuration("APPROVAL_TTL", 10*time.Minute),
	}
}

// Verifier resolves the configured backend variant. Unknown names fall back to n8n.
func (c *Config) Verifier() VerifierTarget {
	if c.VerifierBackend == BackendLaravel {
		return VerifierTarget{Name: BackendLaravel, URL: c.LaravelVerifyURL, Secret: c.LaravelSecret}
	}
	return VerifierTarget{Name: BackendN8n, URL: c.N8nWebhookURL, Secret: c.N8nSharedSecret}
}

// MaxFileSize returns the slip size limit in bytes.
func (c *Config) MaxFileSize() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
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

// getEnvDuration accepts Go durations ("8s") or bare seconds ("8").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func clamp(n, lo, hi int) int {
	return min(max(n, lo), hi)
}
