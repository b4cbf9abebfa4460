package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/scanpay-verify/internal/config"
	"github.com/scanpay-verify/internal/infrastructure/dynamo"
	jwtinfra "github.com/scanpay-verify/internal/infrastructure/jwt"
	"github.com/scanpay-verify/internal/infrastructure/qrgen"
	s3infra "github.com/scanpay-verify/internal/infrastructure/s3"
	"github.com/scanpay-verify/internal/infrastructure/sns"
	"github.com/scanpay-verify/internal/infrastructure/verifier"
	"github.com/scanpay-verify/internal/pkg/logging"
	"github.com/scanpay-verify/internal/pkg/nonce"
	"github.com/scanpay-verify/internal/pkg/store"
	"github.com/scanpay-verify/internal/pkg/token"
	transporthttp "github.com/scanpay-verify/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	slog.SetDefault(logging.New(os.Stdout, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)
	cache := dynamo.NewCache(dynamoClient, cfg.DynamoTables.Cache)

	// JWT provider (optional; admin routes answer 401 without it).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Printf("WARN: JWT provider not available: %v", err)
	}

	publisher, err := sns.NewPublisher(cfg)
	if err != nil {
		log.Printf("WARN: SNS publisher not available: %v", err)
		publisher = sns.Nop{}
	}

	nonceSecret := cfg.NonceSecret
	if nonceSecret == "" {
		// Nonces minted by this process will not validate on any other.
		log.Println("WARN: NONCE_SECRET not set, using a per-process secret")
		if nonceSecret, err = token.NewSessionID(); err != nil {
			log.Fatalf("nonce secret: %v", err)
		}
	}

	target := cfg.Verifier()
	if !verifier.IsHTTPS(target.URL) {
		log.Printf("WARN: %s verifier URL is not https; every slip will be rejected as verifier_unreachable", target.Name)
	}

	// Both session tiers live in the shared cache table so every worker sees
	// the latest verdict; primary keys are scoped by the browser session id.
	deps := &transporthttp.Deps{
		Sessions:    store.NewTiered(cache, cache),
		Counter:     cache,
		Orders:      dynamo.NewOrderRepo(dynamoClient, cfg.DynamoTables.Orders, cache),
		Slips:       s3infra.NewSlipStore(s3infra.NewClient(cfg), cfg.S3BucketName, cfg.SlipRetentionDays),
		Verifier:    verifier.New(cfg, verifier.Options{}),
		QRGen:       qrgen.New(cfg, nil),
		Publisher:   publisher,
		Nonces:      nonce.NewIssuer(nonceSecret, nil),
		JWTProvider: jwtProvider,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // up to four verifier attempts plus backoff
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s, verifier=%s)", cfg.AppPort, cfg.AppEnv, target.Name)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
