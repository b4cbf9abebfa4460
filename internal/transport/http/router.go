package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/scanpay-verify/internal/application/admin"
	"github.com/scanpay-verify/internal/application/checkout"
	"github.com/scanpay-verify/internal/application/qr"
	"github.com/scanpay-verify/internal/application/session"
	"github.com/scanpay-verify/internal/config"
	"github.com/scanpay-verify/internal/domain"
	"github.com/scanpay-verify/internal/pkg/signing"
	"github.com/scanpay-verify/internal/transport/http/handler"
	appmiddleware "github.com/scanpay-verify/internal/transport/http/middleware"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(appmiddleware.Correlation)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", appmiddleware.NonceHeader},
		ExposedHeaders:   []string{signing.HeaderCorrelation},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	rl := appmiddleware.NewRateLimiter(deps.Counter, cfg.RateLimitAttempts, cfg.RateLimitWindow)

	sessionSvc := session.NewService(session.Config{
		MaxFileSize: cfg.MaxFileSize(),
		Currency:    cfg.Currency,
		ApprovalTTL: cfg.ApprovalTTL,
	}, deps.Sessions, deps.Slips, deps.Verifier, deps.Orders)
	qrSvc := qr.NewService(qr.Config{
		Currency:      cfg.Currency,
		DefaultExpiry: time.Duration(cfg.QRExpirySeconds) * time.Second,
	}, deps.Sessions, deps.QRGen)
	checkoutSvc := checkout.NewService(sessionSvc, deps.Orders, deps.Publisher, cfg.Currency)
	adminSvc := admin.NewService(deps.Orders, deps.Slips, deps.Verifier, deps.Publisher)

	healthH := handler.NewHealthHandler(deps.Verifier.Name())
	nonceH := handler.NewNonceHandler(deps.Nonces, cfg.AppEnv == "production")
	paymentH := handler.NewPaymentHandler(sessionSvc, qrSvc, cfg.MaxFileSize(), cfg.Verifier().Secret, cfg.CallbackMaxSkew)
	checkoutH := handler.NewCheckoutHandler(checkoutSvc)
	adminH := handler.NewAdminHandler(adminSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes ────────────────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		// Signed by the verification backend, no browser session involved.
		r.Post("/callback", paymentH.Callback)

		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.BrowserSession)

			r.Get("/nonce", nonceH.Public)

			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequirePublicNonce(deps.Nonces))

				r.With(rl.Limit).Post("/qr-proxy", paymentH.QRProxy)
				r.With(rl.Limit).Post("/verify-slip", paymentH.VerifySlip)
				r.Post("/checkout/validate", checkoutH.Validate)
				r.Post("/checkout/orders", checkoutH.PlaceOrder)
			})
		})

		// ── Admin routes ─────────────────────────────────────────────────────
		r.Route("/admin", func(r chi.Router) {
			r.Use(authMw)
			r.Use(appmiddleware.RequireCapabilities(domain.CapManageStore, domain.CapManagePayments))

			r.Get("/nonce", nonceH.Admin)
			r.Get("/orders/{id}", adminH.GetOrder)
			r.Get("/orders/{id}/slip", adminH.Slip)

			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireAdminNonce(deps.Nonces))

				r.Post("/orders/{id}/approve", adminH.Approve)
				r.Post("/orders/{id}/reject", adminH.Reject)
				r.Post("/orders/{id}/reverify", adminH.Reverify)
				r.Post("/backend/ping", adminH.PingBackend)
			})
		})
	})

	return r
}
