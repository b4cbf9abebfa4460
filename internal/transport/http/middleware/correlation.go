package middleware

import (
	"net/http"

	"github.com/scanpay-verify/internal/pkg/id"
	"github.com/scanpay-verify/internal/pkg/logging"
	"github.com/scanpay-verify/internal/pkg/signing"
)

// Correlation mints a correlation id per request, stores it in the context
// and echoes it in the response headers.
func Correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := id.NewCorrelation()
		w.Header().Set(signing.HeaderCorrelation, cid)
		next.ServeHTTP(w, r.WithContext(logging.WithCorrelationID(r.Context(), cid)))
	})
}
