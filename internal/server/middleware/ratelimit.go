package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/loyalbridge/admin/internal/model"
)

// LoginRateLimit limits credential-bearing requests (login and OTP
// verification) per client IP to requestsPerMinute over a sliding window.
// Rejected requests get a 429 in the API error envelope. A non-positive
// limit disables limiting.
func LoginRateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(model.ErrorResponse{Error: model.ErrorDetail{
				Code:    http.StatusTooManyRequests,
				Message: "too many attempts, try again later",
			}})
		}),
	)
}
