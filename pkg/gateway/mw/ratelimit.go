package mw

import (
	"net/http"
	"strconv"
	"time"

	"github.com/vango-go/vai-recruiter/pkg/core"
	"github.com/vango-go/vai-recruiter/pkg/gateway/ratelimit"
)

// RateLimit applies limiter per client IP.
func RateLimit(limiter *ratelimit.Limiter, trustProxy bool, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dec := limiter.Acquire(ratelimit.ClientKey(r, trustProxy), time.Now())
		if !dec.Allowed {
			reqID, _ := RequestIDFrom(r.Context())
			if dec.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(dec.RetryAfter))
			}
			writeJSONError(w, http.StatusTooManyRequests, &core.Error{
				Type:      core.ErrRateLimit,
				Message:   "rate limit exceeded",
				RequestID: reqID,
			})
			return
		}
		defer dec.Permit.Release()
		next.ServeHTTP(w, r)
	})
}
