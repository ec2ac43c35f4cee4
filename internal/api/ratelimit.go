package api

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"gatehouse/internal/constants"
)

// rateLimit limits requests per client IP as resolved by resolver, so
// forwarding headers only count behind a trusted proxy.
func rateLimit(limit int, window time.Duration, resolver *ClientIPResolver) func(http.Handler) http.Handler {
	return httprate.Limit(limit, window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return resolver.Resolve(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(window)))
			writeProblem(w, r, Problem{
				Type:   problemType(r, constants.ProblemRateLimited),
				Title:  "Too Many Requests",
				Status: http.StatusTooManyRequests,
				Detail: "Too many requests, please try again later",
			})
		}),
	)
}

func retryAfterSeconds(window time.Duration) int {
	if window <= 0 {
		return 1
	}
	return int(math.Ceil(window.Seconds()))
}
