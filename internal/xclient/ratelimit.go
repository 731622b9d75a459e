package xclient

import (
	"os"
	"strconv"

	"golang.org/x/time/rate"
)

// newDefaultLimiter creates the request pacer. It is unlimited unless
// X_API_RPS is set; X_API_BURST overrides the burst size.
func newDefaultLimiter() *rate.Limiter {
	limit := rate.Inf
	burst := 1
	if v := os.Getenv("X_API_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			limit = rate.Limit(f)
		}
	}
	if v := os.Getenv("X_API_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			burst = n
		}
	}
	return rate.NewLimiter(limit, burst)
}
