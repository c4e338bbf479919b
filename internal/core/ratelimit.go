package core

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"airvault/internal/types"
)

// limiterIdleTTL is how long an idle per-user limiter survives before the
// sweep drops it. Keeps the map bounded without a background goroutine.
const limiterIdleTTL = 10 * time.Minute

// limiterSweepEvery bounds how often the registry scans for idle entries.
const limiterSweepEvery = time.Minute

// userLimiters is a registry of per-user token buckets.
type userLimiters struct {
	mu        sync.Mutex
	limiters  map[string]*userLimiter
	rps       rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newUserLimiters(rps float64, burst int) *userLimiters {
	return &userLimiters{
		limiters: make(map[string]*userLimiter),
		rps:      rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

// allow reports whether the user may proceed, minting a fresh bucket for
// first-time users and refreshing lastSeen on every call.
func (ul *userLimiters) allow(userID string) bool {
	ul.mu.Lock()
	defer ul.mu.Unlock()

	now := ul.now()
	ul.sweepLocked(now)

	entry, ok := ul.limiters[userID]
	if !ok {
		entry = &userLimiter{limiter: rate.NewLimiter(ul.rps, ul.burst)}
		ul.limiters[userID] = entry
	}
	entry.lastSeen = now

	return entry.limiter.Allow()
}

func (ul *userLimiters) sweepLocked(now time.Time) {
	if now.Sub(ul.lastSweep) < limiterSweepEvery {
		return
	}
	ul.lastSweep = now
	for id, entry := range ul.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(ul.limiters, id)
		}
	}
}

// RateLimit enforces a per-user token bucket. It runs after AuthMiddleware;
// unauthenticated requests pass through for the auth layer to reject. Denied
// requests get a 429 with a Retry-After hint.
func (s *Server) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiters == nil {
			next.ServeHTTP(w, r)
			return
		}

		userID := types.GetUserID(r.Context())
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		if !s.limiters.allow(userID) {
			w.Header().Set("Retry-After", "1")
			Error(w, r, types.NewAppError(
				types.ErrCodeRateLimit,
				"too many requests, retry shortly",
				nil,
			))
			return
		}

		next.ServeHTTP(w, r)
	})
}
