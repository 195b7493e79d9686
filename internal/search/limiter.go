package search

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/shopping-cli/internal/model"
	"github.com/sells-group/shopping-cli/internal/resilience"
)

// AdaptiveLimiter wraps a rate.Limiter with adaptive rate adjustment.
// On success it increases the rate by 20% (up to 2x initial).
// On 429 it halves the rate (down to initial/4 minimum).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive rate limiter that auto-tunes.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess increases the rate by 20%, up to 2x initial.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setLocked(min(a.currentRate*1.2, a.maxRate))
}

// OnRateLimit halves the rate on 429 responses.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setLocked(max(a.currentRate*0.5, a.minRate))
	zap.L().Warn("adaptive rate limit: reducing rate after 429",
		zap.Float64("new_rate", float64(a.currentRate)),
	)
}

func (a *AdaptiveLimiter) setLocked(r rate.Limit) {
	a.currentRate = r
	a.limiter.SetLimit(r)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

type limited struct {
	Searcher
	limiter *AdaptiveLimiter
}

// WithRateLimit wraps s so calls wait on an adaptive limiter starting at
// perSecond requests per second. A non-positive rate returns s unchanged.
func WithRateLimit(s Searcher, perSecond float64, burst int) Searcher {
	if perSecond <= 0 {
		return s
	}
	if burst < 1 {
		burst = 1
	}
	return &limited{Searcher: s, limiter: NewAdaptiveLimiter(rate.Limit(perSecond), burst)}
}

func (l *limited) Search(ctx context.Context, query string, maxResults int) ([]model.SearchHit, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "search: rate limiter wait")
	}
	hits, err := l.Searcher.Search(ctx, query, maxResults)
	if err != nil {
		var sc resilience.StatusCoder
		if errors.As(err, &sc) && sc.HTTPStatusCode() == http.StatusTooManyRequests {
			l.limiter.OnRateLimit()
		}
		return nil, err
	}
	l.limiter.OnSuccess()
	return hits, nil
}
