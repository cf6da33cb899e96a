package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tacticalpanel/panel/internal/cache"
	"github.com/tacticalpanel/panel/pkg/logger"
	"github.com/tacticalpanel/panel/pkg/metrics"
)

// Attempt scopes.
const (
	attemptLogin = "login"
	attemptReset = "reset"
)

// AttemptLimits configures per-username budgets for credential checks. Zero disables a budget.
type AttemptLimits struct {
	Login  int
	Reset  int
	Window time.Duration
}

// AttemptLimiter counts credential attempts per username in the shared cache store.
type AttemptLimiter struct {
	store  cache.Store
	limits AttemptLimits
}

// NewAttemptLimiter returns nil when no store is supplied; a nil limiter allows everything.
func NewAttemptLimiter(store cache.Store, limits AttemptLimits) *AttemptLimiter {
	if store == nil {
		return nil
	}
	if limits.Window <= 0 {
		limits.Window = 15 * time.Minute
	}
	return &AttemptLimiter{store: store, limits: limits}
}

// Hit records one attempt and fails with ErrTooManyAttempts once the budget is exhausted.
// Store failures are logged and do not block the caller.
func (l *AttemptLimiter) Hit(ctx context.Context, scope, subject string) error {
	if l == nil || subject == "" {
		return nil
	}
	limit := l.limitFor(scope)
	if limit <= 0 {
		return nil
	}

	count, _, err := l.store.IncrementWithTTL(ctx, l.key(scope, subject), l.limits.Window)
	if err != nil {
		logger.WithModule("auth").Warn("attempt counter unavailable",
			zap.String("scope", scope),
			zap.Error(err),
		)
		return nil
	}
	if count > int64(limit) {
		metrics.RateLimited.WithLabelValues(scope).Inc()
		return ErrTooManyAttempts
	}
	return nil
}

// Reset clears the counter after a successful attempt.
func (l *AttemptLimiter) Reset(ctx context.Context, scope, subject string) {
	if l == nil || subject == "" {
		return
	}
	_ = l.store.Delete(ctx, l.key(scope, subject))
}

func (l *AttemptLimiter) limitFor(scope string) int {
	switch scope {
	case attemptLogin:
		return l.limits.Login
	case attemptReset:
		return l.limits.Reset
	default:
		return 0
	}
}

func (l *AttemptLimiter) key(scope, subject string) string {
	return "auth:attempts:" + scope + ":" + subject
}
