package features

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/carenethq/carenet-server/internal/models"
	"github.com/carenethq/carenet-server/pkg/logger"
	"github.com/carenethq/carenet-server/pkg/metrics"
)

// Decision is the outcome of a feature guard evaluation.
type Decision struct {
	Allowed bool
	Feature string
	// Reason carries the lockout reason when the request is denied.
	Reason models.LockoutReason
}

// Guard evaluates request-time feature access against active account
// lockouts. It performs a single read per request and holds no state, so it
// is safe for concurrent use.
type Guard struct {
	db       *gorm.DB
	failOpen bool
	log      *zap.Logger
}

// NewGuard constructs a feature guard. failOpen selects the behaviour when
// the lockout lookup itself fails: allow the request through (availability
// over enforcement) or deny it.
func NewGuard(db *gorm.DB, failOpen bool) (*Guard, error) {
	if db == nil {
		return nil, errors.New("feature guard: db is required")
	}
	return &Guard{
		db:       db,
		failOpen: failOpen,
		log:      logger.WithModule("features"),
	}, nil
}

// Check evaluates whether the user may invoke the route identified by method
// and path pattern.
func (g *Guard) Check(ctx context.Context, userID, method, path string) (Decision, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Decision{}, errors.New("feature guard: user id is required")
	}

	feature := Resolve(method, path)

	var lockout models.AccountLockout
	err := g.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		First(&lockout).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		metrics.FeatureGuardDecisions.WithLabelValues(feature, "allowed").Inc()
		return Decision{Allowed: true, Feature: feature}, nil
	case err != nil:
		if g.failOpen {
			g.log.Warn("lockout lookup failed, failing open",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			metrics.FeatureGuardDecisions.WithLabelValues(feature, "fail_open").Inc()
			return Decision{Allowed: true, Feature: feature}, nil
		}
		metrics.FeatureGuardDecisions.WithLabelValues(feature, "fail_closed").Inc()
		return Decision{}, fmt.Errorf("feature guard: lookup lockout: %w", err)
	}

	if lockout.Covers(feature) {
		metrics.FeatureGuardDecisions.WithLabelValues(feature, "denied").Inc()
		return Decision{Allowed: false, Feature: feature, Reason: lockout.Reason}, nil
	}

	metrics.FeatureGuardDecisions.WithLabelValues(feature, "allowed").Inc()
	return Decision{Allowed: true, Feature: feature}, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
