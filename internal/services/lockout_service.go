package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/carenethq/carenet-server/internal/models"
	apperrors "github.com/carenethq/carenet-server/pkg/errors"
	"github.com/carenethq/carenet-server/pkg/logger"
	"github.com/carenethq/carenet-server/pkg/metrics"
)

// LockInput describes a lockout to open against a user.
type LockInput struct {
	UserID         string
	Reason         models.LockoutReason
	LockedFeatures []string
	ActiveFeatures []string
}

// LockoutService maintains per-user account lockouts. The "at most one active
// lockout per user" invariant is enforced here with an existence check inside
// the same transaction as every write, since no plain unique constraint can
// express it across all supported stores.
type LockoutService struct {
	db  *gorm.DB
	now func() time.Time
	log *zap.Logger
}

// LockoutOption customises a LockoutService.
type LockoutOption func(*LockoutService)

// WithLockoutClock overrides the clock, primarily for tests.
func WithLockoutClock(now func() time.Time) LockoutOption {
	return func(s *LockoutService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewLockoutService constructs a LockoutService.
func NewLockoutService(db *gorm.DB, opts ...LockoutOption) (*LockoutService, error) {
	if db == nil {
		return nil, errors.New("lockout service: db is required")
	}

	svc := &LockoutService{
		db:  db,
		now: time.Now,
		log: logger.WithModule("lockout"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ActiveForUser returns the user's active lockout, or nil when none exists.
// This is the feature guard's single read.
func (s *LockoutService) ActiveForUser(ctx context.Context, userID string) (*models.AccountLockout, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}

	var lockout models.AccountLockout
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		First(&lockout).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lockout service: load active lockout: %w", err)
	}

	return &lockout, nil
}

// Lock opens a lockout against a user. A user who already has an active
// lockout cannot receive a second one.
func (s *LockoutService) Lock(ctx context.Context, input LockInput) (*models.AccountLockout, error) {
	ctx = ensureContext(ctx)

	var lockout *models.AccountLockout
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, wasCreated, err := s.EnsureActiveTx(tx, input)
		if err != nil {
			return err
		}
		if !wasCreated {
			return apperrors.NewConflict("user already has an active lockout")
		}
		lockout = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	return lockout, nil
}

// EnsureActiveTx opens a lockout for the user inside an existing transaction
// unless one is already active, in which case the existing row is returned.
// The overdue sweep relies on this to stay idempotent when several invoices
// for the same recipient cross the grace threshold in one run.
func (s *LockoutService) EnsureActiveTx(tx *gorm.DB, input LockInput) (*models.AccountLockout, bool, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, false, apperrors.NewBadRequest("user id is required")
	}
	if input.Reason == "" {
		return nil, false, apperrors.NewBadRequest("lockout reason is required")
	}

	var existing models.AccountLockout
	err := tx.Where("user_id = ? AND is_active = ?", userID, true).First(&existing).Error
	switch {
	case err == nil:
		return &existing, false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, fmt.Errorf("lockout service: check active lockout: %w", err)
	}

	lockout := models.AccountLockout{
		UserID:         userID,
		Reason:         input.Reason,
		LockedFeatures: models.FeatureList(input.LockedFeatures...),
		ActiveFeatures: models.FeatureList(input.ActiveFeatures...),
		IsActive:       true,
		LockedAt:       s.now(),
	}
	if err := tx.Create(&lockout).Error; err != nil {
		return nil, false, fmt.Errorf("lockout service: create lockout: %w", err)
	}

	metrics.LockoutsOpened.WithLabelValues(string(input.Reason)).Inc()
	s.log.Info("account lockout opened",
		zap.String("user_id", userID),
		zap.String("reason", string(input.Reason)),
	)
	return &lockout, true, nil
}

// Unlock deactivates a lockout, recording who resolved it.
func (s *LockoutService) Unlock(ctx context.Context, lockoutID, unlockedBy string) (*models.AccountLockout, error) {
	ctx = ensureContext(ctx)

	lockoutID = strings.TrimSpace(lockoutID)
	if lockoutID == "" {
		return nil, apperrors.NewBadRequest("lockout id is required")
	}

	var lockout models.AccountLockout
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&lockout, "id = ?", lockoutID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFound("lockout not found")
			}
			return fmt.Errorf("lockout service: load lockout: %w", err)
		}

		if !lockout.IsActive {
			return apperrors.NewConflict("lockout is already resolved")
		}

		now := s.now()
		updates := map[string]any{
			"is_active":   false,
			"unlocked_at": &now,
			"unlocked_by": strings.TrimSpace(unlockedBy),
		}
		if err := tx.Model(&lockout).Updates(updates).Error; err != nil {
			return fmt.Errorf("lockout service: unlock: %w", err)
		}

		lockout.IsActive = false
		lockout.UnlockedAt = &now
		lockout.UnlockedBy = strings.TrimSpace(unlockedBy)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("account lockout resolved",
		zap.String("lockout_id", lockout.ID),
		zap.String("user_id", lockout.UserID),
	)
	return &lockout, nil
}

// GrantGrace extends a locked-out user's unpaid invoices and lifts the
// lockout: every unsettled OVERDUE invoice for the user gets a fresh due date
// `days` from now, returns to PENDING with its lockout marker cleared, and
// the active lockout is deactivated.
func (s *LockoutService) GrantGrace(ctx context.Context, userID string, days int, grantedBy string) (*models.AccountLockout, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}
	if days <= 0 {
		return nil, apperrors.NewBadRequest("grace days must be positive")
	}

	var lockout models.AccountLockout
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND is_active = ?", userID, true).First(&lockout).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewNotFound("user has no active lockout")
		}
		if err != nil {
			return fmt.Errorf("lockout service: load active lockout: %w", err)
		}

		now := s.now()
		newDue := now.AddDate(0, 0, days)
		if err := tx.Model(&models.Invoice{}).
			Where("recipient_id = ? AND status = ?", userID, models.InvoiceStatusOverdue).
			Updates(map[string]any{
				"status":    models.InvoiceStatusPending,
				"due_date":  newDue,
				"locked_at": nil,
			}).Error; err != nil {
			return fmt.Errorf("lockout service: extend invoices: %w", err)
		}

		updates := map[string]any{
			"is_active":   false,
			"unlocked_at": &now,
			"unlocked_by": strings.TrimSpace(grantedBy),
		}
		if err := tx.Model(&lockout).Updates(updates).Error; err != nil {
			return fmt.Errorf("lockout service: deactivate lockout: %w", err)
		}

		lockout.IsActive = false
		lockout.UnlockedAt = &now
		lockout.UnlockedBy = strings.TrimSpace(grantedBy)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("grace period granted",
		zap.String("user_id", userID),
		zap.Int("days", days),
	)
	return &lockout, nil
}

// Get loads a lockout by id.
func (s *LockoutService) Get(ctx context.Context, id string) (*models.AccountLockout, error) {
	ctx = ensureContext(ctx)

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.NewBadRequest("lockout id is required")
	}

	var lockout models.AccountLockout
	if err := s.db.WithContext(ctx).First(&lockout, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("lockout not found")
		}
		return nil, fmt.Errorf("lockout service: load lockout: %w", err)
	}

	return &lockout, nil
}

// ListForUser returns a user's lockout history, newest first.
func (s *LockoutService) ListForUser(ctx context.Context, userID string) ([]models.AccountLockout, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}

	var rows []models.AccountLockout
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("locked_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("lockout service: list lockouts: %w", err)
	}

	return rows, nil
}
