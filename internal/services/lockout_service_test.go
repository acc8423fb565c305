package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/carenethq/carenet-server/internal/database/testutil"
	"github.com/carenethq/carenet-server/internal/features"
	"github.com/carenethq/carenet-server/internal/models"
	apperrors "github.com/carenethq/carenet-server/pkg/errors"
)

func TestLockoutService_LockEnforcesSingleActive(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	svc, err := NewLockoutService(db)
	require.NoError(t, err)

	lockout, err := svc.Lock(context.Background(), LockInput{
		UserID:         "guardian-1",
		Reason:         models.LockoutReasonPaymentOverdue,
		LockedFeatures: features.PaymentDefaultLocked(),
		ActiveFeatures: features.PaymentDefaultExempt(),
	})
	require.NoError(t, err)
	require.True(t, lockout.IsActive)
	require.ElementsMatch(t, features.PaymentDefaultLocked(), lockout.LockedFeatureCodes())
	require.ElementsMatch(t, features.PaymentDefaultExempt(), lockout.ActiveFeatureCodes())

	_, err = svc.Lock(context.Background(), LockInput{
		UserID: "guardian-1",
		Reason: models.LockoutReasonManualReview,
	})
	require.Error(t, err)
	require.Equal(t, "CONFLICT", apperrors.FromError(err).Code)

	var count int64
	require.NoError(t, db.Model(&models.AccountLockout{}).
		Where("user_id = ? AND is_active = ?", "guardian-1", true).
		Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestLockoutService_LockValidatesInput(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	svc, err := NewLockoutService(db)
	require.NoError(t, err)

	_, err = svc.Lock(context.Background(), LockInput{Reason: models.LockoutReasonManualReview})
	require.Error(t, err)
	require.Equal(t, "BAD_REQUEST", apperrors.FromError(err).Code)

	_, err = svc.Lock(context.Background(), LockInput{UserID: "guardian-1"})
	require.Error(t, err)
	require.Equal(t, "BAD_REQUEST", apperrors.FromError(err).Code)
}

func TestLockoutService_EnsureActiveTxIsIdempotent(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	svc, err := NewLockoutService(db)
	require.NoError(t, err)

	input := LockInput{
		UserID:         "agency-1",
		Reason:         models.LockoutReasonPaymentOverdue,
		LockedFeatures: features.PaymentDefaultLocked(),
	}

	first, created, err := svc.EnsureActiveTx(db, input)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := svc.EnsureActiveTx(db, input)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
}

func TestLockoutService_UnlockOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	now := time.Date(2026, time.April, 1, 9, 0, 0, 0, time.UTC)

	svc, err := NewLockoutService(db, WithLockoutClock(func() time.Time { return now }))
	require.NoError(t, err)

	lockout, err := svc.Lock(context.Background(), LockInput{
		UserID: "guardian-1",
		Reason: models.LockoutReasonPolicyViolation,
	})
	require.NoError(t, err)

	unlocked, err := svc.Unlock(context.Background(), lockout.ID, "admin-1")
	require.NoError(t, err)
	require.False(t, unlocked.IsActive)
	require.Equal(t, "admin-1", unlocked.UnlockedBy)
	require.NotNil(t, unlocked.UnlockedAt)

	_, err = svc.Unlock(context.Background(), lockout.ID, "admin-2")
	require.Error(t, err)
	require.Equal(t, "CONFLICT", apperrors.FromError(err).Code)

	active, err := svc.ActiveForUser(context.Background(), "guardian-1")
	require.NoError(t, err)
	require.Nil(t, active)

	// A resolved lockout no longer blocks a fresh one.
	_, err = svc.Lock(context.Background(), LockInput{
		UserID: "guardian-1",
		Reason: models.LockoutReasonManualReview,
	})
	require.NoError(t, err)
}

func TestLockoutService_GrantGraceResetsInvoicesAndLifts(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	now := time.Date(2026, time.April, 10, 9, 0, 0, 0, time.UTC)

	svc, err := NewLockoutService(db, WithLockoutClock(func() time.Time { return now }))
	require.NoError(t, err)

	lockedAt := now.AddDate(0, 0, -2)
	overdue := models.Invoice{
		InvoiceNumber: "INV-GRACE-1",
		InvoiceType:   models.InvoiceTypeAgencyToGuardian,
		IssuerID:      "agency-1",
		RecipientID:   "guardian-1",
		Amount:        decimal.RequireFromString("10000"),
		Status:        models.InvoiceStatusOverdue,
		DueDate:       now.AddDate(0, 0, -15),
		LockedAt:      &lockedAt,
	}
	require.NoError(t, db.Create(&overdue).Error)

	// An unrelated party's overdue invoice must stay untouched.
	bystander := models.Invoice{
		InvoiceNumber: "INV-GRACE-2",
		InvoiceType:   models.InvoiceTypeAgencyToGuardian,
		IssuerID:      "agency-1",
		RecipientID:   "guardian-2",
		Amount:        decimal.RequireFromString("500"),
		Status:        models.InvoiceStatusOverdue,
		DueDate:       now.AddDate(0, 0, -15),
	}
	require.NoError(t, db.Create(&bystander).Error)

	_, err = svc.Lock(context.Background(), LockInput{
		UserID:         "guardian-1",
		Reason:         models.LockoutReasonPaymentOverdue,
		LockedFeatures: features.PaymentDefaultLocked(),
	})
	require.NoError(t, err)

	granted, err := svc.GrantGrace(context.Background(), "guardian-1", 7, "admin-1")
	require.NoError(t, err)
	require.False(t, granted.IsActive)
	require.Equal(t, "admin-1", granted.UnlockedBy)

	var refreshed models.Invoice
	require.NoError(t, db.First(&refreshed, "id = ?", overdue.ID).Error)
	require.Equal(t, models.InvoiceStatusPending, refreshed.Status)
	require.Equal(t, now.AddDate(0, 0, 7), refreshed.DueDate.UTC())
	require.Nil(t, refreshed.LockedAt)

	var untouched models.Invoice
	require.NoError(t, db.First(&untouched, "id = ?", bystander.ID).Error)
	require.Equal(t, models.InvoiceStatusOverdue, untouched.Status)

	active, err := svc.ActiveForUser(context.Background(), "guardian-1")
	require.NoError(t, err)
	require.Nil(t, active)
}

func TestLockoutService_GrantGraceRequiresActiveLockout(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	svc, err := NewLockoutService(db)
	require.NoError(t, err)

	_, err = svc.GrantGrace(context.Background(), "guardian-1", 7, "admin-1")
	require.Error(t, err)
	require.Equal(t, "NOT_FOUND", apperrors.FromError(err).Code)

	_, err = svc.GrantGrace(context.Background(), "guardian-1", 0, "admin-1")
	require.Error(t, err)
	require.Equal(t, "BAD_REQUEST", apperrors.FromError(err).Code)
}

func TestLockoutService_ListForUser(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	svc, err := NewLockoutService(db)
	require.NoError(t, err)

	first, err := svc.Lock(context.Background(), LockInput{
		UserID: "guardian-1",
		Reason: models.LockoutReasonManualReview,
	})
	require.NoError(t, err)
	_, err = svc.Unlock(context.Background(), first.ID, "admin-1")
	require.NoError(t, err)

	_, err = svc.Lock(context.Background(), LockInput{
		UserID: "guardian-1",
		Reason: models.LockoutReasonPaymentOverdue,
	})
	require.NoError(t, err)

	rows, err := svc.ListForUser(context.Background(), "guardian-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	got, err := svc.Get(context.Background(), first.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)
}
