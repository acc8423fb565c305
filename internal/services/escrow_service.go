package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/carenethq/carenet-server/internal/app"
	"github.com/carenethq/carenet-server/internal/models"
	apperrors "github.com/carenethq/carenet-server/pkg/errors"
	"github.com/carenethq/carenet-server/pkg/logger"
	"github.com/carenethq/carenet-server/pkg/metrics"
)

// EscrowService models custody of funds between payment capture and release.
// It is deliberately decoupled from invoices: releasing an escrow never marks
// an invoice paid; the payment path reconciles the two in one transaction.
type EscrowService struct {
	db      *gorm.DB
	billing app.BillingConfig
	now     func() time.Time
	log     *zap.Logger
}

// EscrowOption customises an EscrowService.
type EscrowOption func(*EscrowService)

// WithEscrowClock overrides the clock, primarily for tests.
func WithEscrowClock(now func() time.Time) EscrowOption {
	return func(s *EscrowService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewEscrowService constructs an EscrowService.
func NewEscrowService(db *gorm.DB, billing app.BillingConfig, opts ...EscrowOption) (*EscrowService, error) {
	if db == nil {
		return nil, errors.New("escrow service: db is required")
	}

	svc := &EscrowService{
		db:      db,
		billing: billing,
		now:     time.Now,
		log:     logger.WithModule("escrow"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Hold places funds for a payment into escrow, withholding the platform fee.
// Exactly one escrow may exist per payment.
func (s *EscrowService) Hold(ctx context.Context, paymentID string, amount decimal.Decimal) (*models.Escrow, error) {
	ctx = ensureContext(ctx)

	var escrow models.Escrow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.holdTx(tx, paymentID, amount, &escrow)
	})
	if err != nil {
		return nil, err
	}

	return &escrow, nil
}

func (s *EscrowService) holdTx(tx *gorm.DB, paymentID string, amount decimal.Decimal, out *models.Escrow) error {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return apperrors.NewBadRequest("payment id is required")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return apperrors.NewBadRequest("escrow amount must be positive")
	}

	var existing int64
	if err := tx.Model(&models.Escrow{}).Where("payment_id = ?", paymentID).Count(&existing).Error; err != nil {
		return fmt.Errorf("escrow service: check existing escrow: %w", err)
	}
	if existing > 0 {
		return apperrors.NewConflict("escrow already exists for this payment")
	}

	escrow := models.Escrow{
		PaymentID: paymentID,
		Amount:    amount.Round(2),
		Fee:       amount.Mul(decimal.NewFromFloat(s.billing.EscrowFeeRate)).Round(2),
		Status:    models.EscrowStatusHeld,
	}
	if err := tx.Create(&escrow).Error; err != nil {
		return fmt.Errorf("escrow service: create escrow: %w", err)
	}

	metrics.EscrowTransitions.WithLabelValues("held").Inc()
	if out != nil {
		*out = escrow
	}
	return nil
}

// Release transitions a held escrow to RELEASED. Releasing an escrow that is
// not HELD is a conflict, never a silent success.
func (s *EscrowService) Release(ctx context.Context, paymentID string) (*models.Escrow, error) {
	return s.transition(ctx, paymentID, models.EscrowStatusReleased)
}

// Refund transitions a held escrow to REFUNDED with the same single-transition
// guarantee as Release.
func (s *EscrowService) Refund(ctx context.Context, paymentID string) (*models.Escrow, error) {
	return s.transition(ctx, paymentID, models.EscrowStatusRefunded)
}

func (s *EscrowService) transition(ctx context.Context, paymentID string, target models.EscrowStatus) (*models.Escrow, error) {
	ctx = ensureContext(ctx)

	var escrow models.Escrow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.transitionTx(tx, paymentID, target, &escrow)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("escrow transition",
		zap.String("payment_id", paymentID),
		zap.String("status", string(target)),
	)
	return &escrow, nil
}

func (s *EscrowService) transitionTx(tx *gorm.DB, paymentID string, target models.EscrowStatus, out *models.Escrow) error {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return apperrors.NewBadRequest("payment id is required")
	}

	var escrow models.Escrow
	if err := tx.First(&escrow, "payment_id = ?", paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewNotFound("escrow not found")
		}
		return fmt.Errorf("escrow service: load escrow: %w", err)
	}

	if escrow.Status != models.EscrowStatusHeld {
		return apperrors.NewConflict(fmt.Sprintf("escrow is already %s", strings.ToLower(string(escrow.Status))))
	}

	releasedAt := s.now()
	updates := map[string]any{
		"status":      target,
		"released_at": &releasedAt,
	}
	if err := tx.Model(&escrow).Updates(updates).Error; err != nil {
		return fmt.Errorf("escrow service: update escrow: %w", err)
	}

	metrics.EscrowTransitions.WithLabelValues(strings.ToLower(string(target))).Inc()

	escrow.Status = target
	escrow.ReleasedAt = &releasedAt
	if out != nil {
		*out = escrow
	}
	return nil
}

// Get loads the escrow attached to a payment.
func (s *EscrowService) Get(ctx context.Context, paymentID string) (*models.Escrow, error) {
	ctx = ensureContext(ctx)

	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, apperrors.NewBadRequest("payment id is required")
	}

	var escrow models.Escrow
	if err := s.db.WithContext(ctx).First(&escrow, "payment_id = ?", paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("escrow not found")
		}
		return nil, fmt.Errorf("escrow service: load escrow: %w", err)
	}

	return &escrow, nil
}
