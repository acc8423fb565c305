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

	"github.com/carenethq/carenet-server/internal/models"
	apperrors "github.com/carenethq/carenet-server/pkg/errors"
	"github.com/carenethq/carenet-server/pkg/logger"
)

// CreatePaymentInput captures a guardian's payment intent for a job.
type CreatePaymentInput struct {
	JobID  string
	Amount decimal.Decimal
	Method string
}

// ProcessPaymentInput carries a gateway's confirmed-payment callback. When
// InvoiceID is present the corresponding invoice is settled in the same
// transaction, keeping payment, escrow, and invoice records from drifting.
type ProcessPaymentInput struct {
	PaymentID       string
	TransactionID   string
	GatewayResponse string
	InvoiceID       string
}

// RefundPaymentInput describes an admin-initiated refund.
type RefundPaymentInput struct {
	Amount decimal.Decimal
	Reason string
}

// PaymentService owns the payment lifecycle and is the escrow ledger's only
// writer-side caller: every capture holds funds and every confirmed callback
// settles the matching invoice atomically.
type PaymentService struct {
	db       *gorm.DB
	escrow   *EscrowService
	invoices *InvoiceService
	now      func() time.Time
	log      *zap.Logger
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(db *gorm.DB, escrow *EscrowService, invoices *InvoiceService) (*PaymentService, error) {
	if db == nil {
		return nil, errors.New("payment service: db is required")
	}
	if escrow == nil {
		return nil, errors.New("payment service: escrow service is required")
	}
	if invoices == nil {
		return nil, errors.New("payment service: invoice service is required")
	}

	return &PaymentService{
		db:       db,
		escrow:   escrow,
		invoices: invoices,
		now:      time.Now,
		log:      logger.WithModule("payments"),
	}, nil
}

// CreatePayment records a payment intent for a job and holds the amount in
// escrow, both in one transaction. Only the job's guardian may pay for it.
func (s *PaymentService) CreatePayment(ctx context.Context, payerID string, input CreatePaymentInput) (*models.Payment, error) {
	ctx = ensureContext(ctx)

	payerID = strings.TrimSpace(payerID)
	if payerID == "" {
		return nil, apperrors.NewBadRequest("payer id is required")
	}
	jobID := strings.TrimSpace(input.JobID)
	if jobID == "" {
		return nil, apperrors.NewBadRequest("job id is required")
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperrors.NewBadRequest("payment amount must be positive")
	}

	var payment models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.Job
		if err := tx.First(&job, "id = ?", jobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFound("job not found")
			}
			return fmt.Errorf("payment service: load job: %w", err)
		}

		if job.GuardianID != payerID {
			return apperrors.NewBadRequest("you are not authorized to pay for this job")
		}

		now := s.now()
		payment = models.Payment{
			JobID:         job.ID,
			PayerID:       payerID,
			Amount:        input.Amount.Round(2),
			Method:        strings.TrimSpace(input.Method),
			TransactionID: newTransactionNumber(now),
			InvoiceNumber: newInvoiceNumber(now),
			Status:        models.PaymentStatusPending,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return fmt.Errorf("payment service: create payment: %w", err)
		}

		return s.escrow.holdTx(tx, payment.ID, payment.Amount, nil)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment created",
		zap.String("payment_id", payment.ID),
		zap.String("job_id", jobID),
	)
	return &payment, nil
}

// ProcessPayment applies a gateway's confirmed-payment callback: the payment
// becomes COMPLETED and, when the callback names an invoice, that invoice is
// paid inside the same transaction.
func (s *PaymentService) ProcessPayment(ctx context.Context, input ProcessPaymentInput) (*models.Payment, error) {
	ctx = ensureContext(ctx)

	paymentID := strings.TrimSpace(input.PaymentID)
	if paymentID == "" {
		return nil, apperrors.NewBadRequest("payment id is required")
	}

	var payment models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&payment, "id = ?", paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFound("payment not found")
			}
			return fmt.Errorf("payment service: load payment: %w", err)
		}

		if payment.Status == models.PaymentStatusCompleted {
			return apperrors.NewConflict("payment is already completed")
		}

		now := s.now()
		transactionID := strings.TrimSpace(input.TransactionID)
		if transactionID == "" {
			transactionID = payment.TransactionID
		}

		updates := map[string]any{
			"status":           models.PaymentStatusCompleted,
			"paid_at":          &now,
			"transaction_id":   transactionID,
			"gateway_response": input.GatewayResponse,
		}
		if err := tx.Model(&payment).Updates(updates).Error; err != nil {
			return fmt.Errorf("payment service: complete payment: %w", err)
		}

		if invoiceID := strings.TrimSpace(input.InvoiceID); invoiceID != "" {
			if err := payInvoiceTx(tx, now, invoiceID, transactionID, nil); err != nil {
				return err
			}
		}

		payment.Status = models.PaymentStatusCompleted
		payment.PaidAt = &now
		payment.TransactionID = transactionID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment completed", zap.String("payment_id", payment.ID))
	return &payment, nil
}

// RefundPayment refunds a completed payment and, when its escrow is still
// held, refunds the escrow in the same transaction.
func (s *PaymentService) RefundPayment(ctx context.Context, paymentID string, input RefundPaymentInput) (*models.Payment, error) {
	ctx = ensureContext(ctx)

	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, apperrors.NewBadRequest("payment id is required")
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperrors.NewBadRequest("refund amount must be positive")
	}

	var payment models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&payment, "id = ?", paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFound("payment not found")
			}
			return fmt.Errorf("payment service: load payment: %w", err)
		}

		if payment.Status != models.PaymentStatusCompleted {
			return apperrors.NewBadRequest("only completed payments can be refunded")
		}

		amount := input.Amount.Round(2)
		updates := map[string]any{
			"status":        models.PaymentStatusRefunded,
			"refund_amount": &amount,
			"refund_reason": strings.TrimSpace(input.Reason),
		}
		if err := tx.Model(&payment).Updates(updates).Error; err != nil {
			return fmt.Errorf("payment service: refund payment: %w", err)
		}

		var escrow models.Escrow
		err := tx.First(&escrow, "payment_id = ?", payment.ID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// No escrow to unwind; tolerated for payments captured before
			// escrow holding was introduced.
			return nil
		case err != nil:
			return fmt.Errorf("payment service: load escrow: %w", err)
		}

		if escrow.Status == models.EscrowStatusHeld {
			return s.escrow.transitionTx(tx, payment.ID, models.EscrowStatusRefunded, nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment refunded", zap.String("payment_id", payment.ID))
	return &payment, nil
}

// Get loads a payment with its escrow, restricted to the paying user unless
// the caller is privileged.
func (s *PaymentService) Get(ctx context.Context, id, userID string, privileged bool) (*models.Payment, error) {
	ctx = ensureContext(ctx)

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.NewBadRequest("payment id is required")
	}

	var payment models.Payment
	if err := s.db.WithContext(ctx).Preload("Escrow").First(&payment, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("payment not found")
		}
		return nil, fmt.Errorf("payment service: load payment: %w", err)
	}

	if !privileged && payment.PayerID != strings.TrimSpace(userID) {
		return nil, apperrors.ErrForbidden
	}

	return &payment, nil
}

// ListForUser returns the user's payments, newest first.
func (s *PaymentService) ListForUser(ctx context.Context, userID string, page, limit int) ([]models.Payment, int64, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, 0, apperrors.NewBadRequest("user id is required")
	}

	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := s.db.WithContext(ctx).Model(&models.Payment{}).Where("payer_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("payment service: count payments: %w", err)
	}

	var rows []models.Payment
	if err := query.
		Preload("Escrow").
		Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("payment service: list payments: %w", err)
	}

	return rows, total, nil
}
