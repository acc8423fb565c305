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

// CreateInvoiceInput defines attributes for privileged single-invoice creation.
type CreateInvoiceInput struct {
	JobID       string
	Type        models.InvoiceType
	Amount      decimal.Decimal
	RecipientID string // only consulted for SUBSCRIPTION invoices
	DueDate     *time.Time
}

// ListInvoicesInput defines filters for querying a party's invoices.
type ListInvoicesInput struct {
	UserID string
	Page   int
	Limit  int
}

// InvoiceService computes and persists the multi-party invoice sets that
// settle completed jobs, and owns the PENDING -> PAID transition.
type InvoiceService struct {
	db      *gorm.DB
	billing app.BillingConfig
	now     func() time.Time
	log     *zap.Logger
}

// InvoiceOption customises an InvoiceService.
type InvoiceOption func(*InvoiceService)

// WithInvoiceClock overrides the clock, primarily for tests.
func WithInvoiceClock(now func() time.Time) InvoiceOption {
	return func(s *InvoiceService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewInvoiceService constructs an InvoiceService.
func NewInvoiceService(db *gorm.DB, billing app.BillingConfig, opts ...InvoiceOption) (*InvoiceService, error) {
	if db == nil {
		return nil, errors.New("invoice service: db is required")
	}

	svc := &InvoiceService{
		db:      db,
		billing: billing,
		now:     time.Now,
		log:     logger.WithModule("invoicing"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// GenerateJobInvoices computes and persists the invoice set for a completed
// job: the platform commission billed to the agency, the full package price
// billed to the guardian, and one payout invoice per caregiver assignment.
// All rows are written in a single transaction, and a job whose commission
// invoice already exists is rejected so the operation stays idempotent.
func (s *InvoiceService) GenerateJobInvoices(ctx context.Context, jobID string) ([]models.Invoice, error) {
	ctx = ensureContext(ctx)

	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, apperrors.NewBadRequest("job id is required")
	}

	var created []models.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.Job
		if err := tx.Preload("Assignments").First(&job, "id = ?", jobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFound("job not found")
			}
			return fmt.Errorf("invoice service: load job: %w", err)
		}

		if len(job.Assignments) == 0 {
			return apperrors.NewNotFound("job has no caregiver assignments")
		}

		var existing int64
		if err := tx.Model(&models.Invoice{}).
			Where("job_id = ? AND invoice_type = ?", jobID, models.InvoiceTypePlatformCommission).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("invoice service: check existing invoices: %w", err)
		}
		if existing > 0 {
			return apperrors.NewConflict("invoices already generated for this job")
		}

		now := s.now()
		dueDate := now.AddDate(0, 0, s.billing.InvoiceDueDays)

		agencyID := models.PlatformPartyID
		if job.AgencyID != nil {
			agencyID = *job.AgencyID
		}

		total := job.TotalPrice
		commission := total.Mul(decimal.NewFromFloat(s.billing.CommissionRate)).Round(2)
		agencyRevenue := total.Sub(commission)

		rows := []models.Invoice{
			{
				InvoiceNumber: newInvoiceNumber(now),
				JobID:         &job.ID,
				InvoiceType:   models.InvoiceTypeAgencyToGuardian,
				IssuerID:      agencyID,
				RecipientID:   job.GuardianID,
				Amount:        total,
				Status:        models.InvoiceStatusPending,
				DueDate:       dueDate,
			},
			{
				InvoiceNumber: newInvoiceNumber(now),
				JobID:         &job.ID,
				InvoiceType:   models.InvoiceTypePlatformCommission,
				IssuerID:      models.PlatformPartyID,
				RecipientID:   agencyID,
				Amount:        commission,
				Status:        models.InvoiceStatusPending,
				DueDate:       dueDate,
			},
		}

		// The agency's retained share (agencyRevenue minus the caregiver
		// pool) is implicit margin and is never materialised as a row.
		pool := agencyRevenue.Mul(decimal.NewFromFloat(s.billing.CaregiverShare))
		perCaregiver := pool.Div(decimal.NewFromInt(int64(len(job.Assignments)))).Round(2)
		for _, assignment := range job.Assignments {
			rows = append(rows, models.Invoice{
				InvoiceNumber: newInvoiceNumber(now),
				JobID:         &job.ID,
				InvoiceType:   models.InvoiceTypeCaregiverToAgency,
				IssuerID:      assignment.CaregiverID,
				RecipientID:   agencyID,
				Amount:        perCaregiver,
				Status:        models.InvoiceStatusPending,
				DueDate:       dueDate,
			})
		}

		for i := range rows {
			if err := tx.Create(&rows[i]).Error; err != nil {
				return fmt.Errorf("invoice service: create %s invoice: %w", rows[i].InvoiceType, err)
			}
		}

		created = rows
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, inv := range created {
		metrics.InvoicesGenerated.WithLabelValues(string(inv.InvoiceType)).Inc()
	}
	s.log.Info("generated job invoices",
		zap.String("job_id", jobID),
		zap.Int("count", len(created)),
	)

	return created, nil
}

// Create persists a single invoice, deriving issuer and recipient from the
// invoice type and the referenced job's participants.
func (s *InvoiceService) Create(ctx context.Context, input CreateInvoiceInput) (*models.Invoice, error) {
	ctx = ensureContext(ctx)

	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperrors.NewBadRequest("invoice amount must be positive")
	}

	now := s.now()
	dueDate := now.AddDate(0, 0, s.billing.InvoiceDueDays)
	if input.DueDate != nil {
		dueDate = *input.DueDate
	}

	invoice := models.Invoice{
		InvoiceNumber: newInvoiceNumber(now),
		InvoiceType:   input.Type,
		Amount:        input.Amount.Round(2),
		Status:        models.InvoiceStatusPending,
		DueDate:       dueDate,
	}

	switch input.Type {
	case models.InvoiceTypeSubscription:
		recipient := strings.TrimSpace(input.RecipientID)
		if recipient == "" {
			return nil, apperrors.NewBadRequest("recipient id is required for subscription invoices")
		}
		invoice.IssuerID = models.PlatformPartyID
		invoice.RecipientID = recipient

	case models.InvoiceTypeAgencyToGuardian, models.InvoiceTypePlatformCommission, models.InvoiceTypeCaregiverToAgency:
		jobID := strings.TrimSpace(input.JobID)
		if jobID == "" {
			return nil, apperrors.NewBadRequest("job id is required")
		}

		var job models.Job
		if err := s.db.WithContext(ctx).Preload("Assignments").First(&job, "id = ?", jobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.NewNotFound("job not found")
			}
			return nil, fmt.Errorf("invoice service: load job: %w", err)
		}

		agencyID := models.PlatformPartyID
		if job.AgencyID != nil {
			agencyID = *job.AgencyID
		}

		invoice.JobID = &job.ID
		switch input.Type {
		case models.InvoiceTypeAgencyToGuardian:
			invoice.IssuerID = agencyID
			invoice.RecipientID = job.GuardianID
		case models.InvoiceTypePlatformCommission:
			invoice.IssuerID = models.PlatformPartyID
			invoice.RecipientID = agencyID
		case models.InvoiceTypeCaregiverToAgency:
			if len(job.Assignments) == 0 {
				return nil, apperrors.NewNotFound("job has no caregiver assignments")
			}
			invoice.IssuerID = job.Assignments[0].CaregiverID
			invoice.RecipientID = agencyID
		}

	default:
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown invoice type %q", input.Type))
	}

	if err := s.db.WithContext(ctx).Create(&invoice).Error; err != nil {
		return nil, fmt.Errorf("invoice service: create invoice: %w", err)
	}

	metrics.InvoicesGenerated.WithLabelValues(string(invoice.InvoiceType)).Inc()
	return &invoice, nil
}

// CreateSubscriptionInvoice bills a platform subscription charge to a user.
func (s *InvoiceService) CreateSubscriptionInvoice(ctx context.Context, userID string, amount decimal.Decimal) (*models.Invoice, error) {
	return s.Create(ctx, CreateInvoiceInput{
		Type:        models.InvoiceTypeSubscription,
		RecipientID: userID,
		Amount:      amount,
	})
}

// Pay settles an invoice, stamping the confirmed transaction. Paying an
// already-paid invoice is rejected.
func (s *InvoiceService) Pay(ctx context.Context, invoiceID, transactionID string) (*models.Invoice, error) {
	ctx = ensureContext(ctx)

	var invoice models.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return payInvoiceTx(tx, s.now(), invoiceID, transactionID, &invoice)
	})
	if err != nil {
		return nil, err
	}

	return &invoice, nil
}

// payInvoiceTx performs the PENDING|OVERDUE -> PAID transition inside an
// existing transaction so payment confirmation can settle invoice and escrow
// atomically.
func payInvoiceTx(tx *gorm.DB, now time.Time, invoiceID, transactionID string, out *models.Invoice) error {
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return apperrors.NewBadRequest("invoice id is required")
	}

	var invoice models.Invoice
	if err := tx.First(&invoice, "id = ?", invoiceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewNotFound("invoice not found")
		}
		return fmt.Errorf("invoice service: load invoice: %w", err)
	}

	if invoice.Status == models.InvoiceStatusPaid {
		return apperrors.NewConflict("invoice is already paid")
	}

	paidAt := now
	updates := map[string]any{
		"status":         models.InvoiceStatusPaid,
		"paid_at":        &paidAt,
		"transaction_id": strings.TrimSpace(transactionID),
	}
	if err := tx.Model(&invoice).Updates(updates).Error; err != nil {
		return fmt.Errorf("invoice service: pay invoice: %w", err)
	}

	if out != nil {
		*out = invoice
	}
	return nil
}

// Get loads a single invoice by id.
func (s *InvoiceService) Get(ctx context.Context, id string) (*models.Invoice, error) {
	ctx = ensureContext(ctx)

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.NewBadRequest("invoice id is required")
	}

	var invoice models.Invoice
	if err := s.db.WithContext(ctx).First(&invoice, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("invoice not found")
		}
		return nil, fmt.Errorf("invoice service: load invoice: %w", err)
	}

	return &invoice, nil
}

// List returns invoices where the user is issuer or recipient, newest first.
func (s *InvoiceService) List(ctx context.Context, input ListInvoicesInput) ([]models.Invoice, int64, error) {
	ctx = ensureContext(ctx)

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, 0, apperrors.NewBadRequest("user id is required")
	}

	page := input.Page
	if page <= 0 {
		page = 1
	}
	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := s.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("issuer_id = ? OR recipient_id = ?", userID, userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("invoice service: count invoices: %w", err)
	}

	var rows []models.Invoice
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("invoice service: list invoices: %w", err)
	}

	return rows, total, nil
}

// ListOverdue returns invoices currently marked OVERDUE. The reclassification
// itself belongs to the overdue sweep; this is a read-only reporting query.
func (s *InvoiceService) ListOverdue(ctx context.Context) ([]models.Invoice, error) {
	ctx = ensureContext(ctx)

	var rows []models.Invoice
	if err := s.db.WithContext(ctx).
		Where("status = ?", models.InvoiceStatusOverdue).
		Order("due_date ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("invoice service: list overdue invoices: %w", err)
	}

	return rows, nil
}
