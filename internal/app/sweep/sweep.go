package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/carenethq/carenet-server/internal/app"
	"github.com/carenethq/carenet-server/internal/features"
	"github.com/carenethq/carenet-server/internal/models"
	"github.com/carenethq/carenet-server/internal/services"
	"github.com/carenethq/carenet-server/pkg/logger"
	"github.com/carenethq/carenet-server/pkg/metrics"
)

const defaultSchedule = "@daily"

// Sweeper runs the recurring overdue pass: aged PENDING invoices flip to
// OVERDUE, and OVERDUE invoices past the grace window open account lockouts
// against their recipients. Both steps are idempotent, so a crashed or
// double-scheduled run does no extra damage.
type Sweeper struct {
	db       *gorm.DB
	lockouts *services.LockoutService
	billing  app.BillingConfig

	cron     *cron.Cron
	schedule string
	now      func() time.Time
	log      *zap.Logger
}

// Option customises the Sweeper.
type Option func(*Sweeper)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Sweeper) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used for due-date comparisons.
func WithNow(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSchedule overrides the cron specification for the sweep.
func WithSchedule(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.schedule = spec
		}
	}
}

// NewSweeper constructs a Sweeper.
func NewSweeper(db *gorm.DB, lockouts *services.LockoutService, billing app.BillingConfig, opts ...Option) (*Sweeper, error) {
	if db == nil {
		return nil, errors.New("sweep: db is required")
	}
	if lockouts == nil {
		return nil, errors.New("sweep: lockout service is required")
	}

	s := &Sweeper{
		db:       db,
		lockouts: lockouts,
		billing:  billing,
		schedule: defaultSchedule,
		now:      time.Now,
		log:      logger.WithModule("sweep"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return s, nil
}

// Start registers the sweep with the cron scheduler and launches it. The
// sweep is fire-and-forget: failures are logged and counted, never returned
// to a caller.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.RunOnce(context.Background()); err != nil {
			s.log.Warn("overdue sweep failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running sweep to complete.
func (s *Sweeper) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes both sweep steps sequentially. Used by the scheduler, the
// admin trigger endpoint, and tests.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	now := s.now()

	var errs error
	if _, err := s.ReclassifyOverdue(ctx, now); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := s.TriggerLockouts(ctx, now); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

// ReclassifyOverdue flips PENDING invoices whose due date has passed to
// OVERDUE. The comparison is strictly less-than: an invoice due exactly now
// is not yet overdue. Re-running only ever touches rows still PENDING.
func (s *Sweeper) ReclassifyOverdue(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("status = ? AND due_date < ?", models.InvoiceStatusPending, now).
		Update("status", models.InvoiceStatusOverdue)
	if result.Error != nil {
		return 0, fmt.Errorf("sweep: reclassify overdue: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.InvoicesReclassified.Add(float64(result.RowsAffected))
		s.log.Info("reclassified overdue invoices", zap.Int64("count", result.RowsAffected))
	}
	return result.RowsAffected, nil
}

// TriggerLockouts opens lockouts for invoices that have been overdue past the
// grace window and have not yet been processed. Each invoice is handled in
// its own transaction so one failure cannot abort the batch, and the
// locked_at stamp makes re-runs no-ops.
func (s *Sweeper) TriggerLockouts(ctx context.Context, now time.Time) (int, error) {
	threshold := now.AddDate(0, 0, -s.billing.GracePeriodDays)

	var candidates []models.Invoice
	if err := s.db.WithContext(ctx).
		Where("status = ? AND due_date < ? AND locked_at IS NULL",
			models.InvoiceStatusOverdue, threshold).
		Find(&candidates).Error; err != nil {
		return 0, fmt.Errorf("sweep: find lockout candidates: %w", err)
	}

	locked := 0
	for _, invoice := range candidates {
		if err := s.lockInvoiceRecipient(ctx, invoice.ID, now); err != nil {
			metrics.SweepFailures.Inc()
			s.log.Warn("lockout trigger failed",
				zap.String("invoice_id", invoice.ID),
				zap.String("recipient_id", invoice.RecipientID),
				zap.Error(err),
			)
			continue
		}
		locked++
	}

	return locked, nil
}

// lockInvoiceRecipient atomically re-checks the invoice, ensures the
// recipient has an active lockout, and stamps the invoice's locked_at.
func (s *Sweeper) lockInvoiceRecipient(ctx context.Context, invoiceID string, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invoice models.Invoice
		if err := tx.First(&invoice, "id = ?", invoiceID).Error; err != nil {
			return fmt.Errorf("sweep: reload invoice: %w", err)
		}

		// Another run may have processed this row between the candidate
		// query and here.
		if invoice.LockedAt != nil {
			return nil
		}

		_, _, err := s.lockouts.EnsureActiveTx(tx, services.LockInput{
			UserID:         invoice.RecipientID,
			Reason:         models.LockoutReasonPaymentOverdue,
			LockedFeatures: features.PaymentDefaultLocked(),
			ActiveFeatures: features.PaymentDefaultExempt(),
		})
		if err != nil {
			return err
		}

		if err := tx.Model(&invoice).Update("locked_at", &now).Error; err != nil {
			return fmt.Errorf("sweep: stamp locked_at: %w", err)
		}
		return nil
	})
}
