package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/carenethq/carenet-server/internal/database/testutil"
	"github.com/carenethq/carenet-server/internal/models"
	apperrors "github.com/carenethq/carenet-server/pkg/errors"
)

func TestInvoiceService_GenerateJobInvoices(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

	svc, err := NewInvoiceService(db, testBillingConfig(), WithInvoiceClock(func() time.Time { return now }))
	require.NoError(t, err)

	job := seedJob(t, db, "guardian-1", "agency-1", "10000", "caregiver-1", "caregiver-2")

	created, err := svc.GenerateJobInvoices(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, created, 4)

	byType := map[models.InvoiceType][]models.Invoice{}
	for _, inv := range created {
		byType[inv.InvoiceType] = append(byType[inv.InvoiceType], inv)

		require.Equal(t, models.InvoiceStatusPending, inv.Status)
		require.Equal(t, now.AddDate(0, 0, 7), inv.DueDate.UTC())
		require.NotNil(t, inv.JobID)
		require.Equal(t, job.ID, *inv.JobID)
		require.Nil(t, inv.LockedAt)
	}

	guardianBills := byType[models.InvoiceTypeAgencyToGuardian]
	require.Len(t, guardianBills, 1)
	require.Equal(t, "agency-1", guardianBills[0].IssuerID)
	require.Equal(t, "guardian-1", guardianBills[0].RecipientID)
	require.True(t, guardianBills[0].Amount.Equal(decimal.RequireFromString("10000")))

	commissions := byType[models.InvoiceTypePlatformCommission]
	require.Len(t, commissions, 1)
	require.Equal(t, models.PlatformPartyID, commissions[0].IssuerID)
	require.Equal(t, "agency-1", commissions[0].RecipientID)
	require.True(t, commissions[0].Amount.Equal(decimal.RequireFromString("1000")))

	payouts := byType[models.InvoiceTypeCaregiverToAgency]
	require.Len(t, payouts, 2)
	issuers := map[string]bool{}
	for _, payout := range payouts {
		issuers[payout.IssuerID] = true
		require.Equal(t, "agency-1", payout.RecipientID)
		// (10000 - 1000) * 0.8 / 2
		require.True(t, payout.Amount.Equal(decimal.RequireFromString("3600")),
			"unexpected payout amount %s", payout.Amount)
	}
	require.True(t, issuers["caregiver-1"])
	require.True(t, issuers["caregiver-2"])

	numbers := map[string]bool{}
	for _, inv := range created {
		require.NotEmpty(t, inv.InvoiceNumber)
		numbers[inv.InvoiceNumber] = true
	}
	require.Len(t, numbers, 4)
}

func TestInvoiceService_GenerateJobInvoices_RoundsPerCaregiver(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	svc, err := NewInvoiceService(db, testBillingConfig())
	require.NoError(t, err)

	job := seedJob(t, db, "guardian-1", "agency-1", "100", "cg-1", "cg-2", "cg-3")

	created, err := svc.GenerateJobInvoices(context.Background(), job.ID)
	require.NoError(t, err)

	// (100 - 10) * 0.8 / 3 = 24, commission 10.
	for _, inv := range created {
		switch inv.InvoiceType {
		case models.InvoiceTypePlatformCommission:
			require.True(t, inv.Amount.Equal(decimal.RequireFromString("10")))
		case models.InvoiceTypeCaregiverToAgency:
			require.True(t, inv.Amount.Equal(decimal.RequireFromString("24")))
		}
	}
}

func TestInvoiceService_GenerateJobInvoices_NoAgencyFallsBackToPlatform(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	svc, err := NewInvoiceService(db, testBillingConfig())
	require.NoError(t, err)

	job := seedJob(t, db, "guardian-1", "", "500", "cg-1")

	created, err := svc.GenerateJobInvoices(context.Background(), job.ID)
	require.NoError(t, err)

	for _, inv := range created {
		switch inv.InvoiceType {
		case models.InvoiceTypeAgencyToGuardian:
			require.Equal(t, models.PlatformPartyID, inv.IssuerID)
		case models.InvoiceTypePlatformCommission, models.InvoiceTypeCaregiverToAgency:
			require.Equal(t, models.PlatformPartyID, inv.RecipientID)
		}
	}
}

func TestInvoiceService_GenerateJobInvoices_Conflicts(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	svc, err := NewInvoiceService(db, testBillingConfig())
	require.NoError(t, err)

	job := seedJob(t, db, "guardian-1", "agency-1", "10000", "cg-1")

	_, err = svc.GenerateJobInvoices(context.Background(), job.ID)
	require.NoError(t, err)

	_, err = svc.GenerateJobInvoices(context.Background(), job.ID)
	require.Error(t, err)
	appErr := apperrors.FromError(err)
	require.Equal(t, "CONFLICT", appErr.Code)

	var count int64
	require.NoError(t, db.Model(&models.Invoice{}).Where("job_id = ?", job.ID).Count(&count).Error)
	require.EqualValues(t, 3, count)
}

func TestInvoiceService_GenerateJobInvoices_MissingJobAndAssignments(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	svc, err := NewInvoiceService(db, testBillingConfig())
	require.NoError(t, err)

	_, err = svc.GenerateJobInvoices(context.Background(), "does-not-exist")
	require.Error(t, err)
	require.Equal(t, "NOT_FOUND", apperrors.FromError(err).Code)

	unstaffed := seedJob(t, db, "guardian-1", "agency-1", "10000")
	_, err = svc.GenerateJobInvoices(context.Background(), unstaffed.ID)
	require.Error(t, err)
	require.Equal(t, "NOT_FOUND", apperrors.FromError(err).Code)

	var count int64
	require.NoError(t, db.Model(&models.Invoice{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestInvoiceService_CreateDerivesParties(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	svc, err := NewInvoiceService(db, testBillingConfig())
	require.NoError(t, err)

	job := seedJob(t, db, "guardian-1", "agency-1", "10000", "cg-1")

	invoice, err := svc.Create(context.Background(), CreateInvoiceInput{
		JobID:  job.ID,
		Type:   models.InvoiceTypePlatformCommission,
		Amount: decimal.RequireFromString("1000"),
	})
	require.NoError(t, err)
	require.Equal(t, models.PlatformPartyID, invoice.IssuerID)
	require.Equal(t, "agency-1", invoice.RecipientID)
	require.Equal(t, models.InvoiceStatusPending, invoice.Status)

	_, err = svc.Create(context.Background(), CreateInvoiceInput{
		JobID:  job.ID,
		Type:   models.InvoiceTypeAgencyToGuardian,
		Amount: decimal.Zero,
	})
	require.Error(t, err)
	require.Equal(t, "BAD_REQUEST", apperrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), CreateInvoiceInput{
		JobID:  job.ID,
		Type:   models.InvoiceType("MYSTERY"),
		Amount: decimal.RequireFromString("5"),
	})
	require.Error(t, err)
	require.Equal(t, "BAD_REQUEST", apperrors.FromError(err).Code)
}

func TestInvoiceService_CreateSubscriptionInvoice(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	svc, err := NewInvoiceService(db, testBillingConfig())
	require.NoError(t, err)

	invoice, err := svc.CreateSubscriptionInvoice(context.Background(), "agency-9", decimal.RequireFromString("49.99"))
	require.NoError(t, err)
	require.Equal(t, models.InvoiceTypeSubscription, invoice.InvoiceType)
	require.Equal(t, models.PlatformPartyID, invoice.IssuerID)
	require.Equal(t, "agency-9", invoice.RecipientID)
	require.Nil(t, invoice.JobID)

	_, err = svc.CreateSubscriptionInvoice(context.Background(), "  ", decimal.RequireFromString("49.99"))
	require.Error(t, err)
	require.Equal(t, "BAD_REQUEST", apperrors.FromError(err).Code)
}

func TestInvoiceService_PayIsSingleShot(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	now := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

	svc, err := NewInvoiceService(db, testBillingConfig(), WithInvoiceClock(func() time.Time { return now }))
	require.NoError(t, err)

	job := seedJob(t, db, "guardian-1", "agency-1", "10000", "cg-1")
	created, err := svc.GenerateJobInvoices(context.Background(), job.ID)
	require.NoError(t, err)

	target := created[0]

	paid, err := svc.Pay(context.Background(), target.ID, "gw-tx-1")
	require.NoError(t, err)
	require.Equal(t, target.ID, paid.ID)

	var stored models.Invoice
	require.NoError(t, db.First(&stored, "id = ?", target.ID).Error)
	require.Equal(t, models.InvoiceStatusPaid, stored.Status)
	require.NotNil(t, stored.PaidAt)
	require.Equal(t, "gw-tx-1", stored.TransactionID)

	_, err = svc.Pay(context.Background(), target.ID, "gw-tx-2")
	require.Error(t, err)
	require.Equal(t, "CONFLICT", apperrors.FromError(err).Code)

	require.NoError(t, db.First(&stored, "id = ?", target.ID).Error)
	require.Equal(t, "gw-tx-1", stored.TransactionID)

	_, err = svc.Pay(context.Background(), "missing", "gw-tx-3")
	require.Error(t, err)
	require.Equal(t, "NOT_FOUND", apperrors.FromError(err).Code)
}

func TestInvoiceService_PaySettlesOverdueInvoice(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	svc, err := NewInvoiceService(db, testBillingConfig())
	require.NoError(t, err)

	job := seedJob(t, db, "guardian-1", "agency-1", "10000", "cg-1")
	created, err := svc.GenerateJobInvoices(context.Background(), job.ID)
	require.NoError(t, err)

	target := created[0]
	require.NoError(t, db.Model(&models.Invoice{}).
		Where("id = ?", target.ID).
		Update("status", models.InvoiceStatusOverdue).Error)

	paid, err := svc.Pay(context.Background(), target.ID, "gw-tx-late")
	require.NoError(t, err)
	require.Equal(t, target.ID, paid.ID)

	var stored models.Invoice
	require.NoError(t, db.First(&stored, "id = ?", target.ID).Error)
	require.Equal(t, models.InvoiceStatusPaid, stored.Status)
}

func TestInvoiceService_ListFiltersByParty(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	svc, err := NewInvoiceService(db, testBillingConfig())
	require.NoError(t, err)

	job := seedJob(t, db, "guardian-1", "agency-1", "10000", "cg-1", "cg-2")
	_, err = svc.GenerateJobInvoices(context.Background(), job.ID)
	require.NoError(t, err)

	rows, total, err := svc.List(context.Background(), ListInvoicesInput{UserID: "agency-1"})
	require.NoError(t, err)
	require.EqualValues(t, 4, total)
	require.Len(t, rows, 4)

	rows, total, err = svc.List(context.Background(), ListInvoicesInput{UserID: "guardian-1"})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, models.InvoiceTypeAgencyToGuardian, rows[0].InvoiceType)

	rows, total, err = svc.List(context.Background(), ListInvoicesInput{UserID: "stranger"})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, rows)

	rows, total, err = svc.List(context.Background(), ListInvoicesInput{UserID: "agency-1", Page: 2, Limit: 3})
	require.NoError(t, err)
	require.EqualValues(t, 4, total)
	require.Len(t, rows, 1)
}

func TestInvoiceService_ListOverdueIsReadOnly(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	svc, err := NewInvoiceService(db, testBillingConfig())
	require.NoError(t, err)

	job := seedJob(t, db, "guardian-1", "agency-1", "10000", "cg-1")
	created, err := svc.GenerateJobInvoices(context.Background(), job.ID)
	require.NoError(t, err)

	// Age one invoice past due without reclassifying it.
	stale := time.Now().AddDate(0, 0, -30)
	require.NoError(t, db.Model(&models.Invoice{}).
		Where("id = ?", created[0].ID).
		Update("due_date", stale).Error)

	rows, err := svc.ListOverdue(context.Background())
	require.NoError(t, err)
	require.Empty(t, rows, "listing must not reclassify aged pending invoices")

	require.NoError(t, db.Model(&models.Invoice{}).
		Where("id = ?", created[0].ID).
		Update("status", models.InvoiceStatusOverdue).Error)

	rows, err = svc.ListOverdue(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, created[0].ID, rows[0].ID)
}
