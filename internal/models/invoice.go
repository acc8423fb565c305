package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceType identifies the party split an invoice represents.
type InvoiceType string

const (
	InvoiceTypeAgencyToGuardian   InvoiceType = "AGENCY_TO_GUARDIAN"
	InvoiceTypePlatformCommission InvoiceType = "PLATFORM_COMMISSION"
	InvoiceTypeCaregiverToAgency  InvoiceType = "CAREGIVER_TO_AGENCY"
	InvoiceTypeSubscription       InvoiceType = "SUBSCRIPTION"
)

// InvoiceStatus tracks an invoice through its lifecycle.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "PENDING"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusOverdue InvoiceStatus = "OVERDUE"
)

// PlatformPartyID is the issuer recorded on invoices billed by the platform itself.
const PlatformPartyID = "PLATFORM"

// Invoice represents one leg of a job's multi-party settlement, or a
// subscription charge. Status moves PENDING -> PAID via an explicit payment,
// or PENDING -> OVERDUE via the overdue sweep only. LockedAt is stamped
// exactly once, by the sweep, and guards against re-triggering a lockout
// from the same invoice.
type Invoice struct {
	BaseModel

	InvoiceNumber string      `gorm:"type:varchar(64);uniqueIndex;not null" json:"invoice_number"`
	JobID         *string     `gorm:"type:uuid;index" json:"job_id"`
	InvoiceType   InvoiceType `gorm:"type:varchar(32);not null;index:idx_invoices_job_type" json:"invoice_type"`

	IssuerID    string `gorm:"type:varchar(64);not null;index" json:"issuer_id"`
	RecipientID string `gorm:"type:varchar(64);not null;index" json:"recipient_id"`

	Amount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`

	Status  InvoiceStatus `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"status"`
	DueDate time.Time     `gorm:"not null;index" json:"due_date"`

	PaidAt        *time.Time `json:"paid_at"`
	TransactionID string     `gorm:"type:varchar(64)" json:"transaction_id,omitempty"`
	LockedAt      *time.Time `json:"locked_at"`
}
