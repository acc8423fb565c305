package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus tracks a payment through the gateway lifecycle.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

// Payment records a guardian's payment intent for a job. The gateway adapters
// are external; this row is updated from their confirmed/failed callbacks.
type Payment struct {
	BaseModel

	JobID   string `gorm:"type:uuid;not null;index" json:"job_id"`
	PayerID string `gorm:"type:varchar(64);not null;index" json:"payer_id"`

	Amount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Method string          `gorm:"type:varchar(32)" json:"method"`

	TransactionID   string `gorm:"type:varchar(64)" json:"transaction_id"`
	InvoiceNumber   string `gorm:"type:varchar(64)" json:"invoice_number"`
	GatewayResponse string `gorm:"type:text" json:"-"`

	Status PaymentStatus `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"status"`
	PaidAt *time.Time    `json:"paid_at"`

	RefundAmount *decimal.Decimal `gorm:"type:decimal(12,2)" json:"refund_amount,omitempty"`
	RefundReason string           `gorm:"type:text" json:"refund_reason,omitempty"`

	Escrow *Escrow `gorm:"foreignKey:PaymentID" json:"escrow,omitempty"`
}
