package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EscrowStatus tracks custody of held funds. RELEASED and REFUNDED are terminal.
type EscrowStatus string

const (
	EscrowStatusHeld     EscrowStatus = "HELD"
	EscrowStatusReleased EscrowStatus = "RELEASED"
	EscrowStatusRefunded EscrowStatus = "REFUNDED"
)

// Escrow holds captured funds for a single payment until they are released to
// the payee or refunded. Exactly one escrow exists per payment.
type Escrow struct {
	BaseModel

	PaymentID string `gorm:"type:uuid;uniqueIndex;not null" json:"payment_id"`

	Amount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Fee    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"fee"`

	Status     EscrowStatus `gorm:"type:varchar(16);not null;default:'HELD';index" json:"status"`
	ReleasedAt *time.Time   `json:"released_at"`
}
