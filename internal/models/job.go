package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Job mirrors the assignment lifecycle collaborator's completed-job record.
// The settlement subsystem reads it and never writes it; once an invoice set
// has been generated the row is treated as immutable.
type Job struct {
	BaseModel

	GuardianID string  `gorm:"type:varchar(64);not null;index" json:"guardian_id"`
	AgencyID   *string `gorm:"type:varchar(64);index" json:"agency_id"`

	TotalPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_price"`

	CompletedAt *time.Time `json:"completed_at"`
	CancelledAt *time.Time `json:"cancelled_at"`

	Assignments []Assignment `gorm:"foreignKey:JobID" json:"assignments,omitempty"`
}

// Assignment links a caregiver to a job. Each assignment receives its own
// caregiver payout invoice at settlement time.
type Assignment struct {
	BaseModel

	JobID       string `gorm:"type:uuid;not null;index" json:"job_id"`
	CaregiverID string `gorm:"type:varchar(64);not null;index" json:"caregiver_id"`
}
