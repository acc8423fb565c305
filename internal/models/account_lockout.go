package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// LockoutReason explains why an account lockout was opened.
type LockoutReason string

const (
	LockoutReasonPaymentOverdue  LockoutReason = "PAYMENT_OVERDUE"
	LockoutReasonPolicyViolation LockoutReason = "POLICY_VIOLATION"
	LockoutReasonManualReview    LockoutReason = "MANUAL_REVIEW"
)

// AccountLockout restricts specific feature codes for a user until it is
// resolved by payment or admin action. At most one row per user may have
// IsActive set; the invariant is enforced in application code inside a
// transaction since it cannot be expressed as a plain unique constraint on
// every supported store.
type AccountLockout struct {
	BaseModel

	UserID string        `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Reason LockoutReason `gorm:"type:varchar(32);not null" json:"reason"`

	// LockedFeatures holds the feature codes denied while the lockout is
	// active; ActiveFeatures lists explicit exemptions that stay usable.
	LockedFeatures datatypes.JSON `json:"locked_features"`
	ActiveFeatures datatypes.JSON `json:"active_features"`

	IsActive bool `gorm:"not null;default:true;index" json:"is_active"`

	LockedAt   time.Time  `gorm:"not null" json:"locked_at"`
	UnlockedAt *time.Time `json:"unlocked_at"`
	UnlockedBy string     `gorm:"type:varchar(64)" json:"unlocked_by,omitempty"`
}

// FeatureList encodes feature codes into the stored JSON representation.
func FeatureList(codes ...string) datatypes.JSON {
	if len(codes) == 0 {
		codes = []string{}
	}
	b, err := json.Marshal(codes)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(b)
}

// LockedFeatureCodes decodes the denied feature codes. An unparseable set
// behaves as empty.
func (l *AccountLockout) LockedFeatureCodes() []string {
	return decodeFeatureList(l.LockedFeatures)
}

// ActiveFeatureCodes decodes the explicitly exempted feature codes.
func (l *AccountLockout) ActiveFeatureCodes() []string {
	return decodeFeatureList(l.ActiveFeatures)
}

// Covers reports whether the lockout denies the given feature code: the code
// must appear in the locked set and not be exempted.
func (l *AccountLockout) Covers(code string) bool {
	for _, exempt := range l.ActiveFeatureCodes() {
		if exempt == code {
			return false
		}
	}
	for _, locked := range l.LockedFeatureCodes() {
		if locked == code {
			return true
		}
	}
	return false
}

func decodeFeatureList(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var codes []string
	if err := json.Unmarshal(raw, &codes); err != nil {
		return nil
	}
	return codes
}
