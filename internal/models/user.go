package models

// User is a minimal mirror of the identity collaborator's account record.
// Authentication is external; the settlement subsystem only needs a stable
// id and role for authorization and lockout bookkeeping.
type User struct {
	BaseModel

	Email string `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	Role  string `gorm:"type:varchar(32);not null;index" json:"role"`

	IsActive bool `gorm:"default:true" json:"is_active"`
}

// Roles recognised by the request layer. Issued inside JWT claims by the
// identity collaborator.
const (
	RoleAdmin     = "ADMIN"
	RoleGuardian  = "GUARDIAN"
	RoleAgency    = "AGENCY"
	RoleCaregiver = "CAREGIVER"
)
