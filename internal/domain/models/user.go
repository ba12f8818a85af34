// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User statuses.
const (
	UserStatusApproved = "approved"
	UserStatusPending  = "pending"
	UserStatusDisabled = "disabled"
)

// User represents admins, affiliate managers, lead managers, and agents.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName     string             `bson:"full_name" json:"full_name"`
	FullNameCI   string             `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Role         string             `bson:"role" json:"role"` // admin | affiliate_manager | lead_manager | agent
	IsActive     bool               `bson:"is_active" json:"is_active"`
	Status       string             `bson:"status" json:"status"` // approved | pending | disabled

	// FourDigitCode identifies agents in outbound call systems.
	FourDigitCode string `bson:"four_digit_code,omitempty" json:"four_digit_code,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// CanTakeLeads reports whether this user is an agent eligible for lead
// assignment (active and approved).
func (u *User) CanTakeLeads() bool {
	return u.Role == "agent" && u.IsActive && u.Status == UserStatusApproved
}
