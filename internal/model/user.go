package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role names. Each approval stage has one owning role.
const (
	RoleAdmin        = "admin"
	RoleRequester    = "requester"
	RoleChecker      = "checker"
	RoleAcknowledger = "acknowledger"
	RoleApprover     = "approver"
	RoleReceiver     = "receiver"
)

// AllRoles lists every assignable role.
var AllRoles = []string{RoleAdmin, RoleRequester, RoleChecker, RoleAcknowledger, RoleApprover, RoleReceiver}

// ValidRole reports whether role is assignable.
func ValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User is an account allowed to sign in to the approval dashboards
type User struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Username    string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Email       string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	DisplayName string         `gorm:"type:varchar(255)" json:"display_name"`
	Password    string         `gorm:"type:varchar(255);not null" json:"-"` // bcrypt hash, never serialized
	Role        string         `gorm:"type:varchar(50);not null" json:"role"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// Name returns the display name, falling back to the username.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
