package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionSubmitDocument     = "SUBMIT_DOCUMENT"
	ActionTransitionDocument = "TRANSITION_DOCUMENT"
	ActionDeleteDocument     = "DELETE_DOCUMENT"
	ActionChangePassword     = "CHANGE_PASSWORD"
)

// AuditLog tracks Who, What, and When for ledger changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // nil for CLI and system actions
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:jsonb" json:"details"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
