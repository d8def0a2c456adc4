package models

import (
	"time"
)

type AuditLog struct {
	ID            uint      `gorm:"primaryKey" bson:"_id" json:"id"`
	CharacterID   *uint64   `gorm:"index:idx_audit_character_id" bson:"character_id,omitempty" json:"character_id,omitempty"`
	CharacterName *string   `gorm:"size:255" bson:"character_name,omitempty" json:"character_name,omitempty"`
	Action        string    `gorm:"size:64;not null;index:idx_audit_action" bson:"action" json:"action"`
	Description   *string   `gorm:"type:text" bson:"description,omitempty" json:"description,omitempty"`
	IPAddress     *string   `gorm:"size:64" bson:"ip_address,omitempty" json:"ip_address,omitempty"`
	UserAgent     *string   `gorm:"type:text" bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	RequestID     *string   `gorm:"size:255;index:idx_audit_request_id" bson:"request_id,omitempty" json:"request_id,omitempty"`
	Success       *bool     `gorm:"default:true;index:idx_audit_success" bson:"success" json:"success"`
	ErrorMessage  *string   `gorm:"type:text" bson:"error_message,omitempty" json:"error_message,omitempty"`
	CreatedAt     time.Time `gorm:"default:CURRENT_TIMESTAMP;index:idx_audit_created_at" bson:"created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

// Audit action constants
const (
	AuditActionCharacterCreated           = "character_created"
	AuditActionCharacterDeleted           = "character_deleted"
	AuditActionCharacterDuplicateRejected = "character_duplicate_rejected"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint
	CharacterID   *uint64
	Action        *string
	Success       *bool
	RequestID     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// IsFailed reports whether the entry records a rejected operation
func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}
