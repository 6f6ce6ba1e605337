package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionSubmitAttendance  = "SUBMIT_ATTENDANCE"
	ActionEditAttendance    = "EDIT_ATTENDANCE"
	ActionMergeAttendance   = "MERGE_ATTENDANCE"
	ActionCleanupArea       = "CLEANUP_AREA_ATTENDANCE"
	ActionGenerateInvoice   = "GENERATE_INVOICE"
	ActionDeleteInvoice     = "DELETE_INVOICE"
	ActionRegenerateInvoice = "REGENERATE_INVOICE"
	ActionCreateUser        = "CREATE_USER"
)

// AuditLog tracks who changed what and when.
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"userId"` // nil for CLI and automated changes
	User       *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	StoreID    *uuid.UUID `gorm:"type:uuid;index" json:"storeId,omitempty"` // store of the changed entity
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entityId"`
	EntityName string     `gorm:"type:varchar(255)" json:"entityName,omitempty"`
	Details    string     `gorm:"type:jsonb" json:"details"`
	CreatedAt  time.Time  `gorm:"index" json:"createdAt"`
}
