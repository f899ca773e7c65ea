package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionCreateJob     = "CREATE_JOB"
	ActionCompleteJob   = "COMPLETE_JOB"
	ActionCreateInvoice = "CREATE_INVOICE"

	// Edit workflow actions
	ActionRequestInvoiceEdit = "REQUEST_INVOICE_EDIT"
	ActionApproveInvoiceEdit = "APPROVE_INVOICE_EDIT"
	ActionRejectInvoiceEdit  = "REJECT_INVOICE_EDIT"
	ActionApplyInvoiceEdit   = "APPLY_INVOICE_EDIT"

	ActionActivateProfile   = "ACTIVATE_PROFILE"
	ActionDeactivateProfile = "DEACTIVATE_PROFILE"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProfileID  *uuid.UUID `gorm:"type:uuid;index" json:"profile_id"`
	Profile    *Profile   `gorm:"foreignKey:ProfileID" json:"profile"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:jsonb" json:"details"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
