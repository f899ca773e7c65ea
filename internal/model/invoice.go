package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InvoiceStatus enum constants
const (
	InvoiceStatusPending   = "pending"
	InvoiceStatusCompleted = "completed"
)

// EditRequestState enum constants for Invoice.EditRequest. The cycle is
// none -> requested -> approved -> none (after an employee applies an edit)
// and requested -> rejected -> requested (re-request after rejection).
const (
	EditRequestNone      = "none"
	EditRequestRequested = "requested"
	EditRequestApproved  = "approved"
	EditRequestRejected  = "rejected"
)

// Invoice is the billing record generated when a job is completed.
// The unique index on JobID enforces the one-to-one Job relationship;
// concurrent creation attempts against the same job are serialized by it.
type Invoice struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	JobID         uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"job_id"`
	Job           *Job      `gorm:"foreignKey:JobID" json:"job,omitempty"`
	InvoiceNumber string    `gorm:"type:varchar(30);uniqueIndex;not null" json:"invoice_number"`
	Status        string    `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	EditRequest   string    `gorm:"type:varchar(20);not null;default:'none';index" json:"edit_request"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// EditRecordAction enum constants
const (
	EditRecordRequested = "requested"
	EditRecordApproved  = "approved"
	EditRecordRejected  = "rejected"
	EditRecordApplied   = "applied"
)

// InvoiceEditRecord is the history trail behind the edit_request flag:
// one row per request, review decision, and applied edit, so post-issuance
// changes stay auditable after the flag cycles back to none.
type InvoiceEditRecord struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Invoice          *Invoice   `gorm:"foreignKey:InvoiceID" json:"invoice,omitempty"`
	EmployeeID       *uuid.UUID `gorm:"type:uuid;index" json:"employee_id"`
	Employee         *Profile   `gorm:"foreignKey:EmployeeID" json:"employee,omitempty"`
	Action           string     `gorm:"type:varchar(20);not null;index" json:"action"`
	RequestedChanges string     `gorm:"type:jsonb" json:"requested_changes,omitempty"` // snapshot of applied field changes
	ReviewedBy       *uuid.UUID `gorm:"type:uuid" json:"reviewed_by"`
	Reviewer         *Profile   `gorm:"foreignKey:ReviewedBy" json:"reviewer,omitempty"`
	ReviewedAt       *time.Time `json:"reviewed_at"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (r *InvoiceEditRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
