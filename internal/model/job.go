package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// JobStatus enum constants
const (
	JobStatusPending   = "pending"
	JobStatusCompleted = "completed"
)

// Job is a unit of repair work tied to one customer and one vehicle,
// assigned to one employee. Cost stays 0 until an invoice is created;
// there is no transition back from completed to pending.
type Job struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"customer_id"`
	Customer         *Customer       `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	VehicleID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"vehicle_id"`
	Vehicle          *Vehicle        `gorm:"foreignKey:VehicleID" json:"vehicle,omitempty"`
	AssignedEmployee uuid.UUID       `gorm:"type:uuid;not null;index" json:"assigned_employee"`
	Employee         *Profile        `gorm:"foreignKey:AssignedEmployee" json:"employee,omitempty"`
	Description      string          `gorm:"type:text;not null" json:"description"`
	Cost             decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"cost"`
	Status           string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Notes            string          `gorm:"type:text" json:"notes,omitempty"`
	Invoice          *Invoice        `gorm:"foreignKey:JobID" json:"invoice,omitempty"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}
