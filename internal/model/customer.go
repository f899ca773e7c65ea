package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Customer is a vehicle owner the shop does work for. Only the name is
// required; contact details are optional.
type Customer struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string     `gorm:"type:varchar(255);not null" json:"name"`
	Phone     string     `gorm:"type:varchar(20)" json:"phone,omitempty"`
	Email     string     `gorm:"type:varchar(255)" json:"email,omitempty"`
	CreatedBy *uuid.UUID `gorm:"type:uuid;index" json:"created_by"`
	Creator   *Profile   `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Vehicle belongs to exactly one customer.
type Vehicle struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Registration string     `gorm:"type:varchar(20);not null;index" json:"registration"`
	Model        string     `gorm:"type:varchar(100);not null" json:"model"`
	Type         string     `gorm:"type:varchar(50);not null" json:"type"`
	CustomerID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"customer_id"`
	Customer     *Customer  `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	CreatedBy    *uuid.UUID `gorm:"type:uuid" json:"created_by"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (v *Vehicle) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
