package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Device is a monitoring hub in the field, identified by its serial number.
type Device struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SerialNumber string    `gorm:"uniqueIndex;type:varchar(64);not null" json:"serial_number"`
	Code         string    `gorm:"type:varchar(64);not null" json:"code"`
	Status       Status    `gorm:"type:varchar(16);not null" json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (d *Device) BeforeCreate(tx *gorm.DB) (err error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	d.Status = d.Status.OrDefault()
	return
}
