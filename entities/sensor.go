package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Sensor is one typed probe of a device. A device has at most one sensor per
// measurement type.
type Sensor struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	DeviceID  string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_sensor_device_type,priority:1" json:"device_id"`
	Type      string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_sensor_device_type,priority:2" json:"type"`
	Name      string    `gorm:"type:varchar(128);not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Sensor) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return
}
