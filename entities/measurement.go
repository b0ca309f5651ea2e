package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Measurement is one timestamped reading of a sensor. Rows are append-only in
// normal operation.
type Measurement struct {
	ID              string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SensorID        string    `gorm:"type:varchar(36);not null;index:idx_measurement_sensor_taken,priority:1" json:"sensor_id"`
	TakenAt         time.Time `gorm:"not null;index:idx_measurement_sensor_taken,priority:2;index" json:"date"`
	Value           float64   `gorm:"not null" json:"data"`
	MeasurementType string    `gorm:"type:varchar(64);not null" json:"measurement_type"`
	Unit            string    `gorm:"type:varchar(16)" json:"unit"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (m *Measurement) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

// MeasurementRow is the projection the snapshot aggregator works on.
type MeasurementRow struct {
	TakenAt         time.Time
	MeasurementType string
	Value           float64
}
