package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Turn is a mixing event within a fermentation.
type Turn struct {
	ID             string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	FermentationID string     `gorm:"type:varchar(36);not null;index" json:"fermentation_id"`
	StartTime      time.Time  `gorm:"not null" json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
	Status         Status     `gorm:"type:varchar(16);not null" json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (t *Turn) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.Status = t.Status.OrDefault()
	return
}
