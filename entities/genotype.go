package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Genotype is a cacao varietal reference record.
type Genotype struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name        string    `gorm:"type:varchar(128);not null" json:"name"`
	Code        string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"code"`
	Description *string   `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (g *Genotype) BeforeCreate(tx *gorm.DB) (err error) {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	return
}
