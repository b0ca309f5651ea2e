package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Fermentation is one batch run on a device.
type Fermentation struct {
	ID        string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	DeviceID  string           `gorm:"type:varchar(36);not null;index" json:"device_id"`
	StartTime time.Time        `gorm:"not null" json:"start_time"`
	EndTime   *time.Time       `json:"end_time"`
	Status    Status           `gorm:"type:varchar(16);not null;index" json:"status"`
	Title     string           `gorm:"type:varchar(16);not null;uniqueIndex" json:"title"`
	Type      FermentationType `gorm:"type:varchar(16);not null" json:"type"`
	Note      *string          `gorm:"type:text" json:"note"`
	Code      *string          `gorm:"type:varchar(64);uniqueIndex" json:"code"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (f *Fermentation) BeforeCreate(tx *gorm.DB) (err error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	f.Status = f.Status.OrDefault()
	return
}

// FermentationGenotype is the weighted join between a fermentation and one of
// its genotypes.
type FermentationGenotype struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"-"`
	FermentationID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_fermentation_genotype,priority:1" json:"fermentation_id"`
	GenotypeID     string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_fermentation_genotype,priority:2;index" json:"genotype_id"`
	Quantity       float64   `gorm:"type:decimal(10,2);not null" json:"quantity"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (FermentationGenotype) TableName() string { return "fermentation_genotype" }

func (fg *FermentationGenotype) BeforeCreate(tx *gorm.DB) (err error) {
	if fg.ID == "" {
		fg.ID = uuid.New().String()
	}
	return
}

// GenotypeQuantity is a request-side (genotype, quantity) pair. Quantities
// are stored as decimal(10,2) and read back rounded to two decimals.
type GenotypeQuantity struct {
	GenotypeID string  `json:"id" validate:"required"`
	Quantity   float64 `json:"quantity" validate:"gte=0,lte=99999999.99"`
}

// GenotypeShare is a genotype as seen from a fermentation, carrying the join quantity.
type GenotypeShare struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Code     string  `json:"code"`
	Quantity float64 `json:"quantity"`
}

// TotalQuantity sums the quantities of shares. Units are not checked.
func TotalQuantity(shares []GenotypeShare) float64 {
	var total float64
	for _, s := range shares {
		total += s.Quantity
	}
	return total
}
