package repositories

import (
	"context"

	"cacao-server/db"
	"cacao-server/entities"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type devicePgRepository struct {
	db db.Database
}

func NewDevicePgRepository(database db.Database) DeviceRepository {
	return &devicePgRepository{db: database}
}

func (r *devicePgRepository) conn(ctx context.Context) *gorm.DB {
	return r.db.GetDB().WithContext(ctx)
}

func (r *devicePgRepository) Create(ctx context.Context, device *entities.Device) error {
	return r.conn(ctx).Create(device).Error
}

func (r *devicePgRepository) GetByID(ctx context.Context, id string) (*entities.Device, error) {
	var device entities.Device
	if err := r.conn(ctx).Where("id = ?", id).First(&device).Error; err != nil {
		return nil, translate(err)
	}
	return &device, nil
}

func (r *devicePgRepository) GetBySerial(ctx context.Context, serial string) (*entities.Device, error) {
	var device entities.Device
	if err := r.conn(ctx).Where("serial_number = ?", serial).First(&device).Error; err != nil {
		return nil, translate(err)
	}
	return &device, nil
}

func (r *devicePgRepository) GetAll(ctx context.Context) ([]entities.Device, error) {
	var devices []entities.Device
	err := r.conn(ctx).Order("created_at ASC").Find(&devices).Error
	return devices, err
}

func (r *devicePgRepository) Lock(ctx context.Context, id string) (*entities.Device, error) {
	var device entities.Device
	err := r.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&device).Error
	if err != nil {
		return nil, translate(err)
	}
	return &device, nil
}

func (r *devicePgRepository) SerialTaken(ctx context.Context, serial, excludeID string) (bool, error) {
	var n int64
	q := r.conn(ctx).Model(&entities.Device{}).Where("serial_number = ?", serial)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}

func (r *devicePgRepository) Update(ctx context.Context, device *entities.Device) error {
	return r.conn(ctx).Save(device).Error
}

func (r *devicePgRepository) Delete(ctx context.Context, id string) error {
	return r.conn(ctx).Where("id = ?", id).Delete(&entities.Device{}).Error
}
