package repositories

import (
	"context"
	"errors"

	"cacao-server/db"
	"cacao-server/entities"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type sensorPgRepository struct {
	db db.Database
}

func NewSensorPgRepository(database db.Database) SensorRepository {
	return &sensorPgRepository{db: database}
}

func (r *sensorPgRepository) conn(ctx context.Context) *gorm.DB {
	return r.db.GetDB().WithContext(ctx)
}

func (r *sensorPgRepository) Create(ctx context.Context, sensor *entities.Sensor) error {
	return r.conn(ctx).Create(sensor).Error
}

func (r *sensorPgRepository) GetByID(ctx context.Context, id string) (*entities.Sensor, error) {
	var sensor entities.Sensor
	if err := r.conn(ctx).Where("id = ?", id).First(&sensor).Error; err != nil {
		return nil, translate(err)
	}
	return &sensor, nil
}

func (r *sensorPgRepository) GetAll(ctx context.Context) ([]entities.Sensor, error) {
	var sensors []entities.Sensor
	err := r.conn(ctx).Order("created_at ASC").Find(&sensors).Error
	return sensors, err
}

func (r *sensorPgRepository) GetByDeviceID(ctx context.Context, deviceID string) ([]entities.Sensor, error) {
	var sensors []entities.Sensor
	err := r.conn(ctx).Where("device_id = ?", deviceID).Order("type ASC").Find(&sensors).Error
	return sensors, err
}

func (r *sensorPgRepository) FindByDeviceAndType(ctx context.Context, deviceID, sensorType string) (*entities.Sensor, error) {
	var sensor entities.Sensor
	err := r.conn(ctx).Where("device_id = ? AND type = ?", deviceID, sensorType).First(&sensor).Error
	if err != nil {
		return nil, translate(err)
	}
	return &sensor, nil
}

func (r *sensorPgRepository) FindOrCreate(ctx context.Context, deviceID, sensorType, name string) (*entities.Sensor, error) {
	sensor, err := r.FindByDeviceAndType(ctx, deviceID, sensorType)
	if err == nil {
		return sensor, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// A concurrent ingestion may insert the same (device, type) first; the
	// unique index turns our insert into a no-op and the reselect finds theirs.
	candidate := entities.Sensor{DeviceID: deviceID, Type: sensorType, Name: name}
	if err := r.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&candidate).Error; err != nil {
		return nil, err
	}
	return r.FindByDeviceAndType(ctx, deviceID, sensorType)
}

func (r *sensorPgRepository) Update(ctx context.Context, sensor *entities.Sensor) error {
	return r.conn(ctx).Save(sensor).Error
}

func (r *sensorPgRepository) Delete(ctx context.Context, id string) error {
	return r.conn(ctx).Where("id = ?", id).Delete(&entities.Sensor{}).Error
}

func (r *sensorPgRepository) DeleteByDeviceID(ctx context.Context, deviceID string) error {
	return r.conn(ctx).Where("device_id = ?", deviceID).Delete(&entities.Sensor{}).Error
}
