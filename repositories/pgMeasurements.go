package repositories

import (
	"context"

	"cacao-server/db"
	"cacao-server/entities"

	"gorm.io/gorm"
)

type measurementPgRepository struct {
	db db.Database
}

func NewMeasurementPgRepository(database db.Database) MeasurementRepository {
	return &measurementPgRepository{db: database}
}

func (r *measurementPgRepository) conn(ctx context.Context) *gorm.DB {
	return r.db.GetDB().WithContext(ctx)
}

func (r *measurementPgRepository) CreateBatch(ctx context.Context, measurements []entities.Measurement) error {
	if len(measurements) == 0 {
		return nil
	}
	return r.conn(ctx).Create(&measurements).Error
}

func (r *measurementPgRepository) GetByID(ctx context.Context, id string) (*entities.Measurement, error) {
	var m entities.Measurement
	if err := r.conn(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (r *measurementPgRepository) List(ctx context.Context, filter MeasurementFilter) ([]entities.Measurement, error) {
	var measurements []entities.Measurement
	q := r.conn(ctx).Order("taken_at DESC").Order("measurement_type ASC")
	if filter.SensorID != "" {
		q = q.Where("sensor_id = ?", filter.SensorID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	err := q.Find(&measurements).Error
	return measurements, err
}

func (r *measurementPgRepository) CountBySensorID(ctx context.Context, sensorID string) (int64, error) {
	var n int64
	err := r.conn(ctx).Model(&entities.Measurement{}).Where("sensor_id = ?", sensorID).Count(&n).Error
	return n, err
}

func (r *measurementPgRepository) Update(ctx context.Context, measurement *entities.Measurement) error {
	return r.conn(ctx).Save(measurement).Error
}

func (r *measurementPgRepository) Delete(ctx context.Context, id string) error {
	return r.conn(ctx).Where("id = ?", id).Delete(&entities.Measurement{}).Error
}

func (r *measurementPgRepository) DeleteByDeviceID(ctx context.Context, deviceID string) error {
	sensorIDs := r.conn(ctx).Model(&entities.Sensor{}).Select("id").Where("device_id = ?", deviceID)
	return r.conn(ctx).Where("sensor_id IN (?)", sensorIDs).Delete(&entities.Measurement{}).Error
}

const latestRowsQuery = `
SELECT m.taken_at, m.measurement_type, m.value
FROM measurements m
JOIN sensors s ON s.id = m.sensor_id
WHERE s.device_id = ? AND m.taken_at IN (
	SELECT DISTINCT m2.taken_at
	FROM measurements m2
	JOIN sensors s2 ON s2.id = m2.sensor_id
	WHERE s2.device_id = ?
	ORDER BY m2.taken_at DESC
	LIMIT ?
)
ORDER BY m.taken_at DESC, m.measurement_type ASC`

func (r *measurementPgRepository) LatestRowsForDevice(ctx context.Context, deviceID string, groups int) ([]entities.MeasurementRow, error) {
	var rows []entities.MeasurementRow
	if groups <= 0 {
		return rows, nil
	}
	err := r.conn(ctx).Raw(latestRowsQuery, deviceID, deviceID, groups).Scan(&rows).Error
	return rows, err
}
