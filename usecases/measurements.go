package usecases

import (
	"context"
	"time"

	"cacao-server/entities"
	"cacao-server/repositories"

	"go.uber.org/zap"
)

const (
	DefaultMeasurementLimit = 100
	MaxMeasurementLimit     = 1000
)

// MeasurementUpdate is an admin correction of a stored reading.
type MeasurementUpdate struct {
	TakenAt time.Time `json:"date" validate:"required"`
	Value   *float64  `json:"data" validate:"required"`
}

// MeasurementUseCase covers the admin surface of the measurement store.
// Normal writes go through IngestionUseCase.
type MeasurementUseCase struct {
	store repositories.Store
	cache SnapshotCache
	log   *zap.Logger
}

func NewMeasurementUseCase(store repositories.Store, cache SnapshotCache, log *zap.Logger) *MeasurementUseCase {
	return &MeasurementUseCase{store: store, cache: cache, log: log}
}

// List returns the newest measurements, optionally of one sensor. A zero
// limit means the default.
func (uc *MeasurementUseCase) List(ctx context.Context, sensorID string, limit int) ([]entities.Measurement, error) {
	if limit == 0 {
		limit = DefaultMeasurementLimit
	}
	if limit < 1 || limit > MaxMeasurementLimit {
		return nil, InvalidField("limit", "limit must be between 1 and 1000")
	}
	list, err := uc.store.Measurements().List(ctx, repositories.MeasurementFilter{SensorID: sensorID, Limit: limit})
	return nonNil(list), wrap(err)
}

func (uc *MeasurementUseCase) Get(ctx context.Context, id string) (*entities.Measurement, error) {
	m, err := uc.store.Measurements().GetByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "measurement")
	}
	return m, nil
}

func (uc *MeasurementUseCase) Update(ctx context.Context, id string, in MeasurementUpdate) (*entities.Measurement, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	m, err := uc.store.Measurements().GetByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "measurement")
	}
	m.TakenAt = in.TakenAt.UTC().Truncate(time.Second)
	m.Value = *in.Value
	if err := uc.store.Measurements().Update(ctx, m); err != nil {
		return nil, wrap(err)
	}
	uc.invalidate(ctx, m.SensorID)
	return m, nil
}

func (uc *MeasurementUseCase) Delete(ctx context.Context, id string) error {
	m, err := uc.store.Measurements().GetByID(ctx, id)
	if err != nil {
		return lookup(err, "measurement")
	}
	if err := uc.store.Measurements().Delete(ctx, id); err != nil {
		return wrap(err)
	}
	uc.invalidate(ctx, m.SensorID)
	return nil
}

func (uc *MeasurementUseCase) invalidate(ctx context.Context, sensorID string) {
	if uc.cache == nil {
		return
	}
	sensor, err := uc.store.Sensors().GetByID(ctx, sensorID)
	if err != nil {
		uc.log.Warn("sensor lookup for cache invalidation failed", zap.String("sensor_id", sensorID), zap.Error(err))
		return
	}
	if err := uc.cache.Invalidate(ctx, sensor.DeviceID); err != nil {
		uc.log.Warn("snapshot cache invalidation failed", zap.String("device_id", sensor.DeviceID), zap.Error(err))
	}
}
