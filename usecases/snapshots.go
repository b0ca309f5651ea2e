package usecases

import (
	"context"
	"fmt"
	"sort"

	"cacao-server/entities"
	"cacao-server/metrics"
	"cacao-server/repositories"

	"go.uber.org/zap"
)

const (
	DefaultSnapshotCount = 10
	MaxSnapshotCount     = 5000
)

// Aggregate pivots measurement rows into snapshots, one per exact timestamp,
// newest first. A type with no row at a timestamp is absent from that
// snapshot.
func Aggregate(rows []entities.MeasurementRow) []entities.Snapshot {
	index := make(map[int64]int)
	var out []entities.Snapshot
	for _, row := range rows {
		key := row.TakenAt.UnixNano()
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, entities.Snapshot{Date: row.TakenAt.UTC(), Values: map[string]float64{}})
		}
		if _, seen := out[i].Values[row.MeasurementType]; !seen {
			out[i].Values[row.MeasurementType] = row.Value
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Date.After(out[b].Date) })
	return out
}

// SnapshotUseCase answers latest-snapshot queries for a fermentation through
// its device's sensors.
type SnapshotUseCase struct {
	store repositories.Store
	cache SnapshotCache
	log   *zap.Logger
}

func NewSnapshotUseCase(store repositories.Store, cache SnapshotCache, log *zap.Logger) *SnapshotUseCase {
	return &SnapshotUseCase{store: store, cache: cache, log: log}
}

// Latest returns the most recent snapshot, or a not-found error when the
// device has no measurements.
func (uc *SnapshotUseCase) Latest(ctx context.Context, fermentationID string) (*entities.Snapshot, error) {
	f, err := uc.store.Fermentations().GetByID(ctx, fermentationID)
	if err != nil {
		return nil, lookup(err, "fermentation")
	}

	cacheable := false
	var generation int64
	if uc.cache != nil {
		snap, ok, err := uc.cache.Get(ctx, f.DeviceID)
		switch {
		case err != nil:
			uc.log.Warn("snapshot cache read failed", zap.String("device_id", f.DeviceID), zap.Error(err))
		case ok:
			metrics.SnapshotCacheHits.Inc()
			return snap, nil
		}
		metrics.SnapshotCacheMisses.Inc()

		generation, err = uc.cache.Generation(ctx, f.DeviceID)
		if err != nil {
			uc.log.Warn("snapshot cache generation read failed", zap.String("device_id", f.DeviceID), zap.Error(err))
		} else {
			cacheable = true
		}
	}

	snaps, err := uc.forDevice(ctx, f.DeviceID, 1)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, NotFound("measurement snapshot")
	}
	snap := snaps[0]

	if cacheable {
		if err := uc.cache.Set(ctx, f.DeviceID, generation, snap); err != nil {
			uc.log.Warn("snapshot cache write failed", zap.String("device_id", f.DeviceID), zap.Error(err))
		}
	}
	return &snap, nil
}

// LatestN returns up to n most recent snapshots, newest first; an empty list
// when there are none.
func (uc *SnapshotUseCase) LatestN(ctx context.Context, fermentationID string, n int) ([]entities.Snapshot, error) {
	if n < 1 || n > MaxSnapshotCount {
		return nil, InvalidField("limit", fmt.Sprintf("limit must be between 1 and %d", MaxSnapshotCount))
	}
	f, err := uc.store.Fermentations().GetByID(ctx, fermentationID)
	if err != nil {
		return nil, lookup(err, "fermentation")
	}
	return uc.forDevice(ctx, f.DeviceID, n)
}

func (uc *SnapshotUseCase) forDevice(ctx context.Context, deviceID string, n int) ([]entities.Snapshot, error) {
	rows, err := uc.store.Measurements().LatestRowsForDevice(ctx, deviceID, n)
	if err != nil {
		return nil, wrap(err)
	}
	return nonNil(Aggregate(rows)), nil
}
