package usecases

import (
	"context"
	"testing"
	"time"

	"cacao-server/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAggregate(t *testing.T) {
	t1 := time.Date(2024, 6, 14, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	rows := []entities.MeasurementRow{
		{TakenAt: t1, MeasurementType: "ph", Value: 4.5},
		{TakenAt: t2, MeasurementType: "ph", Value: 4.7},
		{TakenAt: t2, MeasurementType: "co2", Value: 400},
		{TakenAt: t1, MeasurementType: "co2", Value: 390},
		{TakenAt: t1.Add(time.Nanosecond), MeasurementType: "cov", Value: 7},
	}

	got := Aggregate(rows)
	require.Len(t, got, 3, "timestamps are grouped on exact equality")
	assert.True(t, got[0].Date.Equal(t2))
	assert.Equal(t, map[string]float64{"ph": 4.7, "co2": 400}, got[0].Values)
	assert.Equal(t, map[string]float64{"cov": 7}, got[1].Values)
	assert.True(t, got[2].Date.Equal(t1))
	assert.Equal(t, map[string]float64{"ph": 4.5, "co2": 390}, got[2].Values)

	assert.Empty(t, Aggregate(nil))
}

func TestSnapshots_LatestAndLatestN(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	cache := newMemoryCache()
	ingest := NewIngestionUseCase(store, cache, zap.NewNop())
	uc := NewSnapshotUseCase(store, cache, zap.NewNop())
	fermentations := newFermentationUseCase(store)
	device := seedDevice(t, store, "SN-1")
	seedDevice(t, store, "SN-2")
	g := seedGenotype(t, store, "A")

	f, err := fermentations.Create(ctx, fermentationInput(device.ID, entities.FermentationPremium, gq(g.ID, 1)))
	require.NoError(t, err)

	_, err = uc.Latest(ctx, f.ID)
	assert.Equal(t, KindNotFound, KindOf(err), "no data is an explicit absence")
	list, err := uc.LatestN(ctx, f.ID, 5)
	require.NoError(t, err)
	assert.Empty(t, list)

	first := fullReadings()
	second := fullReadings()
	second["ph"] = 5.1
	for _, sub := range []struct {
		serial, ts string
		readings   map[string]any
	}{
		{"SN-1", "2024-06-14T10:00:00Z", first},
		{"SN-1", "2024-06-14T10:10:00Z", second},
		{"SN-2", "2024-06-14T11:00:00Z", first},
	} {
		_, err := ingest.Ingest(ctx, TransportHTTP, ReadingsInput{SerialNumber: sub.serial, Timestamp: sub.ts, Readings: sub.readings})
		require.NoError(t, err)
	}

	t2 := time.Date(2024, 6, 14, 10, 10, 0, 0, time.UTC)
	latest, err := uc.Latest(ctx, f.ID)
	require.NoError(t, err)
	assert.True(t, latest.Date.Equal(t2))
	assert.InDelta(t, 5.1, latest.Values["ph"], 1e-9)
	assert.Len(t, latest.Values, 7)

	cached, ok, err := cache.Get(ctx, device.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, cached.Date.Equal(t2))

	both, err := uc.LatestN(ctx, f.ID, 2)
	require.NoError(t, err)
	require.Len(t, both, 2)
	assert.True(t, both[0].Date.Equal(t2))
	assert.True(t, both[1].Date.Equal(t2.Add(-10*time.Minute)))

	one, err := uc.LatestN(ctx, f.ID, 1)
	require.NoError(t, err)
	require.Len(t, one, 1)

	_, err = uc.LatestN(ctx, f.ID, 0)
	assert.Equal(t, KindValidation, KindOf(err))
	_, err = uc.Latest(ctx, "missing")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestSnapshots_IngestInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	cache := newMemoryCache()
	ingest := NewIngestionUseCase(store, cache, zap.NewNop())
	uc := NewSnapshotUseCase(store, cache, zap.NewNop())
	fermentations := newFermentationUseCase(store)
	device := seedDevice(t, store, "SN-1")
	g := seedGenotype(t, store, "A")
	f, err := fermentations.Create(ctx, fermentationInput(device.ID, entities.FermentationPremium, gq(g.ID, 1)))
	require.NoError(t, err)

	_, err = ingest.Ingest(ctx, TransportHTTP, ReadingsInput{SerialNumber: "SN-1", Timestamp: "2024-06-14T10:00:00Z", Readings: fullReadings()})
	require.NoError(t, err)
	_, err = uc.Latest(ctx, f.ID)
	require.NoError(t, err)

	_, err = ingest.Ingest(ctx, TransportHTTP, ReadingsInput{SerialNumber: "SN-1", Timestamp: "2024-06-14T11:00:00Z", Readings: fullReadings()})
	require.NoError(t, err)
	latest, err := uc.Latest(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, 11, latest.Date.Hour())
}

func TestSnapshots_StaleReadIsNotCachedOverNewerIngest(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	cache := newMemoryCache()
	ingest := NewIngestionUseCase(store, cache, zap.NewNop())
	uc := NewSnapshotUseCase(store, cache, zap.NewNop())
	fermentations := newFermentationUseCase(store)
	device := seedDevice(t, store, "SN-1")
	g := seedGenotype(t, store, "A")
	f, err := fermentations.Create(ctx, fermentationInput(device.ID, entities.FermentationPremium, gq(g.ID, 1)))
	require.NoError(t, err)

	_, err = ingest.Ingest(ctx, TransportHTTP, ReadingsInput{SerialNumber: "SN-1", Timestamp: "2024-06-14T10:00:00Z", Readings: fullReadings()})
	require.NoError(t, err)

	// a newer submission commits between the database read and the cache write
	cache.beforeSet = func() {
		_, err := ingest.Ingest(ctx, TransportHTTP, ReadingsInput{SerialNumber: "SN-1", Timestamp: "2024-06-14T11:00:00Z", Readings: fullReadings()})
		require.NoError(t, err)
	}
	first, err := uc.Latest(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, first.Date.Hour())

	_, ok, err := cache.Get(ctx, device.ID)
	require.NoError(t, err)
	assert.False(t, ok, "the superseded snapshot is not cached")

	latest, err := uc.Latest(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, 11, latest.Date.Hour())
}
