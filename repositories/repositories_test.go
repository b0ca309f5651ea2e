package repositories

import (
	"context"
	"testing"
	"time"

	"cacao-server/entities"
	"cacao-server/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDevice(t *testing.T, store Store, serial string) *entities.Device {
	t.Helper()
	d := &entities.Device{SerialNumber: serial, Code: "BOX-" + serial, Status: entities.StatusActive}
	require.NoError(t, store.Devices().Create(context.Background(), d))
	return d
}

func TestSensors_FindOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewPgStore(testutil.NewDatabase(t))
	device := seedDevice(t, store, "SN-1")

	first, err := store.Sensors().FindOrCreate(ctx, device.ID, "ph", "pH")
	require.NoError(t, err)
	second, err := store.Sensors().FindOrCreate(ctx, device.ID, "ph", "other name")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "pH", second.Name)

	all, err := store.Sensors().GetByDeviceID(ctx, device.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMeasurements_LatestRowsForDevice(t *testing.T) {
	ctx := context.Background()
	store := NewPgStore(testutil.NewDatabase(t))
	device := seedDevice(t, store, "SN-1")
	other := seedDevice(t, store, "SN-2")

	ph, err := store.Sensors().FindOrCreate(ctx, device.ID, "ph", "pH")
	require.NoError(t, err)
	co2, err := store.Sensors().FindOrCreate(ctx, device.ID, "co2", "CO2")
	require.NoError(t, err)
	foreign, err := store.Sensors().FindOrCreate(ctx, other.ID, "ph", "pH")
	require.NoError(t, err)

	t1 := time.Date(2024, 6, 14, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(5 * time.Minute)
	t3 := t2.Add(5 * time.Minute)
	require.NoError(t, store.Measurements().CreateBatch(ctx, []entities.Measurement{
		{SensorID: ph.ID, TakenAt: t1, Value: 5.1, MeasurementType: "ph", Unit: "pH"},
		{SensorID: co2.ID, TakenAt: t1, Value: 400, MeasurementType: "co2", Unit: "ppm"},
		{SensorID: ph.ID, TakenAt: t2, Value: 4.9, MeasurementType: "ph", Unit: "pH"},
		{SensorID: co2.ID, TakenAt: t2, Value: 405, MeasurementType: "co2", Unit: "ppm"},
		{SensorID: foreign.ID, TakenAt: t3, Value: 7, MeasurementType: "ph", Unit: "pH"},
	}))

	rows, err := store.Measurements().LatestRowsForDevice(ctx, device.ID, 1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.True(t, row.TakenAt.Equal(t2), "got %s", row.TakenAt)
	}

	rows, err = store.Measurements().LatestRowsForDevice(ctx, device.ID, 5)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
	assert.True(t, rows[0].TakenAt.Equal(t2))
	assert.True(t, rows[3].TakenAt.Equal(t1))

	rows, err = store.Measurements().LatestRowsForDevice(ctx, "missing", 5)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCompositions_Replace(t *testing.T) {
	ctx := context.Background()
	store := NewPgStore(testutil.NewDatabase(t))
	device := seedDevice(t, store, "SN-1")

	var ids []string
	for _, code := range []string{"G1", "G2", "G3"} {
		g := &entities.Genotype{Name: code, Code: code}
		require.NoError(t, store.Genotypes().Create(ctx, g))
		ids = append(ids, g.ID)
	}
	f := &entities.Fermentation{
		DeviceID:  device.ID,
		StartTime: time.Date(2024, 6, 14, 8, 0, 0, 0, time.UTC),
		Status:    entities.StatusActive,
		Title:     "2024-001",
		Type:      entities.FermentationSpecial,
	}
	require.NoError(t, store.Fermentations().Create(ctx, f))
	require.NoError(t, store.Compositions().Attach(ctx, f.ID, []entities.GenotypeQuantity{
		{GenotypeID: ids[0], Quantity: 1},
		{GenotypeID: ids[1], Quantity: 2},
	}))

	require.NoError(t, store.Compositions().Replace(ctx, f.ID, []entities.GenotypeQuantity{
		{GenotypeID: ids[1], Quantity: 20},
		{GenotypeID: ids[2], Quantity: 30},
	}))

	shares, err := store.Compositions().ListShares(ctx, f.ID)
	require.NoError(t, err)
	got := map[string]float64{}
	for _, s := range shares {
		got[s.ID] = s.Quantity
	}
	assert.Equal(t, map[string]float64{ids[1]: 20, ids[2]: 30}, got)

	n, err := store.Compositions().CountByGenotypeID(ctx, ids[0])
	require.NoError(t, err)
	assert.Zero(t, n)

	missing, err := store.Genotypes().MissingIDs(ctx, []string{ids[0], "nope"})
	require.NoError(t, err)
	assert.Equal(t, []string{"nope"}, missing)
}

func TestStore_TransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewPgStore(testutil.NewDatabase(t))

	err := store.Transaction(ctx, func(tx Store) error {
		seedDevice(t, tx, "SN-TX")
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	_, err = store.Devices().GetBySerial(ctx, "SN-TX")
	assert.ErrorIs(t, err, ErrNotFound)
}
