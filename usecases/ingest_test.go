package usecases

import (
	"context"
	"testing"
	"time"

	"cacao-server/entities"
	"cacao-server/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fullReadings() map[string]any {
	return map[string]any{
		"temperatura":       27.5,
		"humedad_relativa":  81.0,
		"humedad":           55.2,
		"ph":                4.6,
		"cov":               120.0,
		"co2":               410.0,
		"temperatura-cacao": 45.1,
	}
}

func TestIngest_WritesOneRowPerReading(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	cache := newMemoryCache()
	uc := NewIngestionUseCase(store, cache, zap.NewNop())
	device := seedDevice(t, store, "SN-1")

	res, err := uc.Ingest(ctx, TransportHTTP, ReadingsInput{
		SerialNumber: "SN-1",
		Timestamp:    "2024-06-14T10:00:00.750-05:00",
		Readings:     fullReadings(),
	})
	require.NoError(t, err)

	want := time.Date(2024, 6, 14, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, 7, res.Measurements)
	assert.Equal(t, device.ID, res.DeviceID)
	assert.True(t, res.Timestamp.Equal(want))
	assert.Equal(t, []string{device.ID}, cache.invalidated)

	rows, err := store.Measurements().List(ctx, repositories.MeasurementFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 7)

	byType := map[string]entities.Measurement{}
	for _, m := range rows {
		assert.True(t, m.TakenAt.Equal(want), "all rows share the submitted timestamp")
		byType[m.MeasurementType] = m
	}
	for _, kind := range entities.ReadingKinds {
		m, ok := byType[kind.Type]
		require.True(t, ok, kind.Type)
		assert.Equal(t, kind.Unit, m.Unit)
		assert.InDelta(t, fullReadings()[kind.Label].(float64), m.Value, 1e-9)
	}

	// a second submission reuses the sensors
	_, err = uc.Ingest(ctx, TransportWS, ReadingsInput{SerialNumber: "SN-1", Timestamp: "2024-06-14 10:05:00", Readings: fullReadings()})
	require.NoError(t, err)
	sensors, err := store.Sensors().GetByDeviceID(ctx, device.ID)
	require.NoError(t, err)
	assert.Len(t, sensors, 7)
	assert.Equal(t, 14, countMeasurements(t, store))
}

func TestIngest_UnknownSerialWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	uc := NewIngestionUseCase(store, nil, zap.NewNop())
	seedDevice(t, store, "SN-1")

	_, err := uc.Ingest(ctx, TransportHTTP, ReadingsInput{
		SerialNumber: "SN-404",
		Timestamp:    "2024-06-14T10:00:00Z",
		Readings:     fullReadings(),
	})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, 0, countMeasurements(t, store))

	sensors, err := store.Sensors().GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, sensors)
}

func TestIngest_RejectsBadReadings(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	uc := NewIngestionUseCase(store, nil, zap.NewNop())
	seedDevice(t, store, "SN-1")

	missing := fullReadings()
	delete(missing, "ph")
	textual := fullReadings()
	textual["co2"] = "high"
	unknown := fullReadings()
	unknown["lux"] = 300.0
	nullValue := fullReadings()
	nullValue["cov"] = nil

	tests := []struct {
		name      string
		timestamp string
		readings  map[string]any
		field     string
	}{
		{"missing label", "2024-06-14T10:00:00Z", missing, "lecturas.ph"},
		{"non numeric", "2024-06-14T10:00:00Z", textual, "lecturas.co2"},
		{"unknown label", "2024-06-14T10:00:00Z", unknown, "lecturas.lux"},
		{"null value", "2024-06-14T10:00:00Z", nullValue, "lecturas.cov"},
		{"bad timestamp", "yesterday", fullReadings(), "timestampEnvio"},
		{"no readings", "2024-06-14T10:00:00Z", nil, "lecturas"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.Ingest(ctx, TransportHTTP, ReadingsInput{SerialNumber: "SN-1", Timestamp: tt.timestamp, Readings: tt.readings})
			require.Error(t, err)
			var ue *Error
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, KindValidation, ue.Kind)
			var fields []string
			for _, f := range ue.Fields {
				fields = append(fields, f.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
	assert.Equal(t, 0, countMeasurements(t, store))
}

func TestIngest_AcceptsNumericStrings(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	uc := NewIngestionUseCase(store, nil, zap.NewNop())
	seedDevice(t, store, "SN-1")

	readings := fullReadings()
	readings["ph"] = " 4.25 "
	_, err := uc.Ingest(ctx, TransportMQTT, ReadingsInput{SerialNumber: "SN-1", Timestamp: "2024-06-14T10:00:00", Readings: readings})
	require.NoError(t, err)

	sensor, err := store.Sensors().GetAll(ctx)
	require.NoError(t, err)
	var phID string
	for _, s := range sensor {
		if s.Type == "ph" {
			phID = s.ID
		}
	}
	rows, err := store.Measurements().List(ctx, repositories.MeasurementFilter{SensorID: phID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 4.25, rows[0].Value, 1e-9)
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 6, 14, 10, 0, 0, 0, time.UTC)
	for _, in := range []string{
		"2024-06-14T10:00:00Z",
		"2024-06-14T10:00:00.999Z",
		"2024-06-14T12:00:00+02:00",
		"2024-06-14T10:00:00",
		"2024-06-14 10:00:00",
	} {
		got, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, got.Equal(want), in)
		assert.Equal(t, time.UTC, got.Location())
	}

	_, err := ParseTimestamp("14/06/2024")
	assert.Error(t, err)
}

func TestIngest_DeviceBySerial(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	uc := NewIngestionUseCase(store, nil, zap.NewNop())
	device := seedDevice(t, store, "SN-WS")

	got, err := uc.DeviceBySerial(ctx, " SN-WS ")
	require.NoError(t, err)
	assert.Equal(t, device.ID, got.ID)

	_, err = uc.DeviceBySerial(ctx, "SN-NONE")
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = uc.DeviceBySerial(ctx, "")
	assert.Equal(t, KindValidation, KindOf(err))
}
