package services

import (
	"context"
	"testing"
	"time"

	"cacao-server/entities"
	"cacao-server/repositories"
	"cacao-server/testutil"
	"cacao-server/usecases"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newIngestor(t *testing.T) (*MQTTIngestor, repositories.Store) {
	t.Helper()
	store := repositories.NewPgStore(testutil.NewDatabase(t))
	uc := usecases.NewIngestionUseCase(store, nil, zap.NewNop())
	return NewMQTTIngestor(uc, time.Second, zap.NewNop()), store
}

const payload = `{
	"timestampEnvio": "2024-06-14T10:00:00Z",
	"lecturas": {
		"temperatura": 27.5, "humedad_relativa": 81, "humedad": 55.2, "ph": 4.6,
		"cov": 120, "co2": 410, "temperatura-cacao": 45.1
	}
}`

func TestSerialFromTopic(t *testing.T) {
	assert.Equal(t, "SN-1", SerialFromTopic("cacao/devices/SN-1/readings"))
	assert.Equal(t, "SN-2", SerialFromTopic("devices/SN-2"))
	assert.Equal(t, "", SerialFromTopic("cacao/readings"))
	assert.Equal(t, "", SerialFromTopic("cacao/devices"))
}

func TestMQTTIngestor_HandleMessage(t *testing.T) {
	ctx := context.Background()
	mi, store := newIngestor(t)
	require.NoError(t, store.Devices().Create(ctx, &entities.Device{SerialNumber: "SN-MQ", Code: "BOX-1", Status: entities.StatusActive}))

	require.NoError(t, mi.HandleMessage(ctx, "cacao/devices/SN-MQ/readings", []byte(payload)))

	rows, err := store.Measurements().List(ctx, repositories.MeasurementFilter{})
	require.NoError(t, err)
	assert.Len(t, rows, 7)
}

func TestMQTTIngestor_RejectsBadMessages(t *testing.T) {
	ctx := context.Background()
	mi, store := newIngestor(t)

	assert.Error(t, mi.HandleMessage(ctx, "cacao/devices/SN-MQ/readings", []byte("not json")))

	err := mi.HandleMessage(ctx, "cacao/devices/SN-UNKNOWN/readings", []byte(payload))
	assert.Equal(t, usecases.KindValidation, usecases.KindOf(err))

	rows, err := store.Measurements().List(ctx, repositories.MeasurementFilter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}
