package usecases

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"cacao-server/entities"
	"cacao-server/metrics"
	"cacao-server/repositories"

	"go.uber.org/zap"
)

// Transport names used in logs and metrics.
const (
	TransportHTTP = "http"
	TransportWS   = "ws"
	TransportMQTT = "mqtt"
)

// timestampLayouts are tried in order; zone-less layouts are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ReadingsInput is the device wire format shared by every transport.
type ReadingsInput struct {
	SerialNumber string         `json:"serialNumber" validate:"required,max=64"`
	Timestamp    string         `json:"timestampEnvio" validate:"required"`
	Readings     map[string]any `json:"lecturas" validate:"required"`
}

type IngestResult struct {
	SerialNumber string    `json:"serialNumber"`
	Timestamp    time.Time `json:"timestampEnvio"`
	DeviceID     string    `json:"device_id"`
	Measurements int       `json:"measurements"`
}

// IngestionUseCase normalizes a device submission into one measurement row
// per reading, atomically.
type IngestionUseCase struct {
	store repositories.Store
	cache SnapshotCache
	log   *zap.Logger
}

func NewIngestionUseCase(store repositories.Store, cache SnapshotCache, log *zap.Logger) *IngestionUseCase {
	return &IngestionUseCase{store: store, cache: cache, log: log}
}

func (uc *IngestionUseCase) Ingest(ctx context.Context, transport string, in ReadingsInput) (*IngestResult, error) {
	res, err := uc.ingest(ctx, in)
	if err != nil {
		metrics.IngestFailures.WithLabelValues(transport, string(KindOf(err))).Inc()
		if KindOf(err) == KindInternal {
			uc.log.Error("ingestion failed", zap.String("transport", transport), zap.String("serial", in.SerialNumber), zap.Error(err))
		} else {
			uc.log.Info("ingestion rejected", zap.String("transport", transport), zap.String("serial", in.SerialNumber), zap.Error(err))
		}
		return nil, err
	}
	metrics.ReadingsIngested.WithLabelValues(transport).Add(float64(res.Measurements))

	if uc.cache != nil {
		if err := uc.cache.Invalidate(ctx, res.DeviceID); err != nil {
			uc.log.Warn("snapshot cache invalidation failed", zap.String("device_id", res.DeviceID), zap.Error(err))
		}
	}
	return res, nil
}

// DeviceBySerial resolves a registered device, used to admit streaming
// connections before any readings arrive.
func (uc *IngestionUseCase) DeviceBySerial(ctx context.Context, serial string) (*entities.Device, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return nil, InvalidField("serial", "serial is required")
	}
	device, err := uc.store.Devices().GetBySerial(ctx, serial)
	if err != nil {
		return nil, lookup(err, "device")
	}
	return device, nil
}

func (uc *IngestionUseCase) ingest(ctx context.Context, in ReadingsInput) (*IngestResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	takenAt, err := ParseTimestamp(in.Timestamp)
	if err != nil {
		return nil, InvalidField("timestampEnvio", err.Error())
	}
	values, err := normalizeReadings(in.Readings)
	if err != nil {
		return nil, err
	}

	var res *IngestResult
	err = uc.store.Transaction(ctx, func(tx repositories.Store) error {
		device, err := tx.Devices().GetBySerial(ctx, in.SerialNumber)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return InvalidField("serialNumber", "unknown device serial number")
			}
			return err
		}

		rows := make([]entities.Measurement, 0, len(values))
		for _, kind := range entities.ReadingKinds {
			sensor, err := tx.Sensors().FindOrCreate(ctx, device.ID, kind.Type, kind.SensorName)
			if err != nil {
				return err
			}
			rows = append(rows, entities.Measurement{
				SensorID:        sensor.ID,
				TakenAt:         takenAt,
				Value:           values[kind.Label],
				MeasurementType: kind.Type,
				Unit:            kind.Unit,
			})
		}
		if err := tx.Measurements().CreateBatch(ctx, rows); err != nil {
			return err
		}
		res = &IngestResult{
			SerialNumber: device.SerialNumber,
			Timestamp:    takenAt,
			DeviceID:     device.ID,
			Measurements: len(rows),
		}
		return nil
	})
	if err != nil {
		return nil, wrap(err)
	}
	return res, nil
}

// ParseTimestamp reads a device timestamp and normalizes it to UTC whole
// seconds, the resolution snapshots are grouped on.
func ParseTimestamp(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC().Truncate(time.Second), nil
		}
	}
	return time.Time{}, fmt.Errorf("timestampEnvio %q is not a valid date-time", v)
}

// normalizeReadings checks that every known label is present and numeric and
// that no unknown label was sent. All problems are reported together.
func normalizeReadings(readings map[string]any) (map[string]float64, error) {
	values := make(map[string]float64, len(readings))
	var fields []FieldError

	for _, kind := range entities.ReadingKinds {
		raw, ok := readings[kind.Label]
		if !ok || raw == nil {
			fields = append(fields, FieldError{Field: "lecturas." + kind.Label, Message: kind.Label + " is required"})
			continue
		}
		v, ok := toNumber(raw)
		if !ok {
			fields = append(fields, FieldError{Field: "lecturas." + kind.Label, Message: kind.Label + " must be numeric"})
			continue
		}
		values[kind.Label] = v
	}

	var unknown []string
	for label := range readings {
		if _, ok := entities.LookupReading(label); !ok {
			unknown = append(unknown, label)
		}
	}
	sort.Strings(unknown)
	for _, label := range unknown {
		fields = append(fields, FieldError{Field: "lecturas." + label, Message: "unknown reading " + label})
	}

	if len(fields) > 0 {
		return nil, Invalid("invalid readings", fields...)
	}
	return values, nil
}

func toNumber(raw any) (float64, bool) {
	var v float64
	switch n := raw.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
