package usecases

import (
	"context"
	"errors"
	"strings"

	"cacao-server/entities"
	"cacao-server/repositories"

	"go.uber.org/zap"
)

type DeviceInput struct {
	SerialNumber string          `json:"serial_number" validate:"required,max=64"`
	Code         string          `json:"code" validate:"required,max=64"`
	Status       entities.Status `json:"status"`
}

type DeviceDetail struct {
	entities.Device
	Sensors       []entities.Sensor       `json:"sensors"`
	Fermentations []entities.Fermentation `json:"fermentations"`
}

type SensorInput struct {
	DeviceID string `json:"device_id" validate:"required"`
	Type     string `json:"type" validate:"required,max=64"`
	Name     string `json:"name" validate:"required,max=128"`
}

type SensorDetail struct {
	entities.Sensor
	Measurements []entities.Measurement `json:"measurements"`
}

// sensorDetailMeasurements is how many recent readings a sensor detail shows.
const sensorDetailMeasurements = 100

type DeviceUseCase struct {
	store repositories.Store
	log   *zap.Logger
}

func NewDeviceUseCase(store repositories.Store, log *zap.Logger) *DeviceUseCase {
	return &DeviceUseCase{store: store, log: log}
}

// CreateDevice creates a new device
func (uc *DeviceUseCase) CreateDevice(ctx context.Context, in DeviceInput) (*entities.Device, error) {
	in.SerialNumber = strings.TrimSpace(in.SerialNumber)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := checkStatus("status", in.Status); err != nil {
		return nil, err
	}
	if err := uc.checkSerial(ctx, in.SerialNumber, ""); err != nil {
		return nil, err
	}
	device := &entities.Device{SerialNumber: in.SerialNumber, Code: in.Code, Status: in.Status.OrDefault()}
	if err := uc.store.Devices().Create(ctx, device); err != nil {
		return nil, wrap(err)
	}
	return device, nil
}

// GetDevice returns the device with its sensors and fermentation history
func (uc *DeviceUseCase) GetDevice(ctx context.Context, id string) (*DeviceDetail, error) {
	device, err := uc.store.Devices().GetByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "device")
	}
	sensors, err := uc.store.Sensors().GetByDeviceID(ctx, id)
	if err != nil {
		return nil, wrap(err)
	}
	fermentations, err := uc.store.Fermentations().GetByDeviceID(ctx, id)
	if err != nil {
		return nil, wrap(err)
	}
	return &DeviceDetail{Device: *device, Sensors: nonNil(sensors), Fermentations: nonNil(fermentations)}, nil
}

func (uc *DeviceUseCase) GetAllDevices(ctx context.Context) ([]entities.Device, error) {
	devices, err := uc.store.Devices().GetAll(ctx)
	return nonNil(devices), wrap(err)
}

func (uc *DeviceUseCase) UpdateDevice(ctx context.Context, id string, in DeviceInput) (*entities.Device, error) {
	in.SerialNumber = strings.TrimSpace(in.SerialNumber)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := checkStatus("status", in.Status); err != nil {
		return nil, err
	}
	existing, err := uc.store.Devices().GetByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "device")
	}
	if err := uc.checkSerial(ctx, in.SerialNumber, id); err != nil {
		return nil, err
	}
	existing.SerialNumber = in.SerialNumber
	existing.Code = in.Code
	existing.Status = in.Status.OrDefault()
	if err := uc.store.Devices().Update(ctx, existing); err != nil {
		return nil, wrap(err)
	}
	return existing, nil
}

// UpdateDeviceStatus sets the device status; a missing status means active.
func (uc *DeviceUseCase) UpdateDeviceStatus(ctx context.Context, id string, status entities.Status) (*entities.Device, error) {
	if err := checkStatus("status", status); err != nil {
		return nil, err
	}
	existing, err := uc.store.Devices().GetByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "device")
	}
	existing.Status = status.OrDefault()
	if err := uc.store.Devices().Update(ctx, existing); err != nil {
		return nil, wrap(err)
	}
	return existing, nil
}

// DeleteDevice removes a device with its sensors and their measurements. A
// device with fermentation history cannot be deleted.
func (uc *DeviceUseCase) DeleteDevice(ctx context.Context, id string) error {
	err := uc.store.Transaction(ctx, func(tx repositories.Store) error {
		if _, err := tx.Devices().Lock(ctx, id); err != nil {
			return lookup(err, "device")
		}
		n, err := tx.Fermentations().CountByDevice(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return Conflict("device has %d fermentation(s)", n)
		}
		if err := tx.Measurements().DeleteByDeviceID(ctx, id); err != nil {
			return err
		}
		if err := tx.Sensors().DeleteByDeviceID(ctx, id); err != nil {
			return err
		}
		return tx.Devices().Delete(ctx, id)
	})
	return wrap(err)
}

func (uc *DeviceUseCase) checkSerial(ctx context.Context, serial, excludeID string) error {
	taken, err := uc.store.Devices().SerialTaken(ctx, serial, excludeID)
	if err != nil {
		return wrap(err)
	}
	if taken {
		return InvalidField("serial_number", "serial_number is already in use")
	}
	return nil
}

// ============= Sensor Use Cases =============

func (uc *DeviceUseCase) CreateSensor(ctx context.Context, in SensorInput) (*entities.Sensor, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if _, err := uc.store.Devices().GetByID(ctx, in.DeviceID); err != nil {
		return nil, lookup(err, "device")
	}
	if err := uc.checkSensorType(ctx, in.DeviceID, in.Type, ""); err != nil {
		return nil, err
	}
	sensor := &entities.Sensor{DeviceID: in.DeviceID, Type: in.Type, Name: in.Name}
	if err := uc.store.Sensors().Create(ctx, sensor); err != nil {
		return nil, wrap(err)
	}
	return sensor, nil
}

// GetSensor returns the sensor with its most recent measurements
func (uc *DeviceUseCase) GetSensor(ctx context.Context, id string) (*SensorDetail, error) {
	sensor, err := uc.store.Sensors().GetByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "sensor")
	}
	measurements, err := uc.store.Measurements().List(ctx, repositories.MeasurementFilter{
		SensorID: id,
		Limit:    sensorDetailMeasurements,
	})
	if err != nil {
		return nil, wrap(err)
	}
	return &SensorDetail{Sensor: *sensor, Measurements: nonNil(measurements)}, nil
}

func (uc *DeviceUseCase) GetAllSensors(ctx context.Context) ([]entities.Sensor, error) {
	sensors, err := uc.store.Sensors().GetAll(ctx)
	return nonNil(sensors), wrap(err)
}

func (uc *DeviceUseCase) GetSensorsByDeviceID(ctx context.Context, deviceID string) ([]entities.Sensor, error) {
	if _, err := uc.store.Devices().GetByID(ctx, deviceID); err != nil {
		return nil, lookup(err, "device")
	}
	sensors, err := uc.store.Sensors().GetByDeviceID(ctx, deviceID)
	return nonNil(sensors), wrap(err)
}

func (uc *DeviceUseCase) UpdateSensor(ctx context.Context, id string, in SensorInput) (*entities.Sensor, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	existing, err := uc.store.Sensors().GetByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "sensor")
	}
	if _, err := uc.store.Devices().GetByID(ctx, in.DeviceID); err != nil {
		return nil, lookup(err, "device")
	}
	if err := uc.checkSensorType(ctx, in.DeviceID, in.Type, id); err != nil {
		return nil, err
	}
	existing.DeviceID = in.DeviceID
	existing.Type = in.Type
	existing.Name = in.Name
	if err := uc.store.Sensors().Update(ctx, existing); err != nil {
		return nil, wrap(err)
	}
	return existing, nil
}

// DeleteSensor removes a sensor without measurements.
func (uc *DeviceUseCase) DeleteSensor(ctx context.Context, id string) error {
	if _, err := uc.store.Sensors().GetByID(ctx, id); err != nil {
		return lookup(err, "sensor")
	}
	n, err := uc.store.Measurements().CountBySensorID(ctx, id)
	if err != nil {
		return wrap(err)
	}
	if n > 0 {
		return Conflict("sensor has %d measurement(s)", n)
	}
	return wrap(uc.store.Sensors().Delete(ctx, id))
}

func (uc *DeviceUseCase) checkSensorType(ctx context.Context, deviceID, sensorType, excludeID string) error {
	other, err := uc.store.Sensors().FindByDeviceAndType(ctx, deviceID, sensorType)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil
	}
	if err != nil {
		return wrap(err)
	}
	if other.ID != excludeID {
		return InvalidField("type", "device already has a sensor of this type")
	}
	return nil
}
