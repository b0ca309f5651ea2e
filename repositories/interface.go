package repositories

import (
	"context"

	"cacao-server/entities"
)

// Store groups the repositories over one database handle. Inside
// Transaction every repository handed to fn shares the same transaction.
type Store interface {
	Devices() DeviceRepository
	Sensors() SensorRepository
	Measurements() MeasurementRepository
	Fermentations() FermentationRepository
	Genotypes() GenotypeRepository
	Compositions() CompositionRepository
	Turns() TurnRepository
	Users() UserRepository

	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type DeviceRepository interface {
	Create(ctx context.Context, device *entities.Device) error
	GetByID(ctx context.Context, id string) (*entities.Device, error)
	GetBySerial(ctx context.Context, serial string) (*entities.Device, error)
	GetAll(ctx context.Context) ([]entities.Device, error)
	// Lock reads the device row with an exclusive row lock held until the
	// surrounding transaction ends.
	Lock(ctx context.Context, id string) (*entities.Device, error)
	SerialTaken(ctx context.Context, serial, excludeID string) (bool, error)
	Update(ctx context.Context, device *entities.Device) error
	Delete(ctx context.Context, id string) error
}

type SensorRepository interface {
	Create(ctx context.Context, sensor *entities.Sensor) error
	GetByID(ctx context.Context, id string) (*entities.Sensor, error)
	GetAll(ctx context.Context) ([]entities.Sensor, error)
	GetByDeviceID(ctx context.Context, deviceID string) ([]entities.Sensor, error)
	FindByDeviceAndType(ctx context.Context, deviceID, sensorType string) (*entities.Sensor, error)
	// FindOrCreate returns the device's sensor of the given type, creating it
	// with name when absent. Safe against concurrent callers.
	FindOrCreate(ctx context.Context, deviceID, sensorType, name string) (*entities.Sensor, error)
	Update(ctx context.Context, sensor *entities.Sensor) error
	Delete(ctx context.Context, id string) error
	DeleteByDeviceID(ctx context.Context, deviceID string) error
}

type MeasurementFilter struct {
	SensorID string
	Limit    int
}

type MeasurementRepository interface {
	CreateBatch(ctx context.Context, measurements []entities.Measurement) error
	GetByID(ctx context.Context, id string) (*entities.Measurement, error)
	List(ctx context.Context, filter MeasurementFilter) ([]entities.Measurement, error)
	CountBySensorID(ctx context.Context, sensorID string) (int64, error)
	Update(ctx context.Context, measurement *entities.Measurement) error
	Delete(ctx context.Context, id string) error
	DeleteByDeviceID(ctx context.Context, deviceID string) error
	// LatestRowsForDevice returns every reading of the device's sensors whose
	// timestamp is among the device's `groups` most recent distinct
	// timestamps, newest first.
	LatestRowsForDevice(ctx context.Context, deviceID string, groups int) ([]entities.MeasurementRow, error)
}

type FermentationRepository interface {
	Create(ctx context.Context, fermentation *entities.Fermentation) error
	GetByID(ctx context.Context, id string) (*entities.Fermentation, error)
	Lock(ctx context.Context, id string) (*entities.Fermentation, error)
	GetAll(ctx context.Context) ([]entities.Fermentation, error)
	GetByDeviceID(ctx context.Context, deviceID string) ([]entities.Fermentation, error)
	// FindActiveByDevice returns the device's active fermentation other than
	// excludeID, or nil when there is none.
	FindActiveByDevice(ctx context.Context, deviceID, excludeID string) (*entities.Fermentation, error)
	CountByDevice(ctx context.Context, deviceID string) (int64, error)
	TitlesWithPrefix(ctx context.Context, prefix string) ([]string, error)
	CodeTaken(ctx context.Context, code, excludeID string) (bool, error)
	Update(ctx context.Context, fermentation *entities.Fermentation) error
	Delete(ctx context.Context, id string) error
}

type GenotypeRepository interface {
	Create(ctx context.Context, genotype *entities.Genotype) error
	GetByID(ctx context.Context, id string) (*entities.Genotype, error)
	GetAll(ctx context.Context) ([]entities.Genotype, error)
	// MissingIDs returns the ids among ids with no genotype row.
	MissingIDs(ctx context.Context, ids []string) ([]string, error)
	CodeTaken(ctx context.Context, code, excludeID string) (bool, error)
	Update(ctx context.Context, genotype *entities.Genotype) error
	Delete(ctx context.Context, id string) error
}

// CompositionRepository manages the fermentation ↔ genotype join rows.
type CompositionRepository interface {
	ListShares(ctx context.Context, fermentationID string) ([]entities.GenotypeShare, error)
	ListSharesFor(ctx context.Context, fermentationIDs []string) (map[string][]entities.GenotypeShare, error)
	Attach(ctx context.Context, fermentationID string, items []entities.GenotypeQuantity) error
	Detach(ctx context.Context, fermentationID string, genotypeIDs []string) error
	UpdateQuantity(ctx context.Context, fermentationID, genotypeID string, quantity float64) (bool, error)
	// Replace makes the fermentation's genotype set exactly items.
	Replace(ctx context.Context, fermentationID string, items []entities.GenotypeQuantity) error
	DeleteByFermentationID(ctx context.Context, fermentationID string) error
	CountByGenotypeID(ctx context.Context, genotypeID string) (int64, error)
}

type TurnRepository interface {
	Create(ctx context.Context, turn *entities.Turn) error
	GetByID(ctx context.Context, id string) (*entities.Turn, error)
	GetAll(ctx context.Context) ([]entities.Turn, error)
	GetByFermentationID(ctx context.Context, fermentationID string) ([]entities.Turn, error)
	Update(ctx context.Context, turn *entities.Turn) error
	Delete(ctx context.Context, id string) error
	DeleteByFermentationID(ctx context.Context, fermentationID string) error
}

type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id string) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
}
