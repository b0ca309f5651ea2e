package repositories

import (
	"context"
	"errors"

	"cacao-server/db"

	"gorm.io/gorm"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("record not found")

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

type pgStore struct {
	db db.Database
}

// NewPgStore builds a Store on top of database. The same code runs against
// Postgres in production and SQLite in tests.
func NewPgStore(database db.Database) Store {
	return &pgStore{db: database}
}

func (s *pgStore) Devices() DeviceRepository             { return NewDevicePgRepository(s.db) }
func (s *pgStore) Sensors() SensorRepository             { return NewSensorPgRepository(s.db) }
func (s *pgStore) Measurements() MeasurementRepository   { return NewMeasurementPgRepository(s.db) }
func (s *pgStore) Fermentations() FermentationRepository { return NewFermentationPgRepository(s.db) }
func (s *pgStore) Genotypes() GenotypeRepository         { return NewGenotypePgRepository(s.db) }
func (s *pgStore) Compositions() CompositionRepository   { return NewCompositionPgRepository(s.db) }
func (s *pgStore) Turns() TurnRepository                 { return NewTurnPgRepository(s.db) }
func (s *pgStore) Users() UserRepository                 { return NewUserPgRepository(s.db) }

func (s *pgStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.Transaction(ctx, func(tx db.Database) error {
		return fn(&pgStore{db: tx})
	})
}
