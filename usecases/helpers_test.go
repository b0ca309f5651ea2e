package usecases

import (
	"context"
	"sync"
	"testing"
	"time"

	"cacao-server/entities"
	"cacao-server/repositories"
	"cacao-server/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2024, 6, 14, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) clock { return func() time.Time { return t } }

func newStore(t *testing.T) repositories.Store {
	t.Helper()
	return repositories.NewPgStore(testutil.NewDatabase(t))
}

func newFermentationUseCase(store repositories.Store) *FermentationUseCase {
	uc := NewFermentationUseCase(store, zap.NewNop())
	uc.now = fixedClock(testNow)
	return uc
}

func seedDevice(t *testing.T, store repositories.Store, serial string) *entities.Device {
	t.Helper()
	d := &entities.Device{SerialNumber: serial, Code: "code-" + serial}
	require.NoError(t, store.Devices().Create(context.Background(), d))
	return d
}

func seedGenotype(t *testing.T, store repositories.Store, code string) *entities.Genotype {
	t.Helper()
	g := &entities.Genotype{Name: "Genotype " + code, Code: code}
	require.NoError(t, store.Genotypes().Create(context.Background(), g))
	return g
}

func fermentationInput(deviceID string, ft entities.FermentationType, genotypes ...entities.GenotypeQuantity) FermentationInput {
	return FermentationInput{
		DeviceID:  deviceID,
		StartTime: testNow.Add(-24 * time.Hour),
		Type:      ft,
		Genotypes: genotypes,
	}
}

func gq(id string, quantity float64) entities.GenotypeQuantity {
	return entities.GenotypeQuantity{GenotypeID: id, Quantity: quantity}
}

func countFermentations(t *testing.T, store repositories.Store) int {
	t.Helper()
	list, err := store.Fermentations().GetAll(context.Background())
	require.NoError(t, err)
	return len(list)
}

func countMeasurements(t *testing.T, store repositories.Store) int {
	t.Helper()
	list, err := store.Measurements().List(context.Background(), repositories.MeasurementFilter{})
	require.NoError(t, err)
	return len(list)
}

// memoryCache is a minimal SnapshotCache for tests in this package.
type memoryCache struct {
	mu          sync.Mutex
	entries     map[string]entities.Snapshot
	gens        map[string]int64
	invalidated []string
	// beforeSet runs ahead of every Set, outside the lock.
	beforeSet func()
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]entities.Snapshot{}, gens: map[string]int64{}}
}

func (c *memoryCache) Get(_ context.Context, deviceID string) (*entities.Snapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[deviceID]
	if !ok {
		return nil, false, nil
	}
	return &s, true, nil
}

func (c *memoryCache) Generation(_ context.Context, deviceID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[deviceID], nil
}

func (c *memoryCache) Set(_ context.Context, deviceID string, generation int64, s entities.Snapshot) error {
	if hook := c.beforeSet; hook != nil {
		c.beforeSet = nil
		hook()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[deviceID] != generation {
		return nil
	}
	c.entries[deviceID] = s
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, deviceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, deviceID)
	c.gens[deviceID]++
	c.invalidated = append(c.invalidated, deviceID)
	return nil
}
