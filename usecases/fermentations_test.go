package usecases

import (
	"context"
	"sync"
	"testing"
	"time"

	"cacao-server/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFermentationCreate(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	uc := newFermentationUseCase(store)
	device := seedDevice(t, store, "SN-1")
	g1 := seedGenotype(t, store, "CCN-51")
	g2 := seedGenotype(t, store, "ICS-95")

	got, err := uc.Create(ctx, fermentationInput(device.ID, entities.FermentationSpecial, gq(g1.ID, 120.5), gq(g2.ID, 30)))
	require.NoError(t, err)

	assert.Equal(t, "2024-001", got.Title)
	assert.Equal(t, entities.StatusActive, got.Status)
	assert.Nil(t, got.EndTime)
	require.NotNil(t, got.Device)
	assert.Equal(t, "SN-1", got.Device.SerialNumber)
	assert.Len(t, got.Genotypes, 2)
	assert.InDelta(t, 150.5, got.TotalQuantity, 0.001)
	assert.Empty(t, got.Turns)
}

func TestFermentationCreate_DeviceExclusivity(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	uc := newFermentationUseCase(store)
	device := seedDevice(t, store, "SN-1")
	g := seedGenotype(t, store, "CCN-51")

	_, err := uc.Create(ctx, fermentationInput(device.ID, entities.FermentationPremium, gq(g.ID, 1)))
	require.NoError(t, err)

	_, err = uc.Create(ctx, fermentationInput(device.ID, entities.FermentationPremium, gq(g.ID, 1)))
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, 1, countFermentations(t, store))

	// an inactive batch does not compete for the device
	in := fermentationInput(device.ID, entities.FermentationPremium, gq(g.ID, 1))
	in.Status = entities.StatusInactive
	closed, err := uc.Create(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, closed.EndTime)
	assert.True(t, closed.EndTime.Equal(testNow))
}

// The test database allows a single connection, so these creates are
// serialized by SQLite and the row locks taken on Postgres are not reached.
// This checks the exclusivity outcome, not the locking path.
func TestFermentationCreate_ConcurrentActiveOnSameDevice(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	uc := newFermentationUseCase(store)
	device := seedDevice(t, store, "SN-1")
	g := seedGenotype(t, store, "CCN-51")

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.Create(ctx, fermentationInput(device.ID, entities.FermentationPremium, gq(g.ID, 1)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case KindOf(err) == KindConflict:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, conflicts)
	list, err := store.Fermentations().GetByDeviceID(ctx, device.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, entities.StatusActive, list[0].Status)
}

func TestFermentationCreate_CompositionRules(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	uc := newFermentationUseCase(store)
	device := seedDevice(t, store, "SN-1")
	g1 := seedGenotype(t, store, "CCN-51")
	g2 := seedGenotype(t, store, "ICS-95")

	tests := []struct {
		name string
		in   FermentationInput
	}{
		{"premium with two", fermentationInput(device.ID, entities.FermentationPremium, gq(g1.ID, 1), gq(g2.ID, 1))},
		{"premium with none", fermentationInput(device.ID, entities.FermentationPremium)},
		{"special with none", fermentationInput(device.ID, entities.FermentationSpecial)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.Create(ctx, tt.in)
			require.Error(t, err)
			assert.Equal(t, KindConflict, KindOf(err))
			assert.Equal(t, 0, countFermentations(t, store))
		})
	}
}

func TestFermentationCreate_Rejections(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	uc := newFermentationUseCase(store)
	device := seedDevice(t, store, "SN-1")
	g := seedGenotype(t, store, "CCN-51")

	_, err := uc.Create(ctx, fermentationInput("missing", entities.FermentationPremium, gq(g.ID, 1)))
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = uc.Create(ctx, fermentationInput(device.ID, entities.FermentationPremium, gq("missing", 1)))
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = uc.Create(ctx, fermentationInput(device.ID, "Regular", gq(g.ID, 1)))
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = uc.Create(ctx, fermentationInput(device.ID, entities.FermentationPremium, gq(g.ID, -1)))
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = uc.Create(ctx, FermentationInput{Type: entities.FermentationPremium})
	assert.Equal(t, KindValidation, KindOf(err))

	assert.Equal(t, 0, countFermentations(t, store))
}

func TestFermentationCreate_UniqueCode(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	uc := newFermentationUseCase(store)
	d1 := seedDevice(t, store, "SN-1")
	d2 := seedDevice(t, store, "SN-2")
	g := seedGenotype(t, store, "CCN-51")

	code := "LOT-7"
	in := fermentationInput(d1.ID, entities.FermentationPremium, gq(g.ID, 1))
	in.Code = &code
	_, err := uc.Create(ctx, in)
	require.NoError(t, err)

	in.DeviceID = d2.ID
	_, err = uc.Create(ctx, in)
	assert.Equal(t, KindValidation, KindOf(err))

	blank := "  "
	in.Code = &blank
	got, err := uc.Create(ctx, in)
	require.NoError(t, err)
	assert.Nil(t, got.Code)
}

func TestFermentationCreate_TitleSequence(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	uc := newFermentationUseCase(store)
	device := seedDevice(t, store, "SN-1")
	g := seedGenotype(t, store, "CCN-51")

	var titles []string
	for i := 0; i < 3; i++ {
		in := fermentationInput(device.ID, entities.FermentationPremium, gq(g.ID, 1))
		in.Status = entities.StatusInactive
		f, err := uc.Create(ctx, in)
		require.NoError(t, err)
		titles = append(titles, f.Title)
	}
	assert.Equal(t, []string{"2024-001", "2024-002", "2024-003"}, titles)

	uc.now = fixedClock(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	f, err := uc.Create(ctx, fermentationInput(device.ID, entities.FermentationPremium, gq(g.ID, 1)))
	require.NoError(t, err)
	assert.Equal(t, "2025-001", f.Title)

	in := fermentationInput(device.ID, entities.FermentationPremium, gq(g.ID, 1))
	in.Status = entities.StatusInactive
	in.Title = "2024-002"
	_, err = uc.Create(ctx, in)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestFermentationUpdate(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	uc := newFermentationUseCase(store)
	device := seedDevice(t, store, "SN-1")
	g1 := seedGenotype(t, store, "CCN-51")
	g2 := seedGenotype(t, store, "ICS-95")
	g3 := seedGenotype(t, store, "TSH-565")

	f, err := uc.Create(ctx, fermentationInput(device.ID, entities.FermentationSpecial, gq(g1.ID, 10), gq(g2.ID, 20)))
	require.NoError(t, err)

	note := "second pass"
	in := fermentationInput(device.ID, entities.FermentationSpecial, gq(g2.ID, 25), gq(g3.ID, 5))
	in.Note = &note
	got, err := uc.Update(ctx, f.ID, in)
	require.NoError(t, err, "updating the active record must not trip its own exclusivity check")

	assert.Equal(t, f.Title, got.Title)
	require.NotNil(t, got.Note)
	assert.Equal(t, note, *got.Note)
	pairs := map[string]float64{}
	for _, s := range got.Genotypes {
		pairs[s.ID] = s.Quantity
	}
	assert.Equal(t, map[string]float64{g2.ID: 25, g3.ID: 5}, pairs)
	assert.InDelta(t, 30, got.TotalQuantity, 0.001)

	// switching to Premium with two genotypes violates the composition
	in.Type = entities.FermentationPremium
	_, err = uc.Update(ctx, f.ID, in)
	assert.Equal(t, KindConflict, KindOf(err))

	after, err := uc.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.FermentationSpecial, after.Type)
	assert.Len(t, after.Genotypes, 2)

	_, err = uc.Update(ctx, "missing", in)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestFermentationUpdate_MoveToBusyDevice(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	uc := newFermentationUseCase(store)
	d1 := seedDevice(t, store, "SN-1")
	d2 := seedDevice(t, store, "SN-2")
	g := seedGenotype(t, store, "CCN-51")

	_, err := uc.Create(ctx, fermentationInput(d1.ID, entities.FermentationPremium, gq(g.ID, 1)))
	require.NoError(t, err)
	f2, err := uc.Create(ctx, fermentationInput(d2.ID, entities.FermentationPremium, gq(g.ID, 1)))
	require.NoError(t, err)

	_, err = uc.Update(ctx, f2.ID, fermentationInput(d1.ID, entities.FermentationPremium, gq(g.ID, 1)))
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestFermentationTransition(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	uc := newFermentationUseCase(store)
	device := seedDevice(t, store, "SN-1")
	g := seedGenotype(t, store, "CCN-51")

	note := "keep me"
	in := fermentationInput(device.ID, entities.FermentationPremium, gq(g.ID, 1))
	in.Note = &note
	created, err := uc.Create(ctx, in)
	require.NoError(t, err)

	closeAt := testNow.Add(2 * time.Hour)
	uc.now = fixedClock(closeAt)
	closed, err := uc.Transition(ctx, created.ID, StatusInput{Status: entities.StatusInactive})
	require.NoError(t, err)
	assert.Equal(t, entities.StatusInactive, closed.Status)
	require.NotNil(t, closed.EndTime)
	assert.True(t, closed.EndTime.Equal(closeAt))

	stored, err := uc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Title, stored.Title)
	assert.Equal(t, created.Type, stored.Type)
	assert.True(t, created.StartTime.Equal(stored.StartTime))
	require.NotNil(t, stored.Note)
	assert.Equal(t, note, *stored.Note)
	assert.Len(t, stored.Genotypes, 1)

	// closing again restamps the end time and touches nothing else
	againAt := testNow.Add(5 * time.Hour)
	uc.now = fixedClock(againAt)
	again, err := uc.Transition(ctx, created.ID, StatusInput{Status: entities.StatusInactive})
	require.NoError(t, err)
	require.NotNil(t, again.EndTime)
	assert.True(t, again.EndTime.Equal(againAt))
	stored, err = uc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusInactive, stored.Status)
	assert.Equal(t, created.Title, stored.Title)
	assert.Equal(t, created.DeviceID, stored.DeviceID)
	assert.True(t, created.StartTime.Equal(stored.StartTime))
	require.NotNil(t, stored.Note)
	assert.Equal(t, note, *stored.Note)
	assert.Len(t, stored.Genotypes, 1)

	// an empty input reopens and keeps the last end time
	reopened, err := uc.Transition(ctx, created.ID, StatusInput{})
	require.NoError(t, err)
	assert.Equal(t, entities.StatusActive, reopened.Status)
	require.NotNil(t, reopened.EndTime)
	assert.True(t, reopened.EndTime.Equal(againAt))
	stored, err = uc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Title, stored.Title)
	require.NotNil(t, stored.Note)
	assert.Equal(t, note, *stored.Note)
	assert.Len(t, stored.Genotypes, 1)
	_, err = uc.Transition(ctx, created.ID, StatusInput{Status: entities.StatusInactive})
	require.NoError(t, err)

	// another batch takes the device; reopening the first must fail
	_, err = uc.Create(ctx, fermentationInput(device.ID, entities.FermentationPremium, gq(g.ID, 1)))
	require.NoError(t, err)
	_, err = uc.Transition(ctx, created.ID, StatusInput{})
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestFermentationTransition_ExplicitEndTime(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	uc := newFermentationUseCase(store)
	device := seedDevice(t, store, "SN-1")
	g := seedGenotype(t, store, "CCN-51")

	created, err := uc.Create(ctx, fermentationInput(device.ID, entities.FermentationPremium, gq(g.ID, 1)))
	require.NoError(t, err)

	end := testNow.Add(-time.Hour)
	closed, err := uc.Transition(ctx, created.ID, StatusInput{Status: entities.StatusInactive, EndTime: &end})
	require.NoError(t, err)
	require.NotNil(t, closed.EndTime)
	assert.True(t, closed.EndTime.Equal(end))

	reopened, err := uc.Transition(ctx, created.ID, StatusInput{})
	require.NoError(t, err)
	assert.Equal(t, entities.StatusActive, reopened.Status)
	require.NotNil(t, reopened.EndTime, "reopening clears nothing")

	_, err = uc.Transition(ctx, "missing", StatusInput{})
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestFermentationDelete(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	uc := newFermentationUseCase(store)
	turns := NewTurnUseCase(store)
	device := seedDevice(t, store, "SN-1")
	g := seedGenotype(t, store, "CCN-51")

	f, err := uc.Create(ctx, fermentationInput(device.ID, entities.FermentationPremium, gq(g.ID, 1)))
	require.NoError(t, err)
	_, err = turns.Create(ctx, TurnInput{FermentationID: f.ID, StartTime: testNow})
	require.NoError(t, err)

	require.NoError(t, uc.Delete(ctx, f.ID))

	_, err = uc.Get(ctx, f.ID)
	assert.Equal(t, KindNotFound, KindOf(err))
	n, err := store.Compositions().CountByGenotypeID(ctx, g.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	left, err := turns.List(ctx, f.ID)
	require.NoError(t, err)
	assert.Empty(t, left)

	assert.Equal(t, KindNotFound, KindOf(uc.Delete(ctx, f.ID)))
}

func TestFermentationListAndSummary(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	uc := newFermentationUseCase(store)
	device := seedDevice(t, store, "SN-1")
	g1 := seedGenotype(t, store, "CCN-51")
	g2 := seedGenotype(t, store, "ICS-95")

	_, err := uc.Create(ctx, fermentationInput(device.ID, entities.FermentationSpecial, gq(g1.ID, 2.5), gq(g2.ID, 4)))
	require.NoError(t, err)

	list, err := uc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Device)
	assert.Len(t, list[0].Genotypes, 2)

	summary, err := uc.Summary(ctx)
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, "SN-1", summary[0].DeviceSerial)
	assert.InDelta(t, 6.5, summary[0].TotalQuantity, 0.001)
}
