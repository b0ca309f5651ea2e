package usecases

import (
	"context"
	"testing"

	"cacao-server/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func pairsOf(c *Composition) map[string]float64 {
	out := map[string]float64{}
	for _, s := range c.Genotypes {
		out[s.ID] = s.Quantity
	}
	return out
}

func TestComposition_SyncRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	fermentations := newFermentationUseCase(store)
	uc := NewCompositionUseCase(store, zap.NewNop())
	device := seedDevice(t, store, "SN-1")
	g1 := seedGenotype(t, store, "A")
	g2 := seedGenotype(t, store, "B")
	g3 := seedGenotype(t, store, "C")

	f, err := fermentations.Create(ctx, fermentationInput(device.ID, entities.FermentationSpecial, gq(g1.ID, 1), gq(g2.ID, 2)))
	require.NoError(t, err)

	targets := [][]entities.GenotypeQuantity{
		{gq(g3.ID, 9)},
		{gq(g1.ID, 1.25), gq(g2.ID, 0), gq(g3.ID, 3)},
		{gq(g2.ID, 7)},
	}
	for _, target := range targets {
		_, err := uc.Sync(ctx, f.ID, SyncInput{Genotypes: target})
		require.NoError(t, err)

		got, err := uc.Get(ctx, f.ID)
		require.NoError(t, err)
		want := map[string]float64{}
		for _, item := range target {
			want[item.GenotypeID] = item.Quantity
		}
		assert.Equal(t, want, pairsOf(got))
	}
}

func TestComposition_SyncRejections(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	fermentations := newFermentationUseCase(store)
	uc := NewCompositionUseCase(store, zap.NewNop())
	device := seedDevice(t, store, "SN-1")
	g1 := seedGenotype(t, store, "A")
	g2 := seedGenotype(t, store, "B")

	f, err := fermentations.Create(ctx, fermentationInput(device.ID, entities.FermentationPremium, gq(g1.ID, 1)))
	require.NoError(t, err)

	_, err = uc.Sync(ctx, f.ID, SyncInput{Genotypes: []entities.GenotypeQuantity{gq(g1.ID, 1), gq(g2.ID, 1)}})
	assert.Equal(t, KindConflict, KindOf(err))
	_, err = uc.Sync(ctx, f.ID, SyncInput{})
	assert.Equal(t, KindConflict, KindOf(err))
	_, err = uc.Sync(ctx, f.ID, SyncInput{Genotypes: []entities.GenotypeQuantity{gq("missing", 1)}})
	assert.Equal(t, KindNotFound, KindOf(err))
	_, err = uc.Sync(ctx, "missing", SyncInput{Genotypes: []entities.GenotypeQuantity{gq(g1.ID, 1)}})
	assert.Equal(t, KindNotFound, KindOf(err))

	got, err := uc.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{g1.ID: 1}, pairsOf(got))
}

func TestComposition_AttachDetach(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	fermentations := newFermentationUseCase(store)
	uc := NewCompositionUseCase(store, zap.NewNop())
	device := seedDevice(t, store, "SN-1")
	g1 := seedGenotype(t, store, "A")
	g2 := seedGenotype(t, store, "B")
	g3 := seedGenotype(t, store, "C")

	f, err := fermentations.Create(ctx, fermentationInput(device.ID, entities.FermentationSpecial, gq(g1.ID, 1)))
	require.NoError(t, err)

	got, err := uc.Attach(ctx, f.ID, GenotypeItemsInput{Genotypes: []entities.GenotypeQuantity{gq(g2.ID, 2), gq(g3.ID, 3)}})
	require.NoError(t, err)
	assert.Len(t, got.Genotypes, 3)
	assert.InDelta(t, 6, got.TotalQuantity, 0.001)

	_, err = uc.Attach(ctx, f.ID, GenotypeItemsInput{Genotypes: []entities.GenotypeQuantity{gq(g2.ID, 2)}})
	assert.Equal(t, KindConflict, KindOf(err), "already attached")

	got, err = uc.Detach(ctx, f.ID, DetachInput{GenotypeIDs: []string{g1.ID, g3.ID}})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{g2.ID: 2}, pairsOf(got))

	_, err = uc.Detach(ctx, f.ID, DetachInput{GenotypeIDs: []string{g2.ID}})
	assert.Equal(t, KindConflict, KindOf(err), "last genotype stays")

	_, err = uc.Detach(ctx, f.ID, DetachInput{GenotypeIDs: []string{g1.ID}})
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = uc.Detach(ctx, f.ID, DetachInput{})
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestComposition_PremiumAttach(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	fermentations := newFermentationUseCase(store)
	uc := NewCompositionUseCase(store, zap.NewNop())
	device := seedDevice(t, store, "SN-1")
	g1 := seedGenotype(t, store, "A")
	g2 := seedGenotype(t, store, "B")

	f, err := fermentations.Create(ctx, fermentationInput(device.ID, entities.FermentationPremium, gq(g1.ID, 1)))
	require.NoError(t, err)

	_, err = uc.Attach(ctx, f.ID, GenotypeItemsInput{Genotypes: []entities.GenotypeQuantity{gq(g2.ID, 1)}})
	assert.Equal(t, KindConflict, KindOf(err))

	got, err := uc.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Len(t, got.Genotypes, 1)
}

func TestComposition_UpdateQuantity(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	fermentations := newFermentationUseCase(store)
	uc := NewCompositionUseCase(store, zap.NewNop())
	device := seedDevice(t, store, "SN-1")
	g1 := seedGenotype(t, store, "A")
	g2 := seedGenotype(t, store, "B")

	f, err := fermentations.Create(ctx, fermentationInput(device.ID, entities.FermentationPremium, gq(g1.ID, 1)))
	require.NoError(t, err)

	q := 42.75
	got, err := uc.UpdateQuantity(ctx, f.ID, g1.ID, QuantityInput{Quantity: &q})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{g1.ID: 42.75}, pairsOf(got))

	_, err = uc.UpdateQuantity(ctx, f.ID, g2.ID, QuantityInput{Quantity: &q})
	assert.Equal(t, KindNotFound, KindOf(err))

	negative := -1.0
	_, err = uc.UpdateQuantity(ctx, f.ID, g1.ID, QuantityInput{Quantity: &negative})
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = uc.UpdateQuantity(ctx, f.ID, g1.ID, QuantityInput{})
	assert.Equal(t, KindValidation, KindOf(err))
}
