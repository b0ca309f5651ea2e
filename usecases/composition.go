package usecases

import (
	"context"
	"strings"

	"cacao-server/entities"
	"cacao-server/repositories"

	"go.uber.org/zap"
)

// GenotypeItemsInput carries a non-empty list of (genotype, quantity) pairs.
type GenotypeItemsInput struct {
	Genotypes []entities.GenotypeQuantity `json:"genotypes" validate:"required,min=1,unique=GenotypeID,dive"`
}

// SyncInput is the body of a full replace. Emptiness is a composition
// conflict rather than a validation failure.
type SyncInput struct {
	Genotypes []entities.GenotypeQuantity `json:"genotypes" validate:"unique=GenotypeID,dive"`
}

type DetachInput struct {
	GenotypeIDs []string `json:"genotype_ids" validate:"required,min=1,unique,dive,required"`
}

type QuantityInput struct {
	Quantity *float64 `json:"quantity" validate:"required,gte=0,lte=99999999.99"`
}

// Composition is the genotype set of one fermentation.
type Composition struct {
	FermentationID string                    `json:"fermentation_id"`
	Type           entities.FermentationType `json:"type"`
	Genotypes      []entities.GenotypeShare  `json:"genotypes"`
	TotalQuantity  float64                   `json:"total_quantity"`
}

// CompositionUseCase is the genotype ledger. Every operation locks the
// fermentation row, so operations on one fermentation never interleave.
type CompositionUseCase struct {
	store repositories.Store
	log   *zap.Logger
}

func NewCompositionUseCase(store repositories.Store, log *zap.Logger) *CompositionUseCase {
	return &CompositionUseCase{store: store, log: log}
}

func (uc *CompositionUseCase) Get(ctx context.Context, fermentationID string) (*Composition, error) {
	f, err := uc.store.Fermentations().GetByID(ctx, fermentationID)
	if err != nil {
		return nil, lookup(err, "fermentation")
	}
	return composition(ctx, uc.store, f)
}

// Attach adds new genotypes. Already attached genotypes, or exceeding what
// the fermentation type allows, are conflicts.
func (uc *CompositionUseCase) Attach(ctx context.Context, fermentationID string, in GenotypeItemsInput) (*Composition, error) {
	out, err := uc.attach(ctx, fermentationID, in)
	observe("attach", err)
	return out, err
}

func (uc *CompositionUseCase) attach(ctx context.Context, fermentationID string, in GenotypeItemsInput) (*Composition, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	return uc.withLocked(ctx, "attach", fermentationID, func(tx repositories.Store, f *entities.Fermentation, current []entities.GenotypeShare) error {
		attached := shareIDs(current)
		var dup []string
		for _, item := range in.Genotypes {
			if attached[item.GenotypeID] {
				dup = append(dup, item.GenotypeID)
			}
		}
		if len(dup) > 0 {
			return Conflict("genotype already attached: %s", strings.Join(dup, ", "))
		}
		if !f.Type.GenotypeCountValid(len(current) + len(in.Genotypes)) {
			return Conflict("%s", f.Type.CompositionRule())
		}
		if err := checkGenotypesExist(ctx, tx, in.Genotypes); err != nil {
			return err
		}
		return tx.Compositions().Attach(ctx, f.ID, in.Genotypes)
	})
}

// Detach removes genotypes. A fermentation never loses its last genotype.
func (uc *CompositionUseCase) Detach(ctx context.Context, fermentationID string, in DetachInput) (*Composition, error) {
	out, err := uc.detach(ctx, fermentationID, in)
	observe("detach", err)
	return out, err
}

func (uc *CompositionUseCase) detach(ctx context.Context, fermentationID string, in DetachInput) (*Composition, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	return uc.withLocked(ctx, "detach", fermentationID, func(tx repositories.Store, f *entities.Fermentation, current []entities.GenotypeShare) error {
		attached := shareIDs(current)
		var missing []string
		for _, id := range in.GenotypeIDs {
			if !attached[id] {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return &Error{Kind: KindNotFound, Message: "genotype not attached: " + strings.Join(missing, ", ")}
		}
		if !f.Type.GenotypeCountValid(len(current) - len(in.GenotypeIDs)) {
			return Conflict("%s", f.Type.CompositionRule())
		}
		return tx.Compositions().Detach(ctx, f.ID, in.GenotypeIDs)
	})
}

// UpdateQuantity overwrites the quantity of one attached genotype.
func (uc *CompositionUseCase) UpdateQuantity(ctx context.Context, fermentationID, genotypeID string, in QuantityInput) (*Composition, error) {
	out, err := uc.updateQuantity(ctx, fermentationID, genotypeID, in)
	observe("update_quantity", err)
	return out, err
}

func (uc *CompositionUseCase) updateQuantity(ctx context.Context, fermentationID, genotypeID string, in QuantityInput) (*Composition, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	return uc.withLocked(ctx, "update_quantity", fermentationID, func(tx repositories.Store, f *entities.Fermentation, _ []entities.GenotypeShare) error {
		ok, err := tx.Compositions().UpdateQuantity(ctx, f.ID, genotypeID, *in.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			return &Error{Kind: KindNotFound, Message: "genotype not attached: " + genotypeID}
		}
		return nil
	})
}

// Sync makes the genotype set exactly in.Genotypes.
func (uc *CompositionUseCase) Sync(ctx context.Context, fermentationID string, in SyncInput) (*Composition, error) {
	out, err := uc.sync(ctx, fermentationID, in)
	observe("sync", err)
	return out, err
}

func (uc *CompositionUseCase) sync(ctx context.Context, fermentationID string, in SyncInput) (*Composition, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	return uc.withLocked(ctx, "sync", fermentationID, func(tx repositories.Store, f *entities.Fermentation, _ []entities.GenotypeShare) error {
		if !f.Type.GenotypeCountValid(len(in.Genotypes)) {
			return Conflict("%s", f.Type.CompositionRule())
		}
		if err := checkGenotypesExist(ctx, tx, in.Genotypes); err != nil {
			return err
		}
		return tx.Compositions().Replace(ctx, f.ID, in.Genotypes)
	})
}

// withLocked runs fn in a transaction holding the fermentation row lock and
// returns the resulting composition read inside the same transaction.
func (uc *CompositionUseCase) withLocked(ctx context.Context, op, fermentationID string, fn func(tx repositories.Store, f *entities.Fermentation, current []entities.GenotypeShare) error) (*Composition, error) {
	var out *Composition
	err := uc.store.Transaction(ctx, func(tx repositories.Store) error {
		f, err := tx.Fermentations().Lock(ctx, fermentationID)
		if err != nil {
			return lookup(err, "fermentation")
		}
		current, err := tx.Compositions().ListShares(ctx, f.ID)
		if err != nil {
			return err
		}
		if err := fn(tx, f, current); err != nil {
			return err
		}
		out, err = composition(ctx, tx, f)
		return err
	})
	if err != nil {
		err = wrap(err)
		switch KindOf(err) {
		case KindInternal:
			uc.log.Error("genotype ledger operation failed", zap.String("operation", op), zap.String("fermentation_id", fermentationID), zap.Error(err))
		case KindConflict:
			uc.log.Info("genotype ledger operation rejected", zap.String("operation", op), zap.String("fermentation_id", fermentationID), zap.Error(err))
		}
		return nil, err
	}
	return out, nil
}

func composition(ctx context.Context, store repositories.Store, f *entities.Fermentation) (*Composition, error) {
	shares, err := store.Compositions().ListShares(ctx, f.ID)
	if err != nil {
		return nil, wrap(err)
	}
	shares = nonNil(shares)
	return &Composition{
		FermentationID: f.ID,
		Type:           f.Type,
		Genotypes:      shares,
		TotalQuantity:  entities.TotalQuantity(shares),
	}, nil
}

func shareIDs(shares []entities.GenotypeShare) map[string]bool {
	ids := make(map[string]bool, len(shares))
	for _, s := range shares {
		ids[s.ID] = true
	}
	return ids
}
