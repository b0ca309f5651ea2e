package usecases

import (
	"context"
	"strings"

	"cacao-server/entities"
	"cacao-server/repositories"
)

type GenotypeInput struct {
	Name        string  `json:"name" validate:"required,max=128"`
	Code        string  `json:"code" validate:"required,max=64"`
	Description *string `json:"description"`
}

type GenotypeUseCase struct {
	store repositories.Store
}

func NewGenotypeUseCase(store repositories.Store) *GenotypeUseCase {
	return &GenotypeUseCase{store: store}
}

func (uc *GenotypeUseCase) Create(ctx context.Context, in GenotypeInput) (*entities.Genotype, error) {
	in.Code = strings.TrimSpace(in.Code)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := uc.checkCode(ctx, in.Code, ""); err != nil {
		return nil, err
	}
	g := &entities.Genotype{Name: in.Name, Code: in.Code, Description: in.Description}
	if err := uc.store.Genotypes().Create(ctx, g); err != nil {
		return nil, wrap(err)
	}
	return g, nil
}

func (uc *GenotypeUseCase) Get(ctx context.Context, id string) (*entities.Genotype, error) {
	g, err := uc.store.Genotypes().GetByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "genotype")
	}
	return g, nil
}

func (uc *GenotypeUseCase) List(ctx context.Context) ([]entities.Genotype, error) {
	list, err := uc.store.Genotypes().GetAll(ctx)
	return nonNil(list), wrap(err)
}

func (uc *GenotypeUseCase) Update(ctx context.Context, id string, in GenotypeInput) (*entities.Genotype, error) {
	in.Code = strings.TrimSpace(in.Code)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	g, err := uc.store.Genotypes().GetByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "genotype")
	}
	if err := uc.checkCode(ctx, in.Code, id); err != nil {
		return nil, err
	}
	g.Name = in.Name
	g.Code = in.Code
	g.Description = in.Description
	if err := uc.store.Genotypes().Update(ctx, g); err != nil {
		return nil, wrap(err)
	}
	return g, nil
}

// Delete refuses genotypes still used by a fermentation, since removing them
// could break that fermentation's composition rule.
func (uc *GenotypeUseCase) Delete(ctx context.Context, id string) error {
	err := uc.store.Transaction(ctx, func(tx repositories.Store) error {
		if _, err := tx.Genotypes().GetByID(ctx, id); err != nil {
			return lookup(err, "genotype")
		}
		n, err := tx.Compositions().CountByGenotypeID(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return Conflict("genotype is used by %d fermentation(s)", n)
		}
		return tx.Genotypes().Delete(ctx, id)
	})
	return wrap(err)
}

func (uc *GenotypeUseCase) checkCode(ctx context.Context, code, excludeID string) error {
	taken, err := uc.store.Genotypes().CodeTaken(ctx, code, excludeID)
	if err != nil {
		return wrap(err)
	}
	if taken {
		return InvalidField("code", "code is already in use")
	}
	return nil
}
