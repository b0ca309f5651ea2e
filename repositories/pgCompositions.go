package repositories

import (
	"context"

	"cacao-server/db"
	"cacao-server/entities"

	"gorm.io/gorm"
)

type compositionPgRepository struct {
	db db.Database
}

func NewCompositionPgRepository(database db.Database) CompositionRepository {
	return &compositionPgRepository{db: database}
}

func (r *compositionPgRepository) conn(ctx context.Context) *gorm.DB {
	return r.db.GetDB().WithContext(ctx)
}

type shareRow struct {
	FermentationID string
	ID             string
	Name           string
	Code           string
	Quantity       float64
}

func (r *compositionPgRepository) shares(ctx context.Context) *gorm.DB {
	return r.conn(ctx).Table("fermentation_genotype AS fg").
		Select("fg.fermentation_id AS fermentation_id, g.id AS id, g.name AS name, g.code AS code, fg.quantity AS quantity").
		Joins("JOIN genotypes g ON g.id = fg.genotype_id").
		Order("g.code ASC")
}

func (r *compositionPgRepository) ListShares(ctx context.Context, fermentationID string) ([]entities.GenotypeShare, error) {
	var rows []shareRow
	if err := r.shares(ctx).Where("fg.fermentation_id = ?", fermentationID).Scan(&rows).Error; err != nil {
		return nil, err
	}
	shares := make([]entities.GenotypeShare, 0, len(rows))
	for _, row := range rows {
		shares = append(shares, row.share())
	}
	return shares, nil
}

func (r *compositionPgRepository) ListSharesFor(ctx context.Context, fermentationIDs []string) (map[string][]entities.GenotypeShare, error) {
	out := make(map[string][]entities.GenotypeShare, len(fermentationIDs))
	if len(fermentationIDs) == 0 {
		return out, nil
	}
	var rows []shareRow
	if err := r.shares(ctx).Where("fg.fermentation_id IN ?", fermentationIDs).Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.FermentationID] = append(out[row.FermentationID], row.share())
	}
	return out, nil
}

func (row shareRow) share() entities.GenotypeShare {
	return entities.GenotypeShare{ID: row.ID, Name: row.Name, Code: row.Code, Quantity: row.Quantity}
}

func (r *compositionPgRepository) Attach(ctx context.Context, fermentationID string, items []entities.GenotypeQuantity) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]entities.FermentationGenotype, 0, len(items))
	for _, item := range items {
		rows = append(rows, entities.FermentationGenotype{
			FermentationID: fermentationID,
			GenotypeID:     item.GenotypeID,
			Quantity:       item.Quantity,
		})
	}
	return r.conn(ctx).Create(&rows).Error
}

func (r *compositionPgRepository) Detach(ctx context.Context, fermentationID string, genotypeIDs []string) error {
	if len(genotypeIDs) == 0 {
		return nil
	}
	return r.conn(ctx).
		Where("fermentation_id = ? AND genotype_id IN ?", fermentationID, genotypeIDs).
		Delete(&entities.FermentationGenotype{}).Error
}

func (r *compositionPgRepository) UpdateQuantity(ctx context.Context, fermentationID, genotypeID string, quantity float64) (bool, error) {
	res := r.conn(ctx).Model(&entities.FermentationGenotype{}).
		Where("fermentation_id = ? AND genotype_id = ?", fermentationID, genotypeID).
		Update("quantity", quantity)
	return res.RowsAffected > 0, res.Error
}

func (r *compositionPgRepository) Replace(ctx context.Context, fermentationID string, items []entities.GenotypeQuantity) error {
	var existing []entities.FermentationGenotype
	if err := r.conn(ctx).Where("fermentation_id = ?", fermentationID).Find(&existing).Error; err != nil {
		return err
	}

	wanted := make(map[string]float64, len(items))
	for _, item := range items {
		wanted[item.GenotypeID] = item.Quantity
	}

	current := make(map[string]bool, len(existing))
	var stale []string
	for _, row := range existing {
		quantity, keep := wanted[row.GenotypeID]
		if !keep {
			stale = append(stale, row.GenotypeID)
			continue
		}
		current[row.GenotypeID] = true
		if row.Quantity != quantity {
			if _, err := r.UpdateQuantity(ctx, fermentationID, row.GenotypeID, quantity); err != nil {
				return err
			}
		}
	}
	if err := r.Detach(ctx, fermentationID, stale); err != nil {
		return err
	}

	var added []entities.GenotypeQuantity
	for _, item := range items {
		if !current[item.GenotypeID] {
			added = append(added, item)
		}
	}
	return r.Attach(ctx, fermentationID, added)
}

func (r *compositionPgRepository) DeleteByFermentationID(ctx context.Context, fermentationID string) error {
	return r.conn(ctx).Where("fermentation_id = ?", fermentationID).Delete(&entities.FermentationGenotype{}).Error
}

func (r *compositionPgRepository) CountByGenotypeID(ctx context.Context, genotypeID string) (int64, error) {
	var n int64
	err := r.conn(ctx).Model(&entities.FermentationGenotype{}).Where("genotype_id = ?", genotypeID).Count(&n).Error
	return n, err
}
