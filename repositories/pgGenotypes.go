package repositories

import (
	"context"

	"cacao-server/db"
	"cacao-server/entities"

	"gorm.io/gorm"
)

type genotypePgRepository struct {
	db db.Database
}

func NewGenotypePgRepository(database db.Database) GenotypeRepository {
	return &genotypePgRepository{db: database}
}

func (r *genotypePgRepository) conn(ctx context.Context) *gorm.DB {
	return r.db.GetDB().WithContext(ctx)
}

func (r *genotypePgRepository) Create(ctx context.Context, genotype *entities.Genotype) error {
	return r.conn(ctx).Create(genotype).Error
}

func (r *genotypePgRepository) GetByID(ctx context.Context, id string) (*entities.Genotype, error) {
	var g entities.Genotype
	if err := r.conn(ctx).Where("id = ?", id).First(&g).Error; err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

func (r *genotypePgRepository) GetAll(ctx context.Context) ([]entities.Genotype, error) {
	var list []entities.Genotype
	err := r.conn(ctx).Order("code ASC").Find(&list).Error
	return list, err
}

func (r *genotypePgRepository) MissingIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []string
	if err := r.conn(ctx).Model(&entities.Genotype{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(found))
	for _, id := range found {
		present[id] = true
	}
	var missing []string
	for _, id := range ids {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (r *genotypePgRepository) CodeTaken(ctx context.Context, code, excludeID string) (bool, error) {
	var n int64
	q := r.conn(ctx).Model(&entities.Genotype{}).Where("code = ?", code)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}

func (r *genotypePgRepository) Update(ctx context.Context, genotype *entities.Genotype) error {
	return r.conn(ctx).Save(genotype).Error
}

func (r *genotypePgRepository) Delete(ctx context.Context, id string) error {
	return r.conn(ctx).Where("id = ?", id).Delete(&entities.Genotype{}).Error
}
