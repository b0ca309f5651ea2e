package repositories

import (
	"context"

	"cacao-server/db"
	"cacao-server/entities"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type fermentationPgRepository struct {
	db db.Database
}

func NewFermentationPgRepository(database db.Database) FermentationRepository {
	return &fermentationPgRepository{db: database}
}

func (r *fermentationPgRepository) conn(ctx context.Context) *gorm.DB {
	return r.db.GetDB().WithContext(ctx)
}

func (r *fermentationPgRepository) Create(ctx context.Context, fermentation *entities.Fermentation) error {
	return r.conn(ctx).Create(fermentation).Error
}

func (r *fermentationPgRepository) GetByID(ctx context.Context, id string) (*entities.Fermentation, error) {
	var f entities.Fermentation
	if err := r.conn(ctx).Where("id = ?", id).First(&f).Error; err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

func (r *fermentationPgRepository) Lock(ctx context.Context, id string) (*entities.Fermentation, error) {
	var f entities.Fermentation
	err := r.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&f).Error
	if err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

func (r *fermentationPgRepository) GetAll(ctx context.Context) ([]entities.Fermentation, error) {
	var list []entities.Fermentation
	err := r.conn(ctx).Order("created_at ASC").Find(&list).Error
	return list, err
}

func (r *fermentationPgRepository) GetByDeviceID(ctx context.Context, deviceID string) ([]entities.Fermentation, error) {
	var list []entities.Fermentation
	err := r.conn(ctx).Where("device_id = ?", deviceID).Order("start_time DESC").Find(&list).Error
	return list, err
}

func (r *fermentationPgRepository) FindActiveByDevice(ctx context.Context, deviceID, excludeID string) (*entities.Fermentation, error) {
	var list []entities.Fermentation
	q := r.conn(ctx).Where("device_id = ? AND status = ?", deviceID, entities.StatusActive)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Limit(1).Find(&list).Error; err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

func (r *fermentationPgRepository) CountByDevice(ctx context.Context, deviceID string) (int64, error) {
	var n int64
	err := r.conn(ctx).Model(&entities.Fermentation{}).Where("device_id = ?", deviceID).Count(&n).Error
	return n, err
}

func (r *fermentationPgRepository) TitlesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	var titles []string
	err := r.conn(ctx).Model(&entities.Fermentation{}).Where("title LIKE ?", prefix+"%").Pluck("title", &titles).Error
	return titles, err
}

func (r *fermentationPgRepository) CodeTaken(ctx context.Context, code, excludeID string) (bool, error) {
	var n int64
	q := r.conn(ctx).Model(&entities.Fermentation{}).Where("code = ?", code)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}

func (r *fermentationPgRepository) Update(ctx context.Context, fermentation *entities.Fermentation) error {
	return r.conn(ctx).Save(fermentation).Error
}

func (r *fermentationPgRepository) Delete(ctx context.Context, id string) error {
	return r.conn(ctx).Where("id = ?", id).Delete(&entities.Fermentation{}).Error
}
