package repositories

import (
	"context"

	"cacao-server/db"
	"cacao-server/entities"

	"gorm.io/gorm"
)

type turnPgRepository struct {
	db db.Database
}

func NewTurnPgRepository(database db.Database) TurnRepository {
	return &turnPgRepository{db: database}
}

func (r *turnPgRepository) conn(ctx context.Context) *gorm.DB {
	return r.db.GetDB().WithContext(ctx)
}

func (r *turnPgRepository) Create(ctx context.Context, turn *entities.Turn) error {
	return r.conn(ctx).Create(turn).Error
}

func (r *turnPgRepository) GetByID(ctx context.Context, id string) (*entities.Turn, error) {
	var t entities.Turn
	if err := r.conn(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *turnPgRepository) GetAll(ctx context.Context) ([]entities.Turn, error) {
	var turns []entities.Turn
	err := r.conn(ctx).Order("start_time DESC").Find(&turns).Error
	return turns, err
}

func (r *turnPgRepository) GetByFermentationID(ctx context.Context, fermentationID string) ([]entities.Turn, error) {
	var turns []entities.Turn
	err := r.conn(ctx).Where("fermentation_id = ?", fermentationID).Order("start_time ASC").Find(&turns).Error
	return turns, err
}

func (r *turnPgRepository) Update(ctx context.Context, turn *entities.Turn) error {
	return r.conn(ctx).Save(turn).Error
}

func (r *turnPgRepository) Delete(ctx context.Context, id string) error {
	return r.conn(ctx).Where("id = ?", id).Delete(&entities.Turn{}).Error
}

func (r *turnPgRepository) DeleteByFermentationID(ctx context.Context, fermentationID string) error {
	return r.conn(ctx).Where("fermentation_id = ?", fermentationID).Delete(&entities.Turn{}).Error
}
