package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/lumenhq/dam/internal/modules/model"
	"gorm.io/gorm"
)

type ActivityRepo interface {
	Create(ctx context.Context, a *model.Activity) error
	ListByAsset(ctx context.Context, assetID uuid.UUID, limit int) ([]*model.Activity, error)
}

type activityRepo struct{ db *gorm.DB }

func NewActivityRepo(db *gorm.DB) ActivityRepo {
	return &activityRepo{db: db}
}

func (r *activityRepo) Create(ctx context.Context, a *model.Activity) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *activityRepo) ListByAsset(ctx context.Context, assetID uuid.UUID, limit int) ([]*model.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*model.Activity
	err := r.db.WithContext(ctx).
		Where("asset_id = ?", assetID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
