package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lumenhq/dam/internal/modules/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStatusConflict is returned when a status update finds the asset in a state
// other than the expected ones.
var ErrStatusConflict = errors.New("asset status changed concurrently")

type AssetRepo interface {
	Create(ctx context.Context, a *model.Asset) error
	AttachTags(ctx context.Context, rows []model.AssetTag) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Asset, error)
	// UpdateStatus moves the asset to `to` only if its current status is `from`.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string, fields map[string]any) error
}

type assetRepo struct{ db *gorm.DB }

func NewAssetRepo(db *gorm.DB) AssetRepo {
	return &assetRepo{db: db}
}

func (r *assetRepo) Create(ctx context.Context, a *model.Asset) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(a).Error
}

func (r *assetRepo) AttachTags(ctx context.Context, rows []model.AssetTag) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit(clause.Associations).
		Create(&rows).Error
}

func (r *assetRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Asset, error) {
	var a model.Asset
	err := r.db.WithContext(ctx).
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.name ASC") }).
		Where(&model.Asset{ID: id}).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *assetRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string, fields map[string]any) error {
	updates := map[string]any{"status": to}
	for k, v := range fields {
		updates[k] = v
	}

	res := r.db.WithContext(ctx).
		Model(&model.Asset{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}
