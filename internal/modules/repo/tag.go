package repo

import (
	"context"

	"github.com/lumenhq/dam/internal/modules/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TagRepo interface {
	// Upsert inserts a tag with usage_count 1, or increments usage_count of the
	// existing tag with the same slug. The stored row is returned either way.
	Upsert(ctx context.Context, name, slug, category string) (*model.Tag, error)
}

type tagRepo struct{ db *gorm.DB }

func NewTagRepo(db *gorm.DB) TagRepo {
	return &tagRepo{db: db}
}

func (r *tagRepo) Upsert(ctx context.Context, name, slug, category string) (*model.Tag, error) {
	t := model.Tag{
		Name:       name,
		Slug:       slug,
		Category:   category,
		UsageCount: 1,
	}
	err := r.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns: []clause.Column{{Name: "slug"}},
				DoUpdates: clause.Assignments(map[string]any{
					"usage_count": gorm.Expr("tags.usage_count + 1"),
					"updated_at":  gorm.Expr("now()"),
				}),
			},
			clause.Returning{},
		).
		Create(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}
