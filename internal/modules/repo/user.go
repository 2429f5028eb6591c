package repo

import (
	"context"

	"github.com/lumenhq/dam/internal/modules/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepo interface {
	GetBySecretLookup(ctx context.Context, lookup string) (*model.User, error)
	// UpsertKey creates the actor or replaces its key material.
	UpsertKey(ctx context.Context, identifier, lookup, phc string) (*model.User, error)
}

type userRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) UserRepo {
	return &userRepo{db: db}
}

func (r *userRepo) GetBySecretLookup(ctx context.Context, lookup string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where(&model.User{SecretKeyHMAC: lookup}).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) UpsertKey(ctx context.Context, identifier, lookup, phc string) (*model.User, error) {
	u := model.User{
		Identifier:       identifier,
		SecretKeyHMAC:    lookup,
		SecretKeyHashPHC: phc,
	}
	err := r.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns:   []clause.Column{{Name: "identifier"}},
				DoUpdates: clause.AssignmentColumns([]string{"secret_key_hmac", "secret_key_hash_phc", "updated_at"}),
			},
			clause.Returning{},
		).
		Create(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}
