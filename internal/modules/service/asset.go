package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lumenhq/dam/internal/modules/model"
	"github.com/lumenhq/dam/internal/modules/repo"
	"gorm.io/gorm"
)

// URLCache is satisfied by cache.URLCache. A nil *cache.URLCache passes
// every call through to mint.
type URLCache interface {
	GetOrMint(ctx context.Context, name string, ttl time.Duration, mint func(ctx context.Context) (string, error)) (string, error)
}

type AssetService interface {
	Get(ctx context.Context, actorID, assetID uuid.UUID) (*model.Asset, error)
	// ViewURL returns an inline presigned URL for the original.
	ViewURL(ctx context.Context, actorID, assetID uuid.UUID) (string, error)
	// DownloadURL returns a presigned URL that downloads the original under its uploaded name.
	DownloadURL(ctx context.Context, actorID, assetID uuid.UUID) (string, error)
}

type assetService struct {
	r     repo.AssetRepo
	store ObjectStore
	urls  URLCache
	ttl   time.Duration
}

func NewAssetService(r repo.AssetRepo, store ObjectStore, urls URLCache, ttl time.Duration) AssetService {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &assetService{r: r, store: store, urls: urls, ttl: ttl}
}

func (s *assetService) Get(ctx context.Context, actorID, assetID uuid.UUID) (*model.Asset, error) {
	a, err := s.r.GetByID(ctx, assetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, fmt.Errorf("get asset: %w", err)
	}
	// private assets are invisible to everyone but the owner
	if a.Visibility == model.VisibilityPrivate && a.OwnerID != actorID {
		return nil, ErrAssetNotFound
	}
	return a, nil
}

func (s *assetService) ViewURL(ctx context.Context, actorID, assetID uuid.UUID) (string, error) {
	a, err := s.Get(ctx, actorID, assetID)
	if err != nil {
		return "", err
	}
	return s.presign(ctx, "view:"+a.ID.String(), a.FileKey, "")
}

func (s *assetService) DownloadURL(ctx context.Context, actorID, assetID uuid.UUID) (string, error) {
	a, err := s.Get(ctx, actorID, assetID)
	if err != nil {
		return "", err
	}
	return s.presign(ctx, "download:"+a.ID.String(), a.FileKey, a.OriginalFilename)
}

func (s *assetService) presign(ctx context.Context, name, key, downloadName string) (string, error) {
	mint := func(ctx context.Context) (string, error) {
		return s.store.URLFor(ctx, key, downloadName, s.ttl)
	}
	var (
		u   string
		err error
	)
	if s.urls == nil {
		u, err = mint(ctx)
	} else {
		u, err = s.urls.GetOrMint(ctx, name, s.ttl, mint)
	}
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", name, err)
	}
	return u, nil
}
