package service

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/lumenhq/dam/internal/modules/model"
	"github.com/lumenhq/dam/internal/modules/repo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// MetadataManager writes an asset, its tags, tag usage counters and the audit
// activity as one atomic unit.
type MetadataManager interface {
	Commit(ctx context.Context, in CommitInput) (*model.Asset, error)
}

type CommitInput struct {
	Asset   *model.Asset
	Tags    []string
	ActorID uuid.UUID
}

type metadataManager struct {
	uow repo.UnitOfWork
	log *zap.Logger
}

func NewMetadataManager(uow repo.UnitOfWork, log *zap.Logger) MetadataManager {
	return &metadataManager{uow: uow, log: log}
}

// TagInput is a normalised tag: the display spelling and its slug.
type TagInput struct {
	Name string
	Slug string
}

func (m *metadataManager) Commit(ctx context.Context, in CommitInput) (*model.Asset, error) {
	a := in.Asset
	if a == nil {
		return nil, fmt.Errorf("commit: asset is nil")
	}
	if a.ThumbnailKey == "" {
		return nil, ErrMissingThumbnail
	}
	if a.ID == uuid.Nil {
		// fixed before the transaction so retries insert the same row
		a.ID = uuid.New()
	}

	tags := NormalizeTags(in.Tags)
	var resolved []model.Tag

	err := m.uow.Do(ctx, func(ctx context.Context, tx repo.Tx) error {
		resolved = resolved[:0]

		if err := tx.Assets().Create(ctx, a); err != nil {
			return fmt.Errorf("create asset: %w", err)
		}

		links := make([]model.AssetTag, 0, len(tags))
		for _, t := range tags {
			tag, err := tx.Tags().Upsert(ctx, t.Name, t.Slug, a.Category)
			if err != nil {
				return fmt.Errorf("upsert tag %q: %w", t.Slug, err)
			}
			resolved = append(resolved, *tag)
			links = append(links, model.AssetTag{AssetID: a.ID, TagID: tag.ID, AddedBy: in.ActorID})
		}
		if err := tx.Assets().AttachTags(ctx, links); err != nil {
			return fmt.Errorf("attach tags: %w", err)
		}

		slugs := make([]string, len(tags))
		for i, t := range tags {
			slugs[i] = t.Slug
		}
		act := &model.Activity{
			ActorID:     in.ActorID,
			AssetID:     &a.ID,
			Type:        model.ActivityAssetUploaded,
			Description: fmt.Sprintf("uploaded %s", a.OriginalFilename),
			Payload: datatypes.JSONMap{
				"size":              a.Size,
				"mime":              a.MIME,
				"original_filename": a.OriginalFilename,
				"asset_type":        a.AssetType,
				"title":             a.Title,
				"tags":              slugs,
			},
		}
		if err := tx.Activities().Create(ctx, act); err != nil {
			return fmt.Errorf("create activity: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.Tags = resolved
	m.log.Debug("asset metadata committed",
		zap.String("asset_id", a.ID.String()),
		zap.Int("tags", len(resolved)))
	return a, nil
}

// Slugify lowercases and trims name and turns whitespace runs into a single
// '-'. Control characters are dropped; every other rune is kept so distinct
// names like "C++" and "C#" keep distinct slugs.
func Slugify(name string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsSpace(r):
			pendingDash = true
		case unicode.IsControl(r):
		default:
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeTags trims raw tag names, drops empties and de-duplicates by slug.
// Input order is kept and the first spelling of a slug wins.
func NormalizeTags(raw []string) []TagInput {
	seen := make(map[string]struct{}, len(raw))
	out := make([]TagInput, 0, len(raw))
	for _, r := range raw {
		name := strings.Join(strings.Fields(r), " ")
		slug := Slugify(name)
		if slug == "" {
			continue
		}
		if _, dup := seen[slug]; dup {
			continue
		}
		seen[slug] = struct{}{}
		out = append(out, TagInput{Name: name, Slug: slug})
	}
	return out
}

// SplitTags splits a comma-separated form value.
func SplitTags(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	return strings.Split(csv, ",")
}
