package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lumenhq/dam/internal/modules/model"
	"github.com/lumenhq/dam/internal/modules/repo"
	"github.com/lumenhq/dam/internal/telemetry"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProcessingResult is published by the downstream processor when a job changes state.
type ProcessingResult struct {
	AssetID      uuid.UUID `json:"asset_id"`
	JobID        uuid.UUID `json:"job_id"`
	JobKind      string    `json:"job_kind"`
	Status       string    `json:"status"`
	ThumbnailKey string    `json:"thumbnail_key,omitempty"`
	PreviewKey   string    `json:"preview_key,omitempty"`
	Width        *int      `json:"width,omitempty"`
	Height       *int      `json:"height,omitempty"`
	Duration     *float64  `json:"duration_seconds,omitempty"`
	Error        string    `json:"error,omitempty"`
}

var transitions = map[string][]string{
	model.StatusUploaded:   {model.StatusProcessing, model.StatusCompleted, model.StatusFailed},
	model.StatusProcessing: {model.StatusCompleted, model.StatusFailed},
	model.StatusFailed:     {model.StatusProcessing},
}

// CanTransition reports whether an asset may move from one status to another.
func CanTransition(from, to string) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

type StatusService interface {
	// Apply moves the asset to the status carried by res. Repeating the current
	// status is a no-op. Disallowed moves return ErrInvalidTransition.
	Apply(ctx context.Context, res ProcessingResult) (*model.Asset, error)
}

type statusService struct {
	r   repo.AssetRepo
	uow repo.UnitOfWork
	log *zap.Logger
}

func NewStatusService(r repo.AssetRepo, uow repo.UnitOfWork, log *zap.Logger) StatusService {
	return &statusService{r: r, uow: uow, log: log}
}

func (s *statusService) Apply(ctx context.Context, res ProcessingResult) (*model.Asset, error) {
	if res.AssetID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing asset id", ErrInvalidTransition)
	}

	a, err := s.r.GetByID(ctx, res.AssetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, fmt.Errorf("get asset: %w", err)
	}

	from, to := a.Status, res.Status
	if from == to {
		s.log.Debug("status unchanged", zap.String("asset_id", a.ID.String()), zap.String("status", to))
		return a, nil
	}
	if !CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	fields := map[string]any{}
	if res.ThumbnailKey != "" {
		fields["thumbnail_key"] = res.ThumbnailKey
		a.ThumbnailKey = res.ThumbnailKey
	}
	if to == model.StatusCompleted && a.ThumbnailKey == "" {
		return nil, ErrMissingThumbnail
	}
	if res.PreviewKey != "" {
		fields["preview_key"] = res.PreviewKey
		a.PreviewKey = &res.PreviewKey
	}
	if res.Width != nil {
		fields["width"] = *res.Width
		a.Width = res.Width
	}
	if res.Height != nil {
		fields["height"] = *res.Height
		a.Height = res.Height
	}
	if res.Duration != nil {
		fields["duration_seconds"] = *res.Duration
		a.Duration = res.Duration
	}

	payload := datatypes.JSONMap{
		"from":     from,
		"to":       to,
		"job_id":   res.JobID.String(),
		"job_kind": res.JobKind,
	}
	if res.Error != "" {
		payload["error"] = res.Error
	}

	err = s.uow.Do(ctx, func(ctx context.Context, tx repo.Tx) error {
		if err := tx.Assets().UpdateStatus(ctx, a.ID, from, to, fields); err != nil {
			return err
		}
		return tx.Activities().Create(ctx, &model.Activity{
			ActorID:     a.OwnerID,
			AssetID:     &a.ID,
			Type:        model.ActivityAssetStatusChanged,
			Description: fmt.Sprintf("status %s -> %s", from, to),
			Payload:     payload,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("apply status %s -> %s: %w", from, to, err)
	}

	a.Status = to
	telemetry.RecordStatusTransition(ctx, from, to)
	s.log.Info("asset status changed",
		zap.String("asset_id", a.ID.String()),
		zap.String("from", from),
		zap.String("to", to),
		zap.String("job_kind", res.JobKind))
	return a, nil
}
