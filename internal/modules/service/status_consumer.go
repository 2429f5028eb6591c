package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	mq "github.com/lumenhq/dam/internal/infra/queue"
	"go.uber.org/zap"
)

// NewStatusMessageHandler decodes processor results and applies them.
// Results that can never succeed are marked permanent so the broker drops them
// instead of redelivering forever.
func NewStatusMessageHandler(svc StatusService, log *zap.Logger) func(ctx context.Context, body []byte) error {
	return func(ctx context.Context, body []byte) error {
		var res ProcessingResult
		if err := sonic.Unmarshal(body, &res); err != nil {
			return fmt.Errorf("%w: decode result: %v", mq.ErrPermanent, err)
		}

		a, err := svc.Apply(ctx, res)
		switch {
		case err == nil:
			log.Info("asset status applied",
				zap.String("asset_id", a.ID.String()),
				zap.String("status", a.Status),
				zap.String("job_kind", res.JobKind))
			return nil
		case errors.Is(err, ErrInvalidTransition),
			errors.Is(err, ErrAssetNotFound),
			errors.Is(err, ErrMissingThumbnail):
			return fmt.Errorf("%w: asset %s: %v", mq.ErrPermanent, res.AssetID, err)
		default:
			return err
		}
	}
}
