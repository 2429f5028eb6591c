package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	mq "github.com/lumenhq/dam/internal/infra/queue"
	"github.com/lumenhq/dam/internal/modules/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockStatusService is a mock implementation of StatusService
type MockStatusService struct {
	mock.Mock
}

func (m *MockStatusService) Apply(ctx context.Context, res ProcessingResult) (*model.Asset, error) {
	args := m.Called(ctx, res)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Asset), args.Error(1)
}

func TestStatusMessageHandler(t *testing.T) {
	assetID := uuid.New()
	body := []byte(`{"asset_id":"` + assetID.String() + `","job_kind":"image.process","status":"completed","thumbnail_key":"t.jpg","width":640}`)

	tests := []struct {
		name          string
		body          []byte
		applyErr      error
		wantErr       bool
		wantPermanent bool
	}{
		{name: "applied", body: body},
		{name: "garbage body", body: []byte("{"), wantErr: true, wantPermanent: true},
		{name: "invalid transition", body: body, applyErr: ErrInvalidTransition, wantErr: true, wantPermanent: true},
		{name: "unknown asset", body: body, applyErr: ErrAssetNotFound, wantErr: true, wantPermanent: true},
		{name: "missing thumbnail", body: body, applyErr: ErrMissingThumbnail, wantErr: true, wantPermanent: true},
		{name: "database down is retried", body: body, applyErr: errors.New("connection reset"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockStatusService)
			matches := mock.MatchedBy(func(res ProcessingResult) bool {
				return res.AssetID == assetID && res.Status == model.StatusCompleted &&
					res.ThumbnailKey == "t.jpg" && res.Width != nil && *res.Width == 640
			})
			if tt.applyErr != nil {
				svc.On("Apply", mock.Anything, matches).Return(nil, tt.applyErr)
			} else {
				svc.On("Apply", mock.Anything, matches).Return(&model.Asset{ID: assetID, Status: model.StatusCompleted}, nil)
			}

			err := NewStatusMessageHandler(svc, zap.NewNop())(context.Background(), tt.body)
			if !tt.wantErr {
				assert.NoError(t, err)
				svc.AssertExpectations(t)
				return
			}
			assert.Error(t, err)
			assert.Equal(t, tt.wantPermanent, errors.Is(err, mq.ErrPermanent))
		})
	}
}
