package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lumenhq/dam/internal/infra/httpclient"
	"github.com/lumenhq/dam/internal/modules/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockJobPublisher is a mock implementation of JobPublisher
type MockJobPublisher struct {
	mock.Mock
}

func (m *MockJobPublisher) PublishJSON(ctx context.Context, exchangeName string, routingKey string, body any) error {
	args := m.Called(ctx, exchangeName, routingKey, body)
	return args.Error(0)
}

// MockProcessorAPI is a mock implementation of ProcessorAPI
type MockProcessorAPI struct {
	mock.Mock
}

func (m *MockProcessorAPI) SubmitJob(ctx context.Context, kind string, payload any) (*httpclient.JobAccepted, error) {
	args := m.Called(ctx, kind, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*httpclient.JobAccepted), args.Error(1)
}

type panickingSubmitter struct{}

func (panickingSubmitter) Submit(context.Context, ProcessingJob) error {
	panic("nil channel")
}

func dispatchAsset(assetType string) *model.Asset {
	preview := "assets/x/preview.jpg"
	return &model.Asset{
		ID:           uuid.New(),
		OwnerID:      uuid.New(),
		AssetType:    assetType,
		FileKey:      "assets/x/original.bin",
		ThumbnailKey: "assets/x/thumbnail.jpg",
		PreviewKey:   &preview,
		MIME:         "image/png",
		Size:         99,
	}
}

func TestJobKindFor(t *testing.T) {
	tests := []struct {
		assetType string
		want      string
	}{
		{"image", JobImageProcess},
		{"video", JobVideoTranscode},
		{"audio", JobAudioProcess},
		{"document", JobDocumentExtract},
		{"archive", JobAssetProcess},
		{"font", JobAssetProcess},
		{"", JobAssetProcess},
	}
	for _, tt := range tests {
		t.Run(tt.assetType, func(t *testing.T) {
			assert.Equal(t, tt.want, JobKindFor(tt.assetType))
		})
	}
}

func TestDispatcher_RabbitMQ(t *testing.T) {
	pub := new(MockJobPublisher)
	a := dispatchAsset("video")
	fixed := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	pub.On("PublishJSON", mock.Anything, "asset.processing", JobVideoTranscode, mock.MatchedBy(func(job ProcessingJob) bool {
		return job.AssetID == a.ID &&
			job.OwnerID == a.OwnerID &&
			job.Kind == JobVideoTranscode &&
			job.PreviewKey == "assets/x/preview.jpg" &&
			job.RequestedAt.Equal(fixed) &&
			job.JobID != uuid.Nil
	})).Return(nil)

	d := NewDispatcher(BackendRabbitMQ, NewRabbitMQSubmitter(pub, "asset.processing"), zap.NewNop()).(*dispatcher)
	d.now = func() time.Time { return fixed }

	res := d.Dispatch(context.Background(), a)
	assert.True(t, res.Dispatched)
	assert.Equal(t, JobVideoTranscode, res.JobKind)
	assert.Equal(t, BackendRabbitMQ, res.Backend)
	assert.NotEqual(t, uuid.Nil, res.JobID)
	assert.Empty(t, res.Warning)
	pub.AssertExpectations(t)
}

func TestDispatcher_HTTP(t *testing.T) {
	api := new(MockProcessorAPI)
	a := dispatchAsset("document")
	api.On("SubmitJob", mock.Anything, JobDocumentExtract, mock.AnythingOfType("service.ProcessingJob")).
		Return(&httpclient.JobAccepted{JobID: "job-1", Status: "queued"}, nil)

	res := NewDispatcher(BackendHTTP, NewHTTPSubmitter(api), zap.NewNop()).Dispatch(context.Background(), a)
	assert.True(t, res.Dispatched)
	assert.Equal(t, BackendHTTP, res.Backend)
	api.AssertExpectations(t)
}

func TestDispatcher_FailuresBecomeWarnings(t *testing.T) {
	tests := []struct {
		name        string
		submit      JobSubmitter
		wantWarning string
	}{
		{
			name: "publish error",
			submit: func() JobSubmitter {
				pub := new(MockJobPublisher)
				pub.On("PublishJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(errors.New("channel closed"))
				return NewRabbitMQSubmitter(pub, "asset.processing")
			}(),
			wantWarning: "channel closed",
		},
		{
			name:        "backend unavailable at startup",
			submit:      NewUnavailableSubmitter(errors.New("dial tcp: connection refused")),
			wantWarning: "processing job backend unavailable",
		},
		{
			name:        "panic in submitter",
			submit:      panickingSubmitter{},
			wantWarning: "nil channel",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewDispatcher(BackendRabbitMQ, tt.submit, zap.NewNop()).Dispatch(context.Background(), dispatchAsset("image"))
			assert.False(t, res.Dispatched)
			assert.Equal(t, uuid.Nil, res.JobID)
			assert.Equal(t, JobImageProcess, res.JobKind)
			assert.Contains(t, res.Warning, tt.wantWarning)
		})
	}
}

func TestDispatcher_SurvivesCanceledRequest(t *testing.T) {
	pub := new(MockJobPublisher)
	pub.On("PublishJSON", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil
	}), mock.Anything, mock.Anything, mock.Anything).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewDispatcher(BackendRabbitMQ, NewRabbitMQSubmitter(pub, "x"), zap.NewNop()).Dispatch(ctx, dispatchAsset("audio"))
	assert.True(t, res.Dispatched)
}

func TestDispatcher_None(t *testing.T) {
	for _, d := range []Dispatcher{
		NewDispatcher(BackendNone, panickingSubmitter{}, zap.NewNop()),
		NewDispatcher(BackendRabbitMQ, nil, zap.NewNop()),
	} {
		res := d.Dispatch(context.Background(), dispatchAsset("image"))
		assert.False(t, res.Dispatched)
		assert.Empty(t, res.Warning)
		assert.Equal(t, BackendNone, res.Backend)
	}
}
