package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lumenhq/dam/internal/infra/httpclient"
	"github.com/lumenhq/dam/internal/modules/model"
	"github.com/lumenhq/dam/internal/pkg/utils/mime"
	"github.com/lumenhq/dam/internal/telemetry"
	"go.uber.org/zap"
)

const (
	JobImageProcess    = "image.process"
	JobVideoTranscode  = "video.transcode"
	JobAudioProcess    = "audio.process"
	JobDocumentExtract = "document.extract"
	JobAssetProcess    = "asset.process"

	BackendRabbitMQ = "rabbitmq"
	BackendHTTP     = "http"
	BackendNone     = "none"
)

// ErrDispatchUnavailable is reported when no job backend could be reached at startup.
var ErrDispatchUnavailable = errors.New("processing job backend unavailable")

// JobKindFor maps an asset type to the downstream job kind.
func JobKindFor(assetType string) string {
	switch assetType {
	case mime.AssetImage:
		return JobImageProcess
	case mime.AssetVideo:
		return JobVideoTranscode
	case mime.AssetAudio:
		return JobAudioProcess
	case mime.AssetDocument:
		return JobDocumentExtract
	default:
		return JobAssetProcess
	}
}

// ProcessingJob is the message handed to the downstream processor.
type ProcessingJob struct {
	JobID        uuid.UUID `json:"job_id"`
	Kind         string    `json:"kind"`
	AssetID      uuid.UUID `json:"asset_id"`
	AssetType    string    `json:"asset_type"`
	OwnerID      uuid.UUID `json:"owner_id"`
	FileKey      string    `json:"file_key"`
	ThumbnailKey string    `json:"thumbnail_key"`
	PreviewKey   string    `json:"preview_key,omitempty"`
	MIME         string    `json:"mime"`
	Size         int64     `json:"size,string"`
	RequestedAt  time.Time `json:"requested_at"`
}

type DispatchResult struct {
	Dispatched bool      `json:"dispatched"`
	JobKind    string    `json:"job_kind"`
	JobID      uuid.UUID `json:"job_id,omitempty"`
	Backend    string    `json:"backend"`
	Warning    string    `json:"warning,omitempty"`
}

// JobSubmitter hands a job to one backend.
type JobSubmitter interface {
	Submit(ctx context.Context, job ProcessingJob) error
}

// JobPublisher is satisfied by the RabbitMQ publisher.
type JobPublisher interface {
	PublishJSON(ctx context.Context, exchangeName string, routingKey string, body any) error
}

type rabbitSubmitter struct {
	pub      JobPublisher
	exchange string
}

// NewRabbitMQSubmitter publishes jobs to exchange with the job kind as routing key.
func NewRabbitMQSubmitter(pub JobPublisher, exchange string) JobSubmitter {
	return &rabbitSubmitter{pub: pub, exchange: exchange}
}

func (s *rabbitSubmitter) Submit(ctx context.Context, job ProcessingJob) error {
	return s.pub.PublishJSON(ctx, s.exchange, job.Kind, job)
}

// ProcessorAPI is satisfied by httpclient.ProcessorClient.
type ProcessorAPI interface {
	SubmitJob(ctx context.Context, kind string, payload any) (*httpclient.JobAccepted, error)
}

type httpSubmitter struct{ api ProcessorAPI }

func NewHTTPSubmitter(api ProcessorAPI) JobSubmitter {
	return &httpSubmitter{api: api}
}

func (s *httpSubmitter) Submit(ctx context.Context, job ProcessingJob) error {
	_, err := s.api.SubmitJob(ctx, job.Kind, job)
	return err
}

type unavailableSubmitter struct{ cause error }

// NewUnavailableSubmitter fails every submission with cause. It stands in for a
// backend that could not be initialised so ingestion keeps working.
func NewUnavailableSubmitter(cause error) JobSubmitter {
	return unavailableSubmitter{cause: cause}
}

func (s unavailableSubmitter) Submit(context.Context, ProcessingJob) error {
	return fmt.Errorf("%w: %v", ErrDispatchUnavailable, s.cause)
}

// Dispatcher performs best-effort job hand-off. It never returns an error;
// failures come back as a warning on the result.
type Dispatcher interface {
	Dispatch(ctx context.Context, asset *model.Asset) DispatchResult
}

type dispatcher struct {
	backend string
	submit  JobSubmitter
	timeout time.Duration
	now     func() time.Time
	log     *zap.Logger
}

// NewDispatcher builds a dispatcher for backend. A nil submitter or backend
// "none" turns dispatch into a no-op.
func NewDispatcher(backend string, submit JobSubmitter, log *zap.Logger) Dispatcher {
	if submit == nil {
		backend = BackendNone
	}
	return &dispatcher{
		backend: backend,
		submit:  submit,
		timeout: 5 * time.Second,
		now:     time.Now,
		log:     log,
	}
}

func (d *dispatcher) Dispatch(ctx context.Context, asset *model.Asset) (res DispatchResult) {
	kind := JobKindFor(asset.AssetType)
	res = DispatchResult{JobKind: kind, Backend: d.backend}
	if d.backend == BackendNone {
		return res
	}

	job := ProcessingJob{
		JobID:        uuid.New(),
		Kind:         kind,
		AssetID:      asset.ID,
		AssetType:    asset.AssetType,
		OwnerID:      asset.OwnerID,
		FileKey:      asset.FileKey,
		ThumbnailKey: asset.ThumbnailKey,
		MIME:         asset.MIME,
		Size:         asset.Size,
		RequestedAt:  d.now().UTC(),
	}
	if asset.PreviewKey != nil {
		job.PreviewKey = *asset.PreviewKey
	}

	defer func() {
		if r := recover(); r != nil {
			res.Dispatched = false
			res.JobID = uuid.Nil
			res.Warning = fmt.Sprintf("processing job not submitted: %v", r)
			telemetry.RecordDispatchFailure(ctx, d.backend, kind)
			d.log.Error("dispatch panicked",
				zap.String("asset_id", asset.ID.String()),
				zap.String("job_kind", kind),
				zap.Any("panic", r))
		}
	}()

	// detached from request cancellation, bounded by d.timeout
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	if err := d.submit.Submit(sctx, job); err != nil {
		telemetry.RecordDispatchFailure(ctx, d.backend, kind)
		d.log.Warn("failed to dispatch processing job",
			zap.String("asset_id", asset.ID.String()),
			zap.String("job_kind", kind),
			zap.String("backend", d.backend),
			zap.Error(err))
		res.Warning = "processing job not submitted: " + err.Error()
		return res
	}

	res.Dispatched = true
	res.JobID = job.JobID
	return res
}
