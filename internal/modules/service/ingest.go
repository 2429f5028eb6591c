package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lumenhq/dam/internal/modules/model"
	"github.com/lumenhq/dam/internal/pkg/keyname"
	"github.com/lumenhq/dam/internal/pkg/thumbnail"
	"github.com/lumenhq/dam/internal/pkg/utils/mime"
	"github.com/lumenhq/dam/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

const (
	DefaultCategory = "document"
	untitled        = "untitled"
	thumbnailMIME   = "image/jpeg"
)

var tracer = otel.Tracer("dam.ingest")

// ObjectStore is the subset of blob.S3Deps the pipeline needs.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string, tags map[string]string) error
	URLFor(ctx context.Context, key string, downloadName string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, keys []string) error
}

type ThumbnailDeriver interface {
	Derive(ctx context.Context, content []byte, mimeType, filename string) thumbnail.Derivation
}

type KeyNamer interface {
	Name(filename, assetType, actorID string) (keyname.Keys, error)
}

// IngestInput is one upload: the file bytes plus the form fields.
type IngestInput struct {
	ActorID     uuid.UUID `validate:"required"`
	Filename    string    `validate:"required,max=1024"`
	ContentType string
	Content     []byte

	Title              string `validate:"max=512"`
	Description        string `validate:"max=10000"`
	Category           string `validate:"max=128"`
	EventName          string `validate:"max=512"`
	Company            string `validate:"max=512"`
	Project            string `validate:"max=512"`
	Campaign           string `validate:"max=512"`
	ProductionYear     *int   `validate:"omitempty,gte=1800,lte=9999"`
	Usage              string `validate:"omitempty,oneof=internal public"`
	Visibility         string `validate:"omitempty,oneof=private team public"`
	ReadyForPublishing bool
	Tags               []string `validate:"max=100,dive,max=128"`
	Width              *int     `validate:"omitempty,gt=0"`
	Height             *int     `validate:"omitempty,gt=0"`
	Duration           *float64 `validate:"omitempty,gte=0"`
}

type IngestResult struct {
	Asset        *model.Asset
	DownloadURL  string
	ThumbnailURL string
	Job          DispatchResult
	Warnings     []string
	Degraded     bool
}

type IngestOptions struct {
	URLTTL          time.Duration
	CleanupOrphans  bool
	DefaultCategory string
}

type IngestService interface {
	Ingest(ctx context.Context, in IngestInput) (*IngestResult, error)
}

type ingestService struct {
	store      ObjectStore
	deriver    ThumbnailDeriver
	namer      KeyNamer
	meta       MetadataManager
	dispatcher Dispatcher
	validate   *validator.Validate
	opts       IngestOptions
	log        *zap.Logger
}

func NewIngestService(
	store ObjectStore,
	deriver ThumbnailDeriver,
	namer KeyNamer,
	meta MetadataManager,
	dispatcher Dispatcher,
	opts IngestOptions,
	log *zap.Logger,
) IngestService {
	if opts.URLTTL <= 0 {
		opts.URLTTL = 15 * time.Minute
	}
	if opts.DefaultCategory == "" {
		opts.DefaultCategory = DefaultCategory
	}
	return &ingestService{
		store:      store,
		deriver:    deriver,
		namer:      namer,
		meta:       meta,
		dispatcher: dispatcher,
		validate:   validator.New(),
		opts:       opts,
		log:        log,
	}
}

// run carries the per-request state through the stages.
type run struct {
	in        IngestInput
	mime      string
	assetType string
	deriv     thumbnail.Derivation
	keys      keyname.Keys
	written   []string
	warnings  []string
	log       *zap.Logger
}

func (s *ingestService) Ingest(ctx context.Context, in IngestInput) (res *IngestResult, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "asset.ingest", trace.WithAttributes(
		attribute.String("asset.filename", in.Filename),
		attribute.Int("asset.size", len(in.Content)),
	))
	r := &run{in: in, log: s.log.With(zap.String("filename", in.Filename), zap.String("actor_id", in.ActorID.String()))}

	defer func() {
		outcome := "success"
		var ie *IngestError
		if errors.As(err, &ie) {
			outcome = string(ie.Kind)
			span.RecordError(err)
			span.SetStatus(codes.Error, string(ie.Stage))
		}
		telemetry.RecordIngest(ctx, outcome, r.assetType, float64(time.Since(start).Milliseconds()), int64(len(in.Content)))
		span.End()
	}()

	// Validating
	if err := s.validateInput(r); err != nil {
		r.log.Warn("ingest rejected", zap.Error(err))
		return nil, abort(StageValidating, KindInvalidInput, err)
	}
	span.SetAttributes(attribute.String("asset.type", r.assetType), attribute.String("asset.mime", r.mime))
	r.log.Debug("ingest stage", zap.String("stage", string(StageDeriving)), zap.String("mime", r.mime))

	// Deriving
	r.deriv = s.derive(ctx, r)

	// Uploading
	r.log.Debug("ingest stage", zap.String("stage", string(StageUploading)))
	if err := s.upload(ctx, r); err != nil {
		r.log.Error("ingest storage write failed", zap.Strings("written", r.written), zap.Error(err))
		s.cleanup(ctx, r)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, abort(StageUploading, KindCanceled, ctxErr)
		}
		return nil, abort(StageUploading, KindStorage, err)
	}
	if err := ctx.Err(); err != nil {
		r.log.Warn("ingest canceled before commit", zap.Error(err))
		s.cleanup(ctx, r)
		return nil, abort(StageCommitting, KindCanceled, err)
	}

	// Committing
	r.log.Debug("ingest stage", zap.String("stage", string(StageCommitting)))
	asset, err := s.meta.Commit(ctx, CommitInput{
		Asset:   s.buildAsset(r),
		Tags:    in.Tags,
		ActorID: in.ActorID,
	})
	if err != nil {
		s.cleanup(ctx, r)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			r.log.Warn("ingest canceled during commit", zap.Error(err))
			return nil, abort(StageCommitting, KindCanceled, err)
		}
		r.log.Error("ingest metadata commit failed", zap.Error(err))
		return nil, abort(StageCommitting, KindCommit, err)
	}
	span.SetAttributes(attribute.String("asset.id", asset.ID.String()))

	// Dispatching
	r.log.Debug("ingest stage", zap.String("stage", string(StageDispatching)), zap.String("asset_id", asset.ID.String()))
	job := s.dispatcher.Dispatch(ctx, asset)
	if job.Warning != "" {
		r.warnings = append(r.warnings, job.Warning)
	}

	// Completed
	res = &IngestResult{
		Asset:    asset,
		Job:      job,
		Degraded: r.deriv.Degraded,
	}
	res.DownloadURL = s.mintURL(ctx, r, asset.FileKey, asset.OriginalFilename, "download")
	res.ThumbnailURL = s.mintURL(ctx, r, asset.ThumbnailKey, "", "thumbnail")
	res.Warnings = r.warnings

	r.log.Info("asset ingested",
		zap.String("asset_id", asset.ID.String()),
		zap.String("asset_type", asset.AssetType),
		zap.Int64("size", asset.Size),
		zap.Bool("degraded_thumbnail", r.deriv.Degraded),
		zap.Bool("job_dispatched", job.Dispatched),
		zap.Int("warnings", len(r.warnings)))
	return res, nil
}

func (s *ingestService) validateInput(r *run) error {
	if r.in.ActorID == uuid.Nil {
		return ErrMissingActor
	}
	if len(r.in.Content) == 0 {
		return ErrEmptyFile
	}
	if err := s.validate.Struct(r.in); err != nil {
		return fmt.Errorf("invalid fields: %w", err)
	}

	r.mime = mime.Resolve(r.in.ContentType, r.in.Content, r.in.Filename)
	assetType, ok := mime.ClassifyAssetType(r.mime)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, r.mime)
	}
	r.assetType = assetType
	return nil
}

func (s *ingestService) derive(ctx context.Context, r *run) thumbnail.Derivation {
	ctx, span := tracer.Start(ctx, "asset.ingest.derive")
	defer span.End()

	d := s.deriver.Derive(ctx, r.in.Content, r.mime, r.in.Filename)
	if len(d.Thumbnail) == 0 {
		d = thumbnail.Derivation{Thumbnail: thumbnail.Placeholder(), Degraded: true, Reason: thumbnail.ReasonEmpty}
	}
	if !d.Degraded {
		return d
	}

	span.SetAttributes(attribute.Bool("thumbnail.degraded", true), attribute.String("thumbnail.reason", d.Reason))
	telemetry.RecordThumbnailDegraded(ctx, r.assetType, d.Reason)
	// non-image types always get the placeholder; only an image that failed is worth reporting
	if r.assetType == mime.AssetImage {
		r.log.Warn("thumbnail derivation degraded to placeholder", zap.String("reason", d.Reason))
		r.warnings = append(r.warnings, "thumbnail replaced by placeholder: "+d.Reason)
	}
	return d
}

type object struct {
	key         string
	body        []byte
	contentType string
	role        string
}

func (s *ingestService) upload(ctx context.Context, r *run) error {
	ctx, span := tracer.Start(ctx, "asset.ingest.upload")
	defer span.End()

	keys, err := s.namer.Name(r.in.Filename, r.assetType, r.in.ActorID.String())
	if err != nil {
		return fmt.Errorf("name keys: %w", err)
	}
	r.keys = keys

	objects := []object{
		{key: keys.Original, body: r.in.Content, contentType: r.mime, role: keyname.RoleOriginal},
		{key: keys.Thumbnail, body: r.deriv.Thumbnail, contentType: thumbnailMIME, role: keyname.RoleThumbnail},
	}
	if len(r.deriv.Preview) > 0 {
		objects = append(objects, object{key: keys.Preview, body: r.deriv.Preview, contentType: thumbnailMIME, role: keyname.RolePreview})
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, o := range objects {
		g.Go(func() error {
			tags := map[string]string{
				"asset-type": r.assetType,
				"role":       o.role,
				"owner":      r.in.ActorID.String(),
			}
			if err := s.store.Put(gctx, o.key, bytes.NewReader(o.body), o.contentType, tags); err != nil {
				return fmt.Errorf("put %s: %w", o.role, err)
			}
			mu.Lock()
			r.written = append(r.written, o.key)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		return err
	}
	return nil
}

// cleanup removes objects written by an aborted ingestion when enabled.
// Otherwise they are left as orphans.
func (s *ingestService) cleanup(ctx context.Context, r *run) {
	if len(r.written) == 0 {
		return
	}
	if !s.opts.CleanupOrphans {
		r.log.Warn("aborted ingestion left orphaned objects", zap.Strings("keys", r.written))
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.store.Delete(cctx, r.written); err != nil {
		r.log.Warn("orphan cleanup failed", zap.Strings("keys", r.written), zap.Error(err))
		return
	}
	r.log.Info("orphaned objects removed", zap.Strings("keys", r.written))
}

func (s *ingestService) buildAsset(r *run) *model.Asset {
	in := r.in

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = filenameStem(in.Filename)
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = s.opts.DefaultCategory
	}
	usage := in.Usage
	if usage == "" {
		usage = model.UsageInternal
	}
	visibility := in.Visibility
	if visibility == "" {
		visibility = model.VisibilityPrivate
	}

	a := &model.Asset{
		Title:              title,
		Description:        in.Description,
		Category:           category,
		EventName:          in.EventName,
		Company:            in.Company,
		Project:            in.Project,
		Campaign:           in.Campaign,
		ProductionYear:     in.ProductionYear,
		FileKey:            r.keys.Original,
		ThumbnailKey:       r.keys.Thumbnail,
		OriginalFilename:   in.Filename,
		Size:               int64(len(in.Content)),
		MIME:               r.mime,
		Format:             mime.Format(in.Filename, r.mime),
		AssetType:          r.assetType,
		Width:              in.Width,
		Height:             in.Height,
		Duration:           in.Duration,
		Visibility:         visibility,
		Usage:              usage,
		ReadyForPublishing: in.ReadyForPublishing,
		Status:             model.StatusUploaded,
		Meta:               datatypes.JSONMap{},
		OwnerID:            in.ActorID,
	}
	if len(r.deriv.Preview) > 0 {
		preview := r.keys.Preview
		a.PreviewKey = &preview
	}
	// measured dimensions beat client hints
	if r.deriv.Width > 0 && r.deriv.Height > 0 {
		w, h := r.deriv.Width, r.deriv.Height
		a.Width, a.Height = &w, &h
	}
	if r.deriv.Degraded {
		a.Meta["thumbnail_placeholder"] = true
		a.Meta["thumbnail_reason"] = r.deriv.Reason
	}
	return a
}

func (s *ingestService) mintURL(ctx context.Context, r *run, key, downloadName, what string) string {
	u, err := s.store.URLFor(ctx, key, downloadName, s.opts.URLTTL)
	if err != nil {
		r.log.Warn("presign failed", zap.String("url", what), zap.String("key", key), zap.Error(err))
		r.warnings = append(r.warnings, fmt.Sprintf("%s url unavailable", what))
		return ""
	}
	return u
}

// filenameStem is the display title for an untitled upload.
func filenameStem(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	stem := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if stem == "" || stem == "." || stem == "/" {
		return untitled
	}
	return stem
}
