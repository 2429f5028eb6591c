package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/lumenhq/dam/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

var ErrEmptyKey = errors.New("object key is empty")

// S3Deps is the object store client used by ingestion. It works against AWS S3
// and S3-compatible services such as MinIO.
type S3Deps struct {
	Client   *s3.Client
	Uploader *manager.Uploader
	Presign  *s3.PresignClient
	Bucket   string
	SSE      string
	SSEKey   string
	// DefaultTTL applies when URLFor is called with ttl <= 0.
	DefaultTTL time.Duration
}

func NewS3(ctx context.Context, cfg *config.Config) (*S3Deps, error) {
	if cfg.S3.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3.Region),
	}
	if cfg.S3.AccessKey != "" && cfg.S3.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3.AccessKey, cfg.S3.SecretKey, ""),
		))
	}
	acfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	otelaws.AppendMiddlewares(&acfg.APIOptions)

	client := s3.NewFromConfig(acfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
		}
		o.UsePathStyle = cfg.S3.UsePathStyle
	})

	return &S3Deps{
		Client:     client,
		Uploader:   manager.NewUploader(client),
		Presign:    s3.NewPresignClient(client),
		Bucket:     cfg.S3.Bucket,
		SSE:        cfg.S3.SSE,
		SSEKey:     cfg.S3.SSEKMSKeyID,
		DefaultTTL: cfg.PresignExpire(),
	}, nil
}

// Put writes one object. Tags are stored as S3 object tags.
func (s *S3Deps) Put(ctx context.Context, key string, body io.Reader, contentType string, tags map[string]string) error {
	if key == "" {
		return ErrEmptyKey
	}
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if t := encodeTags(tags); t != "" {
		in.Tagging = aws.String(t)
	}
	switch s.SSE {
	case "AES256":
		in.ServerSideEncryption = types.ServerSideEncryptionAes256
	case "aws:kms":
		in.ServerSideEncryption = types.ServerSideEncryptionAwsKms
		if s.SSEKey != "" {
			in.SSEKMSKeyId = aws.String(s.SSEKey)
		}
	}

	if _, err := s.Uploader.Upload(ctx, in); err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// URLFor presigns a GET for key. A non-empty downloadName makes the browser
// save the object under that name, otherwise it is displayed inline.
func (s *S3Deps) URLFor(ctx context.Context, key string, downloadName string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if ttl <= 0 {
		ttl = s.DefaultTTL
	}
	in := &s3.GetObjectInput{
		Bucket:                     aws.String(s.Bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(ContentDisposition(downloadName)),
	}
	out, err := s.Presign.PresignGetObject(ctx, in, func(o *s3.PresignOptions) {
		o.Expires = ttl
	})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return out.URL, nil
}

// Delete removes keys in one batch. Empty keys are ignored.
func (s *S3Deps) Delete(ctx context.Context, keys []string) error {
	objs := make([]types.ObjectIdentifier, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		objs = append(objs, types.ObjectIdentifier{Key: aws.String(k)})
	}
	if len(objs) == 0 {
		return nil
	}

	out, err := s.Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.Bucket),
		Delete: &types.Delete{Objects: objs, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return fmt.Errorf("delete objects: %w", err)
	}
	if len(out.Errors) > 0 {
		e := out.Errors[0]
		return fmt.Errorf("delete %s: %s", aws.ToString(e.Key), aws.ToString(e.Message))
	}
	return nil
}

func ContentDisposition(downloadName string) string {
	if downloadName == "" {
		return "inline"
	}
	return mime.FormatMediaType("attachment", map[string]string{"filename": downloadName})
}

func encodeTags(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	v := url.Values{}
	for k, val := range tags {
		v.Set(k, val)
	}
	return v.Encode()
}
