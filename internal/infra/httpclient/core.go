package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/lumenhq/dam/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// ProcessorClient submits processing jobs to an external processor service over HTTP.
type ProcessorClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewProcessorClient creates a new ProcessorClient with OpenTelemetry instrumentation
func NewProcessorClient(cfg *config.Config, log *zap.Logger) *ProcessorClient {
	timeout := time.Duration(cfg.Processor.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ProcessorClient{
		BaseURL: cfg.Processor.BaseURL,
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Logger: log,
	}
}

// JobAccepted is the processor's acknowledgement of a submitted job.
type JobAccepted struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// SubmitJob posts payload to {BaseURL}/api/v1/jobs/{kind}. Any non-2xx status is an error.
func (c *ProcessorClient) SubmitJob(ctx context.Context, kind string, payload any) (*JobAccepted, error) {
	if c.BaseURL == "" {
		return nil, errors.New("processor base url is not configured")
	}
	endpoint := fmt.Sprintf("%s/api/v1/jobs/%s", c.BaseURL, kind)

	body, err := sonic.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.Logger.Error("submit_job request failed",
			zap.String("kind", kind),
			zap.Int("status_code", resp.StatusCode),
			zap.String("body", string(respBody)))
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result JobAccepted
	if len(respBody) > 0 {
		if err := sonic.Unmarshal(respBody, &result); err != nil {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return &result, nil
}
