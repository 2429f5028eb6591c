package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// Ingest pipeline metrics
	ingestCounter  metric.Int64Counter
	ingestDuration metric.Float64Histogram
	ingestBytes    metric.Int64Histogram

	// Non-fatal degradations
	thumbnailDegradedCounter metric.Int64Counter
	dispatchFailureCounter   metric.Int64Counter
	statusTransitionCounter  metric.Int64Counter
)

// InitIngestMetrics initializes ingestion-related metrics
func InitIngestMetrics() error {
	meter := otel.Meter("dam.ingest")

	var err error

	ingestCounter, err = meter.Int64Counter(
		"asset.ingest.count",
		metric.WithDescription("Number of asset ingestions by outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return err
	}

	ingestDuration, err = meter.Float64Histogram(
		"asset.ingest.duration",
		metric.WithDescription("Duration of asset ingestions"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	ingestBytes, err = meter.Int64Histogram(
		"asset.ingest.size",
		metric.WithDescription("Size of ingested originals"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	thumbnailDegradedCounter, err = meter.Int64Counter(
		"asset.thumbnail.degraded",
		metric.WithDescription("Thumbnails replaced by the placeholder"),
		metric.WithUnit("{thumbnail}"),
	)
	if err != nil {
		return err
	}

	dispatchFailureCounter, err = meter.Int64Counter(
		"asset.dispatch.failures",
		metric.WithDescription("Processing jobs that could not be submitted"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return err
	}

	statusTransitionCounter, err = meter.Int64Counter(
		"asset.status.transitions",
		metric.WithDescription("Asset status transitions applied from processing results"),
		metric.WithUnit("{transition}"),
	)
	return err
}

// RecordIngest records one finished ingestion. outcome is "success" or the abort kind.
func RecordIngest(ctx context.Context, outcome, assetType string, durationMs float64, size int64) {
	attrs := metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("asset_type", assetType),
	)
	if ingestCounter != nil {
		ingestCounter.Add(ctx, 1, attrs)
	}
	if ingestDuration != nil {
		ingestDuration.Record(ctx, durationMs, attrs)
	}
	if ingestBytes != nil && outcome == "success" {
		ingestBytes.Record(ctx, size, metric.WithAttributes(attribute.String("asset_type", assetType)))
	}
}

func RecordThumbnailDegraded(ctx context.Context, assetType, reason string) {
	if thumbnailDegradedCounter != nil {
		thumbnailDegradedCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("asset_type", assetType),
			attribute.String("reason", reason),
		))
	}
}

func RecordDispatchFailure(ctx context.Context, backend, jobKind string) {
	if dispatchFailureCounter != nil {
		dispatchFailureCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("job_kind", jobKind),
		))
	}
}

func RecordStatusTransition(ctx context.Context, from, to string) {
	if statusTransitionCounter != nil {
		statusTransitionCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("from", from),
			attribute.String("to", to),
		))
	}
}
