package core

import (
	"context"
	"strings"
)

// NopMetricsRecorder discards every measurement. It backs the service
// when no recorder is configured so call sites never nil-check.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

var _ MetricsRecorder = NopMetricsRecorder{}

func (s *Service) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.IncCounter(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func (s *Service) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.ObserveHistogram(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

// observeTick publishes the outcome mix of one reconcile pass. Each
// bucket gets its own counter so completion and error rates can be
// graphed without parsing log lines.
func (s *Service) observeTick(ctx context.Context, report TickReport, err error) {
	if s == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	tags := map[string]string{"status": status}

	s.recordCounter(ctx, "storefront.reconcile.ticks", 1, tags)
	buckets := []struct {
		name  string
		value int
	}{
		{"storefront.reconcile.scanned", report.Scanned},
		{"storefront.reconcile.completed", report.Completed},
		{"storefront.reconcile.failed", report.Failed},
		{"storefront.reconcile.unresolved", report.Unresolved},
		{"storefront.reconcile.errors", report.Errors},
	}
	for _, bucket := range buckets {
		if bucket.value == 0 {
			continue
		}
		s.recordCounter(ctx, bucket.name, int64(bucket.value), tags)
	}
	s.recordHistogram(ctx, "storefront.reconcile.duration_ms", float64(report.Duration.Milliseconds()), tags)

	fields := map[string]any{
		"scanned":     report.Scanned,
		"completed":   report.Completed,
		"failed":      report.Failed,
		"unresolved":  report.Unresolved,
		"errors":      report.Errors,
		"duration_ms": report.Duration.Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
		s.logError(ctx, "reconcile tick failed", fields)
		return
	}
	s.logInfo(ctx, "reconcile tick finished", fields)
}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}
