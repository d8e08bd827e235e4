package core

import (
	"context"
	"maps"
)

const (
	metricsPrefix = "credvault."

	MetricTagOperation      = "operation"
	MetricTagStatus         = "status"
	MetricTagProvider       = "provider"
	MetricTagCredentialType = "credential_type"
)

// MetricTagKeys lists every tag the service may attach. Exporters with fixed
// label sets use it as their label order.
var MetricTagKeys = []string{MetricTagOperation, MetricTagStatus, MetricTagProvider, MetricTagCredentialType}

// OperationCounterName is the counter bumped once per service operation.
func OperationCounterName(operation string) string {
	return metricsPrefix + normalizeOperation(operation) + ".total"
}

// OperationDurationName is the histogram of operation latency in milliseconds.
func OperationDurationName(operation string) string {
	return metricsPrefix + normalizeOperation(operation) + ".duration_ms"
}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// MultiMetricsRecorder fans every observation out to each recorder. Each
// recorder gets its own copy of the tags.
type MultiMetricsRecorder []MetricsRecorder

func (m MultiMetricsRecorder) IncCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	for _, recorder := range m {
		if recorder != nil {
			recorder.IncCounter(ctx, name, value, cloneTags(tags))
		}
	}
}

func (m MultiMetricsRecorder) ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	for _, recorder := range m {
		if recorder != nil {
			recorder.ObserveHistogram(ctx, name, value, cloneTags(tags))
		}
	}
}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	return maps.Clone(tags)
}

var (
	_ MetricsRecorder = NopMetricsRecorder{}
	_ MetricsRecorder = MultiMetricsRecorder{}
)
