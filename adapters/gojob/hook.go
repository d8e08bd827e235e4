package gojob

import (
	"context"
	"strings"

	"github.com/goliatone/go-credvault/core"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
)

// ObservingHook reports job lifecycle events as log lines and as the same
// counter and histogram names the service uses for its operations.
type ObservingHook struct {
	logger  glog.Logger
	metrics core.MetricsRecorder
}

func NewObservingHook(logger glog.Logger, metrics core.MetricsRecorder) *ObservingHook {
	if metrics == nil {
		metrics = core.NopMetricsRecorder{}
	}
	return &ObservingHook{logger: glog.Ensure(logger), metrics: metrics}
}

func (h *ObservingHook) OnStart(ctx context.Context, event worker.Event) {
	h.logger.WithContext(ctx).Debug("job started", h.args(event)...)
}

func (h *ObservingHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.record(ctx, event, "success")
	h.logger.WithContext(ctx).Info("job succeeded", h.args(event)...)
}

func (h *ObservingHook) OnFailure(ctx context.Context, event worker.Event) {
	h.record(ctx, event, "failure")
	h.logger.WithContext(ctx).Error("job failed", h.args(event)...)
}

func (h *ObservingHook) OnRetry(ctx context.Context, event worker.Event) {
	h.record(ctx, event, "retry")
	h.logger.WithContext(ctx).Warn("job retry scheduled", h.args(event)...)
}

func (h *ObservingHook) record(ctx context.Context, event worker.Event, status string) {
	operation := jobOperation(event)
	tags := map[string]string{
		core.MetricTagOperation: operation,
		core.MetricTagStatus:    status,
	}
	h.metrics.IncCounter(ctx, core.OperationCounterName(operation), 1, tags)
	h.metrics.ObserveHistogram(ctx, core.OperationDurationName(operation), float64(event.Duration.Milliseconds()), tags)
}

func (h *ObservingHook) args(event worker.Event) []any {
	args := []any{"job_id", jobID(event), "attempt", event.Attempt}
	if event.Duration > 0 {
		args = append(args, "duration_ms", event.Duration.Milliseconds())
	}
	if event.Delay > 0 {
		args = append(args, "retry_in_ms", event.Delay.Milliseconds())
	}
	if event.Err != nil {
		args = append(args, "error", event.Err.Error())
	}
	return args
}

func jobID(event worker.Event) string {
	msg := event.Message
	if msg == nil && event.Delivery != nil {
		msg = event.Delivery.Message()
	}
	if msg == nil {
		return ""
	}
	return strings.TrimSpace(msg.JobID)
}

// jobOperation turns "credvault.refresh_credential" into
// "job.refresh_credential".
func jobOperation(event worker.Event) string {
	id := strings.TrimPrefix(jobID(event), "credvault.")
	if id == "" {
		id = "unknown"
	}
	return "job." + id
}

var _ worker.Hook = (*ObservingHook)(nil)
