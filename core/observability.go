package core

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// operationEvent is one finished service operation, reported once as a
// counter, a latency histogram and a structured log line.
type operationEvent struct {
	operation string
	elapsed   time.Duration
	err       error
	fields    map[string]any
}

func newOperationEvent(operation string, startedAt time.Time, err error, fields map[string]any) operationEvent {
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	return operationEvent{
		operation: operation,
		elapsed:   time.Since(startedAt),
		err:       err,
		fields:    cloneFields(fields),
	}
}

func (e operationEvent) status() string {
	if e.err != nil {
		return "failure"
	}
	return "success"
}

func (e operationEvent) tags() map[string]string {
	tags := map[string]string{
		MetricTagOperation: e.operation,
		MetricTagStatus:    e.status(),
	}
	for _, key := range []string{MetricTagProvider, MetricTagCredentialType} {
		value, ok := e.fields[key]
		if !ok || value == nil {
			continue
		}
		if text := strings.TrimSpace(fmt.Sprint(value)); text != "" {
			tags[key] = text
		}
	}
	return tags
}

func (e operationEvent) logFields() map[string]any {
	out := cloneFields(e.fields)
	out["event_type"] = e.operation
	out["status"] = e.status()
	out["duration_ms"] = e.elapsed.Milliseconds()
	if e.err == nil {
		return out
	}
	out["error"] = e.err.Error()
	var richErr *goerrors.Error
	if goerrors.As(e.err, &richErr) {
		out["error_category"] = fmt.Sprint(richErr.Category)
		out["error_text_code"] = richErr.TextCode
	}
	return out
}

func (s *Service) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if s == nil {
		return
	}
	event := newOperationEvent(operation, startedAt, err, fields)
	tags := event.tags()
	s.recordCounter(ctx, OperationCounterName(event.operation), 1, tags)
	s.recordHistogram(ctx, OperationDurationName(event.operation), float64(event.elapsed.Milliseconds()), tags)

	if err != nil {
		s.logError(ctx, event.operation+" failed", event.logFields())
		return
	}
	s.logInfo(ctx, event.operation+" succeeded", event.logFields())
}

func (s *Service) logInfo(ctx context.Context, message string, fields map[string]any) {
	s.logWithLevel(ctx, "info", message, fields)
}

func (s *Service) logWarn(ctx context.Context, message string, fields map[string]any) {
	s.logWithLevel(ctx, "warn", message, fields)
}

func (s *Service) logError(ctx context.Context, message string, fields map[string]any) {
	s.logWithLevel(ctx, "error", message, fields)
}

// logWithLevel redacts secrets before anything reaches the logger. Loggers
// that accept fields get them attached; the rest get key/value args.
func (s *Service) logWithLevel(ctx context.Context, level string, message string, fields map[string]any) {
	if s == nil || s.logger == nil {
		return
	}
	fields = RedactSensitiveMap(fields)
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch level {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (s *Service) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.IncCounter(ctx, name, value, cloneTags(tags))
}

func (s *Service) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.ObserveHistogram(ctx, name, value, cloneTags(tags))
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	return maps.Clone(fields)
}

func flattenFields(fields map[string]any) []any {
	args := make([]any, 0, len(fields)*2)
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	return strings.NewReplacer(" ", "_", "-", "_").Replace(strings.TrimSpace(strings.ToLower(operation)))
}
