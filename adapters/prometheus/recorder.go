package prometheus

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-credvault/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// Labels every vault metric carries. Tags outside this set are dropped and
// missing ones are exported as empty strings.
var metricLabels = core.MetricTagKeys

var DefaultDurationBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

type Option func(*MetricsRecorder)

func WithNamespace(namespace string) Option {
	return func(r *MetricsRecorder) {
		r.namespace = sanitizeName(namespace)
	}
}

func WithBuckets(buckets []float64) Option {
	return func(r *MetricsRecorder) {
		if len(buckets) > 0 {
			r.buckets = append([]float64(nil), buckets...)
		}
	}
}

// WithErrorHandler receives collector registration failures. The recorder
// contract has no error return, so they are dropped without one.
func WithErrorHandler(fn func(error)) Option {
	return func(r *MetricsRecorder) {
		if fn != nil {
			r.onError = fn
		}
	}
}

// MetricsRecorder exports vault operation counters and histograms to a
// prometheus registerer. Collectors are created on first use per metric name.
type MetricsRecorder struct {
	registerer prom.Registerer
	namespace  string
	buckets    []float64

	mu         sync.Mutex
	counters   map[string]*prom.CounterVec
	histograms map[string]*prom.HistogramVec
	onError    func(error)
}

func NewMetricsRecorder(registerer prom.Registerer, opts ...Option) *MetricsRecorder {
	if registerer == nil {
		registerer = prom.DefaultRegisterer
	}
	recorder := &MetricsRecorder{
		registerer: registerer,
		buckets:    DefaultDurationBuckets,
		counters:   map[string]*prom.CounterVec{},
		histograms: map[string]*prom.HistogramVec{},
		onError:    func(error) {},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(recorder)
		}
	}
	return recorder
}

func (r *MetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	vec, err := r.counter(name)
	if err != nil {
		r.onError(err)
		return
	}
	vec.WithLabelValues(labelValues(tags)...).Add(float64(value))
}

func (r *MetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	vec, err := r.histogram(name)
	if err != nil {
		r.onError(err)
		return
	}
	vec.WithLabelValues(labelValues(tags)...).Observe(value)
}

func (r *MetricsRecorder) counter(name string) (*prom.CounterVec, error) {
	metricName := r.metricName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.counters[metricName]; ok {
		return vec, nil
	}
	vec := prom.NewCounterVec(prom.CounterOpts{
		Name: metricName,
		Help: "Count of " + strings.TrimSpace(name) + " events.",
	}, metricLabels)
	if err := r.registerer.Register(vec); err != nil {
		existing, ok := asAlreadyRegistered[*prom.CounterVec](err)
		if !ok {
			return nil, fmt.Errorf("prometheus: register counter %s: %w", metricName, err)
		}
		vec = existing
	}
	r.counters[metricName] = vec
	return vec, nil
}

func (r *MetricsRecorder) histogram(name string) (*prom.HistogramVec, error) {
	metricName := r.metricName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.histograms[metricName]; ok {
		return vec, nil
	}
	vec := prom.NewHistogramVec(prom.HistogramOpts{
		Name:    metricName,
		Help:    "Distribution of " + strings.TrimSpace(name) + ".",
		Buckets: r.buckets,
	}, metricLabels)
	if err := r.registerer.Register(vec); err != nil {
		existing, ok := asAlreadyRegistered[*prom.HistogramVec](err)
		if !ok {
			return nil, fmt.Errorf("prometheus: register histogram %s: %w", metricName, err)
		}
		vec = existing
	}
	r.histograms[metricName] = vec
	return vec, nil
}

func (r *MetricsRecorder) metricName(name string) string {
	metric := sanitizeName(name)
	if r.namespace != "" {
		return r.namespace + "_" + metric
	}
	return metric
}

func asAlreadyRegistered[T prom.Collector](err error) (T, bool) {
	var zero T
	already, ok := err.(prom.AlreadyRegisteredError)
	if !ok {
		return zero, false
	}
	existing, ok := already.ExistingCollector.(T)
	return existing, ok
}

func labelValues(tags map[string]string) []string {
	values := make([]string, len(metricLabels))
	for i, label := range metricLabels {
		values[i] = strings.TrimSpace(tags[label])
	}
	return values
}

// sanitizeName maps "credvault.begin.total" to "credvault_begin_total".
func sanitizeName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	var b strings.Builder
	b.Grow(len(name))
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r == '_', r == ':':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

var _ core.MetricsRecorder = (*MetricsRecorder)(nil)
