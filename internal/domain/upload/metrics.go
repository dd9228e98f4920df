package upload

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer captures pipeline telemetry.
type Observer interface {
	ObserveProcessed(target string, duration time.Duration, bytes int64)
	ObserveRejected(target string, kind Kind)
	ObserveFailure(target, stage string)
}

type nopObserver struct{}

func (nopObserver) ObserveProcessed(string, time.Duration, int64) {}
func (nopObserver) ObserveRejected(string, Kind) {}
func (nopObserver) ObserveFailure(string, string) {}

// PrometheusObserver exports pipeline metrics.
type PrometheusObserver struct {
	duration *prometheus.HistogramVec
	bytes    *prometheus.CounterVec
	rejected *prometheus.CounterVec
	failures *prometheus.CounterVec
}

// NewPrometheusObserver registers the upload metrics on reg, reusing
// collectors that are already registered.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "recipehub_upload"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &PrometheusObserver{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_duration_seconds",
			Help:      "Time spent transforming one uploaded image.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"target"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processed_bytes_total",
			Help:      "Bytes of source images that were processed successfully.",
		}, []string{"target"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_total",
			Help:      "Uploads rejected before processing.",
		}, []string{"target", "kind"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Uploads that failed after being accepted.",
		}, []string{"target", "stage"}),
	}

	var err error
	if o.duration, err = register(reg, o.duration); err != nil {
		return nil, err
	}
	if o.bytes, err = register(reg, o.bytes); err != nil {
		return nil, err
	}
	if o.rejected, err = register(reg, o.rejected); err != nil {
		return nil, err
	}
	if o.failures, err = register(reg, o.failures); err != nil {
		return nil, err
	}
	return o, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, fmt.Errorf("register upload metric: %w", err)
}

func (o *PrometheusObserver) ObserveProcessed(target string, d time.Duration, bytes int64) {
	o.duration.WithLabelValues(target).Observe(d.Seconds())
	o.bytes.WithLabelValues(target).Add(float64(bytes))
}

func (o *PrometheusObserver) ObserveRejected(target string, kind Kind) {
	o.rejected.WithLabelValues(target, string(kind)).Inc()
}

func (o *PrometheusObserver) ObserveFailure(target, stage string) {
	o.failures.WithLabelValues(target, stage).Inc()
}

var _ Observer = (*PrometheusObserver)(nil)
