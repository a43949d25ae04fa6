package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/clickfit/clickfit/internal/model"
)

// Observer captures telemetry for storage operations.
type Observer interface {
	RecordPut(driver string, duration time.Duration, sizeBytes int64, err error)
	RecordDelete(driver string, duration time.Duration, err error)
	RecordList(driver string, duration time.Duration, count int, err error)
}

// PrometheusObserver exports storage metrics to Prometheus.
type PrometheusObserver struct {
	duration     *prometheus.HistogramVec
	errors       *prometheus.CounterVec
	storedBytes  *prometheus.CounterVec
	listedAssets *prometheus.GaugeVec
}

// NewPrometheusObserver registers put/delete/list metrics.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "clickfit_storage"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	observer := &PrometheusObserver{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of storage operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"driver", "operation"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Count of failed storage operations.",
		}, []string{"driver", "operation", "reason"}),
		storedBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stored_bytes_total",
			Help:      "Cumulative size of successfully stored assets.",
		}, []string{"driver"}),
		listedAssets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "assets",
			Help:      "Number of assets seen by the most recent listing.",
		}, []string{"driver"}),
	}

	var err error
	if observer.duration, err = register(reg, observer.duration); err != nil {
		return nil, err
	}
	if observer.errors, err = register(reg, observer.errors); err != nil {
		return nil, err
	}
	if observer.storedBytes, err = register(reg, observer.storedBytes); err != nil {
		return nil, err
	}
	if observer.listedAssets, err = register(reg, observer.listedAssets); err != nil {
		return nil, err
	}

	return observer, nil
}

// register reuses an already registered collector of the same shape
func register[C prometheus.Collector](reg prometheus.Registerer, collector C) (C, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return collector, fmt.Errorf("register storage metric: %w", err)
}

func (o *PrometheusObserver) RecordPut(driver string, duration time.Duration, sizeBytes int64, err error) {
	o.duration.WithLabelValues(driver, "put").Observe(duration.Seconds())
	if err != nil {
		o.errors.WithLabelValues(driver, "put", reason(err)).Inc()
		return
	}
	o.storedBytes.WithLabelValues(driver).Add(float64(sizeBytes))
}

func (o *PrometheusObserver) RecordDelete(driver string, duration time.Duration, err error) {
	o.duration.WithLabelValues(driver, "delete").Observe(duration.Seconds())
	if err != nil {
		o.errors.WithLabelValues(driver, "delete", reason(err)).Inc()
	}
}

func (o *PrometheusObserver) RecordList(driver string, duration time.Duration, count int, err error) {
	o.duration.WithLabelValues(driver, "list").Observe(duration.Seconds())
	if err != nil {
		o.errors.WithLabelValues(driver, "list", reason(err)).Inc()
		return
	}
	o.listedAssets.WithLabelValues(driver).Set(float64(count))
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRemote):
		return "remote"
	case errors.Is(err, ErrIO):
		return "io"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "rejected"
	}
}

type nopObserver struct{}

func (nopObserver) RecordPut(string, time.Duration, int64, error) {}

func (nopObserver) RecordDelete(string, time.Duration, error) {}

func (nopObserver) RecordList(string, time.Duration, int, error) {}

// Instrument wraps a Storage so every operation is reported to observer
func Instrument(store Storage, observer Observer) Storage {
	if observer == nil {
		observer = nopObserver{}
	}
	return &instrumented{Storage: store, observer: observer}
}

type instrumented struct {
	Storage
	observer Observer
}

func (i *instrumented) Put(ctx context.Context, body io.Reader, originalName, mimeType string) (*model.Asset, error) {
	start := time.Now()
	asset, err := i.Storage.Put(ctx, body, originalName, mimeType)
	var size int64
	if asset != nil {
		size = asset.Size
	}
	i.observer.RecordPut(i.Driver(), time.Since(start), size, err)
	return asset, err
}

func (i *instrumented) Delete(ctx context.Context, identifier string) error {
	start := time.Now()
	err := i.Storage.Delete(ctx, identifier)
	i.observer.RecordDelete(i.Driver(), time.Since(start), err)
	return err
}

func (i *instrumented) List(ctx context.Context) ([]*model.Asset, error) {
	start := time.Now()
	assets, err := i.Storage.List(ctx)
	i.observer.RecordList(i.Driver(), time.Since(start), len(assets), err)
	return assets, err
}
