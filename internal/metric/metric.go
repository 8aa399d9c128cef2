package metric

import (
	"context"
	"net/http"

	"github.com/openstore/openstore/internal/errors"
	"github.com/openstore/openstore/internal/query"
	"github.com/openstore/openstore/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "openstore"

const (
	OperationCreate = "create"
	OperationUpdate = "update"
)

// RegistryMetrics is safe to use as a nil pointer, every method is then a
// no-op.
type RegistryMetrics struct {
	logger   *zap.Logger
	registry *prometheus.Registry
	store    store.Store

	downloads   prometheus.Counter
	packages    *prometheus.GaugeVec
	submissions *prometheus.CounterVec
}

type Config struct {
	Logger *zap.Logger
	Store  store.Store
}

func New(cfg *Config) *RegistryMetrics {
	return &RegistryMetrics{
		logger:   cfg.Logger,
		registry: prometheus.NewRegistry(),
		store:    cfg.Store,
		downloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Number of package downloads redirected.",
		}),
		packages: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "packages",
			Help:      "Number of packages in the catalog.",
		}, []string{"published"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Number of package submissions by operation and result.",
		}, []string{"operation", "result"}),
	}
}

func (m *RegistryMetrics) RegisterAllMetrics() {
	if m == nil {
		return
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.downloads,
		m.packages,
		m.submissions,
	)
}

// Resync sets the package gauges from the store.
func (m *RegistryMetrics) Resync(ctx context.Context) {
	if m == nil || m.store == nil {
		return
	}

	for _, published := range []bool{true, false} {
		published := published
		n, err := m.store.Count(ctx, query.Query{Published: &published})
		if err != nil {
			m.logger.Warn("failed to resync package metrics", zap.Error(err))
			return
		}

		m.packages.WithLabelValues(publishedLabel(published)).Set(float64(n))
	}
}

// ObserveSubmission records the outcome of a pipeline run, err being nil on
// success.
func (m *RegistryMetrics) ObserveSubmission(operation string, err error) {
	if m == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = errors.KindOf(err).String()
	}

	m.submissions.WithLabelValues(operation, result).Inc()
}

func (m *RegistryMetrics) ObserveDownload() {
	if m == nil {
		return
	}
	m.downloads.Inc()
}

func (m *RegistryMetrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func publishedLabel(published bool) string {
	if published {
		return "true"
	}
	return "false"
}
