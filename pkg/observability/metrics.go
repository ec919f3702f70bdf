package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/resscene/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds the ResScene collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	restores   *prometheus.CounterVec
	duration   prometheus.Histogram
}

// NewMetrics registers the collectors. sceneCount, if not nil, backs the
// resscene_scenes gauge.
func NewMetrics(sceneCount func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resscene_scene_operations_total",
				Help: "Scene store and activation operations by outcome",
			},
			[]string{"op", "result"},
		),
		restores: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resscene_entity_restores_total",
				Help: "Per-entity restore outcomes",
			},
			[]string{"domain", "status"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "resscene_activation_duration_seconds",
			Help:    "Duration of scene activations",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
	}
	m.registry.MustRegister(
		m.operations,
		m.restores,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if sceneCount != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "resscene_scenes",
				Help: "Scenes currently held by the store",
			},
			func() float64 { return float64(sceneCount()) },
		))
	}
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks that record into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSceneSaved: func(_ context.Context, e *domain.SceneEvent) {
			m.operations.WithLabelValues("save", result(e.Err)).Inc()
		},
		OnSceneDeleted: func(_ context.Context, e *domain.SceneEvent) {
			m.operations.WithLabelValues("delete", result(e.Err)).Inc()
		},
		OnSceneActivated: func(_ context.Context, e *domain.ActivationEvent) {
			res := ResultOK
			if !e.Report.OK() {
				res = ResultError
			}
			m.operations.WithLabelValues("activate", res).Inc()
			m.duration.Observe(e.Report.Duration().Seconds())
		},
		OnEntityRestored: func(_ context.Context, e *domain.RestoreEvent) {
			m.restores.WithLabelValues(domain.EntityDomain(e.Outcome.EntityID), string(e.Outcome.Status)).Inc()
		},
	}
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
