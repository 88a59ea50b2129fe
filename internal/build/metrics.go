package build

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/tsbuild/internal/errors"
)

// Metrics holds the build metrics. A Metrics value can be shared by
// consecutive builds, e.g. the rebuilds of a dev session.
type Metrics struct {
	registry *prometheus.Registry

	buildsTotal      *prometheus.CounterVec
	stepDuration     *prometheus.HistogramVec
	sourceFiles      prometheus.Gauge
	assetFiles       prometheus.Gauge
	assetBytes       prometheus.Gauge
	lastSuccess      prometheus.Gauge
	compilerFailures *prometheus.CounterVec
}

// NewMetrics creates build metrics on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		buildsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tsbuild",
			Name:      "builds_total",
			Help:      "Total number of builds by result",
		}, []string{"result"}),

		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tsbuild",
			Name:      "step_duration_seconds",
			Help:      "Build step duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"step"}),

		sourceFiles: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "tsbuild",
			Name:      "source_files",
			Help:      "Number of files passed to the compiler in the last build",
		}),

		assetFiles: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "tsbuild",
			Name:      "static_files",
			Help:      "Number of static files copied in the last build",
		}),

		assetBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "tsbuild",
			Name:      "static_bytes",
			Help:      "Bytes of static files copied in the last build",
		}),

		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "tsbuild",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful build",
		}),

		compilerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tsbuild",
			Name:      "compiler_failures_total",
			Help:      "Compiler failures by error code",
		}, []string{"code"}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeStep(step string, d time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

func (m *Metrics) recordResult(err error) {
	if err == nil {
		m.buildsTotal.WithLabelValues("success").Inc()
		m.lastSuccess.SetToCurrentTime()
		return
	}
	m.buildsTotal.WithLabelValues("failure").Inc()

	var te *errors.TSBuildError
	if errors.As(err, &te) && te.Category == errors.CategoryCompile {
		m.compilerFailures.WithLabelValues(te.Code).Inc()
	}
}

// WriteTextfile writes the metrics in the Prometheus text format, for the
// node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.New("E144").
			WithDetail("Failed to write " + path).
			Wrap(err)
	}
	return nil
}
