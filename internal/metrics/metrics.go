// Package metrics exposes search and process metrics in Prometheus format.
package metrics

import (
	"context"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Outcome labels for RequestsTotal.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds a private registry and the collectors registered on it.
type Metrics struct {
	registry *prometheus.Registry

	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	candidates prometheus.Histogram
	matches    prometheus.Histogram
	memUsage   prometheus.Gauge
	cpuUsage   prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "image_search_requests_total",
			Help: "Total number of search requests processed",
		}, []string{"transport", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "image_search_duration_seconds",
			Help:    "Search latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"transport"}),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "image_search_candidates",
			Help:    "Threshold-passing candidates per search, before suppression",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		matches: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "image_search_matches",
			Help:    "Reported matches per search",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}),
		memUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "process_resident_memory_megabytes",
			Help: "Resident memory usage in Megabytes",
		}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "process_cpu_usage_percent",
			Help: "CPU usage in percent",
		}),
	}
	m.registry.MustRegister(m.requests, m.duration, m.candidates, m.matches, m.memUsage, m.cpuUsage)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveSearch records one finished request.
func (m *Metrics) ObserveSearch(transport string, elapsed time.Duration, candidates, matches int, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.requests.WithLabelValues(transport, outcome).Inc()
	m.duration.WithLabelValues(transport).Observe(elapsed.Seconds())
	if err == nil {
		m.candidates.Observe(float64(candidates))
		m.matches.Observe(float64(matches))
	}
}

// StartSampler updates the process gauges every interval until ctx is done.
// It blocks; run it in its own goroutine. A non-positive interval samples
// every five seconds.
func (m *Metrics) StartSampler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		zap.L().Warn("process metrics disabled", zap.Error(err))
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	m.sample(ctx, proc)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample(ctx, proc)
		}
	}
}

func (m *Metrics) sample(ctx context.Context, proc *process.Process) {
	if mem, err := proc.MemoryInfoWithContext(ctx); err == nil {
		m.memUsage.Set(float64(mem.RSS / 1024 / 1024))
	}
	if cpu, err := proc.CPUPercentWithContext(ctx); err == nil {
		m.cpuUsage.Set(math.Round(cpu*100) / 100)
	}
}

// Serve exposes Handler on addr at /metrics until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
