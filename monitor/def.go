package monitor

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"BlurServer/logger"
	iface "BlurServer/interface"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Metrics holds the server's collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	memUsage       prometheus.Gauge
	cpuUsage       prometheus.Gauge
	requests       *prometheus.CounterVec
	cycles         *prometheus.CounterVec
	filterFailures *prometheus.CounterVec
	dropped        prometheus.Counter
	cycleDuration  prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{Registry: prometheus.NewRegistry()}
	m.memUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "memory_usage_Megabytes",
		Help: "Memory usage in Megabytes",
	})
	m.cpuUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cpu_usage_percent",
		Help: "CPU usage in percent",
	})
	m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "requests_total",
		Help: "Total number of API requests processed",
	}, []string{"transport"})
	m.cycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "blur_cycles_total",
		Help: "Processing cycles by outcome",
	}, []string{"status"})
	m.filterFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "blur_filter_failures_total",
		Help: "Filter failures that fell back to the unfiltered input",
	}, []string{"mode"})
	m.dropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blur_dropped_frames_total",
		Help: "Frames dropped because the input queue was full",
	})
	m.cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "blur_cycle_duration_seconds",
		Help:    "Time spent in one processing cycle",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	})
	m.Registry.MustRegister(m.memUsage, m.cpuUsage, m.requests, m.cycles,
		m.filterFailures, m.dropped, m.cycleDuration)
	return m
}

func (m *Metrics) ObserveCycle(status iface.CycleStatus, d time.Duration) {
	m.cycles.WithLabelValues(status.String()).Inc()
	m.cycleDuration.Observe(d.Seconds())
}

func (m *Metrics) FilterFailure(mode iface.Mode) {
	m.filterFailures.WithLabelValues(mode.String()).Inc()
}

func (m *Metrics) FrameDropped() {
	m.dropped.Inc()
}

// Request counts one API call; transport is "grpc" or "http".
func (m *Metrics) Request(transport string) {
	m.requests.WithLabelValues(transport).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) CheckProcessInfo(p *process.Process) {
	if memInfo, err := p.MemoryInfo(); err == nil {
		m.memUsage.Set(float64(memInfo.RSS / 1024 / 1024))
	}
	if cpuPercent, err := p.CPUPercent(); err == nil {
		m.cpuUsage.Set(math.Round(cpuPercent*100) / 100)
	}
}

// StartMon serves /metrics on port and samples this process every 500ms
// until ctx is done.
func StartMon(ctx context.Context, port int, m *Metrics) error {
	pid, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return errors.Wrap(err, "monitor: self process")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log().Error("Prometheus server ListenAndServe error", zap.Error(err))
		}
	}()
	logger.Log().Info("Prometheus server started", zap.Int(logger.FieldPort, port))

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
checkPcs:
	for {
		select {
		case <-ctx.Done():
			break checkPcs
		case <-ticker.C:
			m.CheckProcessInfo(pid)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
