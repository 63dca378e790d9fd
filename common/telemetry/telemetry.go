package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lyzr/workflow-router/common/editor"
	"github.com/lyzr/workflow-router/common/logger"
)

// Telemetry holds observability components
type Telemetry struct {
	log       *logger.Logger
	pprofAddr string
	pprof     *http.Server
	registry  *prometheus.Registry

	syncOps      *prometheus.CounterVec
	saveDuration prometheus.Histogram
	saveFailures *prometheus.CounterVec
	historyDepth prometheus.Histogram
	opDuration   *prometheus.HistogramVec
}

// New creates telemetry components with a private registry
func New(pprofPort int, log *logger.Logger) *Telemetry {
	reg := prometheus.NewRegistry()
	t := &Telemetry{
		log:       log,
		pprofAddr: fmt.Sprintf("localhost:%d", pprofPort),
		registry:  reg,
		syncOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vwf_sync_operations_total",
				Help: "Store operations issued, by table and operation",
			},
			[]string{"table", "op"},
		),
		saveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vwf_save_duration_seconds",
			Help:    "Wall time of successful canvas saves",
			Buckets: prometheus.DefBuckets,
		}),
		saveFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vwf_save_failures_total",
				Help: "Canvas saves aborted, by the step that failed",
			},
			[]string{"step"},
		),
		historyDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vwf_history_depth",
			Help:    "Undo stack depth observed after each canvas mutation",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		}),
		opDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vwf_operation_duration_seconds",
				Help:    "Wall time of slow service operations such as model calls",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"operation"},
		),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		t.syncOps,
		t.saveDuration,
		t.saveFailures,
		t.historyDepth,
		t.opDuration,
	)
	return t
}

// Start starts the pprof listener
func (t *Telemetry) Start(ctx context.Context) error {
	t.pprof = &http.Server{
		Addr:              t.pprofAddr,
		Handler:           http.DefaultServeMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		t.log.Info("pprof server starting", "addr", t.pprofAddr)
		if err := t.pprof.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.log.Error("pprof server error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the pprof listener down
func (t *Telemetry) Stop(ctx context.Context) error {
	if t.pprof == nil {
		return nil
	}
	return t.pprof.Shutdown(ctx)
}

// Handler serves the registry in the Prometheus text format
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{Registry: t.registry})
}

// Registry exposes the registry so callers can add their own collectors
func (t *Telemetry) Registry() *prometheus.Registry {
	return t.registry
}

// SaveCompleted implements editor.Recorder
func (t *Telemetry) SaveCompleted(elapsed time.Duration, report editor.SaveReport) {
	t.saveDuration.Observe(elapsed.Seconds())
	t.log.Debug("save completed",
		"duration_ms", elapsed.Milliseconds(),
		"nodes_updated", report.NodesUpdated,
		"edges_inserted", report.EdgesInserted,
		"edges_deleted", report.EdgesDeleted,
	)
}

// SaveFailed implements editor.Recorder
func (t *Telemetry) SaveFailed(step string) {
	t.saveFailures.WithLabelValues(step).Inc()
}

// ObserveHistoryDepth records the undo depth of a session
func (t *Telemetry) ObserveHistoryDepth(past int) {
	t.historyDepth.Observe(float64(past))
}

// RecordDuration observes the time since start under the operation label
func (t *Telemetry) RecordDuration(operation string, start time.Time) {
	duration := time.Since(start)
	t.opDuration.WithLabelValues(operation).Observe(duration.Seconds())
	t.log.Debug("operation completed",
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
	)
}

var _ editor.Recorder = (*Telemetry)(nil)
