// Package metrics exposes Prometheus metrics for the telemetry cycle.
//
// Every method is safe to call on a nil *Metrics, so components can run
// without metrics wired in.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wxnode/wxnode-go/pkg/sensor"
)

const namespace = "wxnode"

// Metrics holds the agent's collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	publishes      *prometheus.CounterVec
	publishLatency prometheus.Histogram
	recordBytes    prometheus.Histogram
	cycles         prometheus.Counter
	inbound        prometheus.Counter
	channelValue   *prometheus.GaugeVec
	connected      prometheus.Gauge
	loopRunning    prometheus.Gauge
	subscriptions  prometheus.Gauge
}

// New creates the collectors and registers them, together with the Go
// runtime collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "Publish attempts by outcome.",
		}, []string{"source", "status"}),
		publishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Time from publish request to transport acknowledgement.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		recordBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "record_bytes",
			Help:      "Size of encoded records.",
			Buckets:   prometheus.LinearBuckets(120, 10, 9),
		}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_cycles_total",
			Help:      "Publish loop iterations.",
		}),
		inbound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Messages received on subscribed topics.",
		}),
		channelValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_value",
			Help:      "Current simulated channel value.",
		}, []string{"channel"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gateway_connected",
			Help:      "1 while a gateway session is open.",
		}),
		loopRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loop_running",
			Help:      "1 while the publish loop runs.",
		}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriptions_active",
			Help:      "Occupied subscription slots.",
		}),
	}

	m.reg.MustRegister(
		m.publishes, m.publishLatency, m.recordBytes, m.cycles, m.inbound,
		m.channelValue, m.connected, m.loopRunning, m.subscriptions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// ObservePublish records one publish attempt. source is "loop" or "shell".
func (m *Metrics) ObservePublish(source, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.publishes.WithLabelValues(source, status).Inc()
	m.publishLatency.Observe(d.Seconds())
}

// ObserveCycle records one loop iteration.
func (m *Metrics) ObserveCycle(values sensor.Values, recordSize int) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.recordBytes.Observe(float64(recordSize))
	for i, v := range values {
		m.channelValue.WithLabelValues(sensor.ChannelID(i).String()).Set(v)
	}
}

// IncInbound counts a received message.
func (m *Metrics) IncInbound() {
	if m == nil {
		return
	}
	m.inbound.Inc()
}

// SetConnected sets the gateway session gauge.
func (m *Metrics) SetConnected(on bool) {
	if m == nil {
		return
	}
	m.connected.Set(boolToFloat(on))
}

// SetLoopRunning sets the loop gauge.
func (m *Metrics) SetLoopRunning(on bool) {
	if m == nil {
		return
	}
	m.loopRunning.Set(boolToFloat(on))
}

// SetSubscriptions sets the subscription gauge.
func (m *Metrics) SetSubscriptions(n int) {
	if m == nil {
		return
	}
	m.subscriptions.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Serve exposes /metrics and /healthz on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("metrics endpoint listening", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
