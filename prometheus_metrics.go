/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package lockprobe

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PromReporter exports tick and request metrics of one runner, every runner has its own registry
type PromReporter struct {
	registry *prometheus.Registry
	server   *http.Server

	tickSuccessRatio prometheus.Gauge
	tickP50          prometheus.Gauge
	tickP95          prometheus.Gauge
	tickP99          prometheus.Gauge
	tickMax          prometheus.Gauge
	tickRPS          prometheus.Gauge
	requests         *prometheus.CounterVec
	latency          *prometheus.HistogramVec
}

func NewPromReporter(runnerName string) *PromReporter {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	labels := prometheus.Labels{"runner": runnerName}
	return &PromReporter{
		registry: reg,
		tickSuccessRatio: f.NewGauge(prometheus.GaugeOpts{
			Name:        "lockprobe_tick_success_ratio",
			Help:        "Success requests ratio",
			ConstLabels: labels,
		}),
		tickP50: f.NewGauge(prometheus.GaugeOpts{
			Name:        "lockprobe_tick_p50",
			Help:        "Response time 50 Percentile",
			ConstLabels: labels,
		}),
		tickP95: f.NewGauge(prometheus.GaugeOpts{
			Name:        "lockprobe_tick_p95",
			Help:        "Response time 95 Percentile",
			ConstLabels: labels,
		}),
		tickP99: f.NewGauge(prometheus.GaugeOpts{
			Name:        "lockprobe_tick_p99",
			Help:        "Response time 99 Percentile",
			ConstLabels: labels,
		}),
		tickMax: f.NewGauge(prometheus.GaugeOpts{
			Name:        "lockprobe_tick_max",
			Help:        "Response time MAX",
			ConstLabels: labels,
		}),
		tickRPS: f.NewGauge(prometheus.GaugeOpts{
			Name:        "lockprobe_tick_rps",
			Help:        "Requests per second rate",
			ConstLabels: labels,
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "lockprobe_requests_total",
			Help:        "Attack results by request label and status code, code is 0 on transport errors",
			ConstLabels: labels,
		}, []string{"label", "code"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "lockprobe_request_duration_seconds",
			Help:        "Attack duration by request label",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}, []string{"label"}),
	}
}

// Registry returns runner registry
func (m *PromReporter) Registry() *prometheus.Registry {
	return m.registry
}

func (m *PromReporter) reportTick(tm *TickMetrics) {
	m.tickP50.Set(float64(tm.Metrics.Latencies.P50.Milliseconds()))
	m.tickP95.Set(float64(tm.Metrics.Latencies.P95.Milliseconds()))
	m.tickP99.Set(float64(tm.Metrics.Latencies.P99.Milliseconds()))
	m.tickMax.Set(float64(tm.Metrics.Latencies.Max.Milliseconds()))
	m.tickSuccessRatio.Set(tm.Metrics.Success)
	m.tickRPS.Set(tm.Metrics.Rate)
}

func (m *PromReporter) reportResult(res AttackResult) {
	m.requests.WithLabelValues(res.DoResult.RequestLabel, strconv.Itoa(res.DoResult.StatusCode)).Inc()
	m.latency.WithLabelValues(res.DoResult.RequestLabel).Observe(res.Elapsed.Seconds())
}

// Serve starts /metrics endpoint, and /debug/pprof if withPprof
func (m *PromReporter) Serve(port int, withPprof bool, l *Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	if withPprof {
		pprofHandlers(mux)
	}
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return errors.Wrapf(err, "listen metrics port %d", port)
	}
	m.server = &http.Server{Handler: mux}
	go func() {
		if err := m.server.Serve(lis); err != nil && err != http.ErrServerClosed {
			l.Errorf("metrics server: %v", err)
		}
	}()
	l.Infof("serving metrics on :%d/metrics", port)
	return nil
}

// Shutdown stops metrics endpoint
func (m *PromReporter) Shutdown() {
	if m.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = m.server.Shutdown(ctx)
}

func pprofHandlers(r *http.ServeMux) {
	r.HandleFunc("/debug/pprof/", pprof.Index)
	r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	r.HandleFunc("/debug/pprof/profile", pprof.Profile)
	r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	r.HandleFunc("/debug/pprof/trace", pprof.Trace)
}
