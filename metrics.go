/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package lockprobe

import (
	"net/http"
	"strconv"
	"time"

	"github.com/streadway/quantile"
)

// Metrics aggregates attack results of a tick or of a request label, derived fields are valid after update
type Metrics struct {
	Latencies LatencyMetrics
	Requests  uint64
	// Rate requests per second over the span of request begin times
	Rate float64
	// Success ratio of results without error and with 2xx/3xx or no status
	Success     float64
	StatusCodes map[string]int
	// Errors uniq error messages in order of appearance
	Errors []string

	firstBegin time.Time
	lastBegin  time.Time
	total      time.Duration
	success    int64
	errors     map[string]struct{}
	latencies  *quantile.Estimator
}

type LatencyMetrics struct {
	Mean time.Duration
	P50  time.Duration
	P95  time.Duration
	P99  time.Duration
	Max  time.Duration
}

func NewMetrics() *Metrics {
	m := &Metrics{}
	m.init()
	return m
}

func (m Metrics) successLogEntry() float64 {
	s := m.Success * 100.0
	if s < 0 {
		return 0
	}
	return s
}

// isSuccess status code is optional, attacks without http semantics report 0
func isSuccess(res DoResult) bool {
	if res.Error != "" {
		return false
	}
	return res.StatusCode == 0 || (res.StatusCode >= http.StatusOK && res.StatusCode < http.StatusBadRequest)
}

func (m *Metrics) add(r AttackResult) {
	m.Requests++
	if r.DoResult.StatusCode > 0 {
		m.StatusCodes[strconv.Itoa(r.DoResult.StatusCode)]++
	}
	m.total += r.Elapsed
	m.latencies.Add(float64(r.Elapsed))
	if r.Elapsed > m.Latencies.Max {
		m.Latencies.Max = r.Elapsed
	}
	if m.firstBegin.IsZero() || r.Begin.Before(m.firstBegin) {
		m.firstBegin = r.Begin
	}
	if r.Begin.After(m.lastBegin) {
		m.lastBegin = r.Begin
	}
	if e := r.DoResult.Error; e != "" {
		if _, ok := m.errors[e]; !ok {
			m.errors[e] = struct{}{}
			m.Errors = append(m.Errors, e)
		}
	}
	if isSuccess(r.DoResult) {
		m.success++
	}
}

// update computes rate, success ratio and percentiles
func (m *Metrics) update() {
	if m.Requests == 0 {
		return
	}
	n := float64(m.Requests)
	if secs := m.lastBegin.Sub(m.firstBegin).Seconds(); secs > 0 {
		m.Rate = n / secs
	}
	m.Success = float64(m.success) / n
	m.Latencies.Mean = time.Duration(float64(m.total) / n)
	m.Latencies.P50 = time.Duration(m.latencies.Get(0.50))
	m.Latencies.P95 = time.Duration(m.latencies.Get(0.95))
	m.Latencies.P99 = time.Duration(m.latencies.Get(0.99))
}

func (m *Metrics) init() {
	if m.latencies == nil {
		m.StatusCodes = map[string]int{}
		m.errors = map[string]struct{}{}
		m.latencies = quantile.New(
			quantile.Known(0.50, 0.01),
			quantile.Known(0.95, 0.001),
			quantile.Known(0.99, 0.0005),
		)
	}
}
