/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package lockprobe

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/ratelimit"
)

const (
	DefaultResultsQueueCapacity = 100_000
	MetricsLogFile              = "requests_%s_%s_%d.csv"
	PercsLogFile                = "percs_%s_%s_%d.csv"
	ReportGraphFile             = "percs_%s_%s_%d.html"
	ReportPNGFile               = "percs_%s_%s_%d.png"
)

var (
	ResultsCsvHeader = []string{"RequestLabel", "BeginTimeNano", "EndTimeNano", "Elapsed", "StatusCode", "Error"}
	PercsCsvHeader   = []string{"Runner", "Tick", "RPS", "P50", "P95", "P99"}
)

type TickMetrics struct {
	Samples  []AttackResult
	Metrics  *Metrics
	Reported bool
}

// Runner provides test context for attacking target with constant amount of runners with a schedule.
// Runner is one-shot, create a new one for every test.
type Runner struct {
	// Name of a runner
	Name string
	// Cfg runner config
	Cfg *RunnerConfig
	// prototype from which all attackers cloned
	attackerPrototype Attack
	// target RPS for step, changed every step
	targetRPS int
	// ratelimiter for keeping constant rps inside test step
	rl ratelimit.Limiter
	// TimeoutCtx test timeout ctx
	TimeoutCtx context.Context
	// CancelFunc cancels the test
	CancelFunc context.CancelFunc
	// next schedule chan to signal to attack, closed when schedule is over
	next chan attackToken
	// attackers cloned for a prototype
	attackers   []Attack
	attackersWg *sync.WaitGroup
	// results of all attackers, closed when every attacker exited
	results chan AttackResult
	// closed when all results are processed
	collected chan struct{}
	// metrics for every received tick (completed requests)
	receivedTickMetricsMu *sync.Mutex
	receivedTickMetrics   map[int]*TickMetrics
	// metrics for every request label
	labelMetricsMu *sync.Mutex
	labelMetrics   map[string]*Metrics
	// uniq error messages
	uniqErrors map[string]int
	// Failed is 1 when success ratio or first error check failed
	Failed int64
	// Report csv report, nil if disabled
	Report *Report
	// interrupted is 1 when test was stopped by a signal or by cancelled parent context
	interrupted    int32
	HTTPClient     *http.Client
	FastHTTPClient *FastHTTPClient
	PromReporter   *PromReporter
	L              *Logger
}

// NewRunner creates new runner with constant amount of attackers by RunnerConfig
func NewRunner(cfg *RunnerConfig, a Attack) (*Runner, error) {
	if a == nil {
		return nil, errNoAttackPrototype
	}
	cfg.DefaultCfgValues()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid runner config")
	}
	r := &Runner{
		Name:                  cfg.Name,
		Cfg:                   cfg,
		attackerPrototype:     a,
		targetRPS:             cfg.StartRPS,
		rl:                    ratelimit.New(cfg.StartRPS),
		next:                  make(chan attackToken),
		attackers:             make([]Attack, 0),
		attackersWg:           &sync.WaitGroup{},
		results:               make(chan AttackResult, DefaultResultsQueueCapacity),
		collected:             make(chan struct{}),
		receivedTickMetricsMu: &sync.Mutex{},
		receivedTickMetrics:   make(map[int]*TickMetrics),
		labelMetricsMu:        &sync.Mutex{},
		labelMetrics:          make(map[string]*Metrics),
		uniqErrors:            make(map[string]int),
		HTTPClient:            NewLoggingHTTPClient(cfg.DumpTransport, cfg.AttackerTimeout),
		FastHTTPClient:        NewLoggingFastHTTPClient(cfg.DumpTransport),
		PromReporter:          NewPromReporter(cfg.Name),
		L:                     NewLogger(cfg).With("runner", cfg.Name),
	}
	attackersAmount := cfg.Attackers
	// open world attacker is shared between all request goroutines
	if cfg.SystemMode == OpenWorldSystem {
		attackersAmount = 1
	}
	for i := 0; i < attackersAmount; i++ {
		atk := r.attackerPrototype.Clone(r)
		if err := atk.Setup(*r.Cfg); err != nil {
			return nil, errors.Wrapf(err, "%s #%d", errAttackerSetup, i)
		}
		r.attackers = append(r.attackers, atk)
	}
	if cfg.ReportOptions.CSV {
		report, err := NewReport(r.Cfg, r.L)
		if err != nil {
			return nil, err
		}
		r.Report = report
	}
	return r, nil
}

// Run runs the test, returns max rps among completed ticks
func (r *Runner) Run(serverCtx context.Context) (float64, error) {
	if serverCtx == nil {
		serverCtx = context.Background()
	}
	if r.Cfg.WaitBeforeSec > 0 {
		r.L.Infof("waiting for %d seconds before start", r.Cfg.WaitBeforeSec)
		select {
		case <-serverCtx.Done():
			return 0, errors.Wrap(ErrInterrupted, "before start")
		case <-time.After(time.Duration(r.Cfg.WaitBeforeSec) * time.Second):
		}
	}
	r.L.Infof("runner started, mode: %s, target: %s", r.Cfg.SystemMode, r.Cfg.TargetUrl)
	r.TimeoutCtx, r.CancelFunc = context.WithTimeout(serverCtx, time.Duration(r.Cfg.TestTimeSec)*time.Second)
	defer r.CancelFunc()

	if r.Cfg.Prometheus.Enable {
		if err := r.PromReporter.Serve(r.Cfg.Prometheus.Port, r.Cfg.Prometheus.Pprof, r.L); err != nil {
			return 0, err
		}
		defer r.PromReporter.Shutdown()
	}

	r.attackersWg.Add(len(r.attackers))
	for atkIdx, attacker := range r.attackers {
		switch r.Cfg.SystemMode {
		case OpenWorldSystem:
			go asyncAttack(attacker, r)
		case PrivateSystem:
			r.L.Debugf("starting attacker: %d", atkIdx)
			go attack(attacker, r, atkIdx)
		}
	}
	go func() {
		r.attackersWg.Wait()
		close(r.results)
	}()
	stopSignals := r.handleShutdownSignal()
	defer stopSignals()
	r.schedule()
	r.collectResults()
	<-r.collected
	r.CancelFunc()
	r.teardown()
	r.L.Infof("runner exited")
	maxRPS := r.maxRPS()
	r.L.Infof("max rps: %.2f", maxRPS)
	if r.Report != nil {
		if err := r.Report.flushLogs(); err != nil {
			return maxRPS, err
		}
		r.Report.plot()
	}
	if serverCtx.Err() != nil {
		r.interrupt("parent context is done")
	}
	if r.IsInterrupted() {
		return maxRPS, ErrInterrupted
	}
	return maxRPS, nil
}

// IsInterrupted reports whether test was stopped before its schedule was over by a signal or parent context
func (r *Runner) IsInterrupted() bool {
	return atomic.LoadInt32(&r.interrupted) == 1
}

// interrupt marks test as interrupted and stops it
func (r *Runner) interrupt(reason string) {
	if atomic.CompareAndSwapInt32(&r.interrupted, 0, 1) {
		r.L.Infof("test interrupted: %s", reason)
	}
	r.CancelFunc()
}

// IsFailed reports whether test verdict is failed
func (r *Runner) IsFailed() bool {
	return atomic.LoadInt64(&r.Failed) > 0
}

// schedule creates schedule plan for a test
func (r *Runner) schedule() {
	go func() {
		defer close(r.next)
		var (
			currentStep         = 1
			currentTick         = 1
			totalRequestsFired  = 0
			requestsFiredInTick = 0
		)
		for {
			if r.Cfg.MaxRequests > 0 && totalRequestsFired >= r.Cfg.MaxRequests {
				r.L.Infof("max requests fired: %d", totalRequestsFired)
				return
			}
			r.rl.Take()
			select {
			case <-r.TimeoutCtx.Done():
				r.L.Infof("total requests fired: %d", totalRequestsFired)
				return
			case r.next <- attackToken{
				TargetRPS: r.targetRPS,
				Step:      currentStep,
				Tick:      currentTick,
			}:
			}
			totalRequestsFired++
			requestsFiredInTick++
			if requestsFiredInTick == r.targetRPS {
				currentTick++
				requestsFiredInTick = 0
				r.L.Debugf("current active goroutines: %d", runtime.NumGoroutine())
				if r.stepping() && currentTick%r.Cfg.StepDurationSec == 0 {
					r.targetRPS += r.Cfg.StepRPS
					r.rl = ratelimit.New(r.targetRPS)
					currentStep++
					r.L.Infof("next step: step -> %d, rps -> %d", currentStep, r.targetRPS)
				}
			}
		}
	}()
}

// stepping is false for constant load
func (r *Runner) stepping() bool {
	return r.Cfg.StepRPS > 0 && r.Cfg.StepDurationSec > 0
}

// collectResults collects attackers Results and writes them to one of report options
func (r *Runner) collectResults() {
	go func() {
		defer close(r.collected)
		totalRequestsStored := 0
		for res := range r.results {
			r.L.Debugf("received result: %s", res)
			totalRequestsStored++

			errorForReport := "ok"
			if res.DoResult.Error != "" {
				r.uniqErrors[res.DoResult.Error]++
				r.L.Debugf("attacker error: %s", res.DoResult.Error)
				errorForReport = res.DoResult.Error
				if r.Cfg.FailOnFirstError {
					r.fail("first error: %s", res.DoResult.Error)
				}
			}

			if r.Report != nil {
				r.Report.writeResultEntry(res, errorForReport)
			}
			r.PromReporter.reportResult(res)
			r.processLabelMetrics(res)
			r.processTickMetrics(res)
		}
		r.L.Infof("total requests stored: %d", totalRequestsStored)
		r.printErrors()
	}()
}

// processTickMetrics add attack result to tick metrics, if it's last result in tick then report
func (r *Runner) processTickMetrics(res AttackResult) {
	r.receivedTickMetricsMu.Lock()
	defer r.receivedTickMetricsMu.Unlock()
	if _, ok := r.receivedTickMetrics[res.AttackToken.Tick]; !ok {
		r.receivedTickMetrics[res.AttackToken.Tick] = &TickMetrics{
			Samples: make([]AttackResult, 0),
			Metrics: NewMetrics(),
		}
	}
	currentTickMetrics := r.receivedTickMetrics[res.AttackToken.Tick]
	currentTickMetrics.Samples = append(currentTickMetrics.Samples, res)
	if len(currentTickMetrics.Samples) != res.AttackToken.TargetRPS || currentTickMetrics.Reported {
		return
	}
	for _, s := range currentTickMetrics.Samples {
		currentTickMetrics.Metrics.add(s)
	}
	currentTickMetrics.Metrics.update()
	r.L.Infof(
		"step: %d, tick: %d, rate [%.4f -> %v], perc: 50 [%v] 95 [%v] 99 [%v], # requests [%d], %% success [%.2f]",
		res.AttackToken.Step,
		res.AttackToken.Tick,
		currentTickMetrics.Metrics.Rate,
		res.AttackToken.TargetRPS,
		currentTickMetrics.Metrics.Latencies.P50,
		currentTickMetrics.Metrics.Latencies.P95,
		currentTickMetrics.Metrics.Latencies.P99,
		currentTickMetrics.Metrics.Requests,
		currentTickMetrics.Metrics.successLogEntry(),
	)
	if r.Cfg.SuccessRatio > 0 && currentTickMetrics.Metrics.Success < r.Cfg.SuccessRatio {
		r.fail("tick %d success ratio %.2f < %.2f", res.AttackToken.Tick, currentTickMetrics.Metrics.Success, r.Cfg.SuccessRatio)
	}
	if r.Report != nil {
		r.Report.writePercentilesEntry(res, currentTickMetrics.Metrics)
	}
	r.PromReporter.reportTick(currentTickMetrics)
	currentTickMetrics.Reported = true
}

// processLabelMetrics aggregates results by request label for the summary
func (r *Runner) processLabelMetrics(res AttackResult) {
	r.labelMetricsMu.Lock()
	defer r.labelMetricsMu.Unlock()
	m, ok := r.labelMetrics[res.DoResult.RequestLabel]
	if !ok {
		m = NewMetrics()
		r.labelMetrics[res.DoResult.RequestLabel] = m
	}
	m.add(res)
}

// fail marks test as failed once and stops it
func (r *Runner) fail(format string, args ...interface{}) {
	if atomic.CompareAndSwapInt64(&r.Failed, 0, 1) {
		r.L.Errorf("test failed, "+format, args...)
		r.CancelFunc()
	}
}

func (r *Runner) teardown() {
	for idx, a := range r.attackers {
		if err := a.Teardown(); err != nil {
			r.L.Errorf("attacker %d teardown: %v", idx, err)
		}
	}
}

// printErrors print uniq errors
func (r *Runner) printErrors() {
	if len(r.uniqErrors) == 0 {
		return
	}
	r.L.Infof("Uniq errors:")
	for e, count := range r.uniqErrors {
		r.L.Infof("error: %s, count: %d", e, count)
	}
}

// maxRPS calculate max rps for test among reported ticks
func (r *Runner) maxRPS() float64 {
	r.receivedTickMetricsMu.Lock()
	defer r.receivedTickMetricsMu.Unlock()
	rates := make([]float64, 0)
	for _, m := range r.receivedTickMetrics {
		if m.Reported {
			rates = append(rates, m.Metrics.Rate)
		}
	}
	return MaxRPS(rates)
}
