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
	"sync"
	"time"
)

// Attack must be implemented by a service client.
type Attack interface {
	// Setup should establish the connection to the service
	// It may want to access the Config of the Runner.
	Setup(c RunnerConfig) error
	// Do performs one request and is executed in a separate goroutine.
	// The context is used to cancel the request on timeout.
	Do(ctx context.Context) DoResult
	// Teardown can be used to close the connection to the service
	Teardown() error
	// Clone should return a fresh new Attack
	// Make sure the new Attack has values for shared struct fields initialized at Setup.
	Clone(r *Runner) Attack
}

// DoResult is the return value of a Do call on an Attack.
type DoResult struct {
	// Label identifying the request that was send which is only used for reporting the Metrics.
	RequestLabel string `json:"request_label"`
	// The error that happened when sending the request or receiving the response.
	Error string `json:"error,omitempty"`
	// The HTTP status code.
	StatusCode int `json:"status_code,omitempty"`
	// Number of response body bytes received.
	BytesIn int64 `json:"bytes_in,omitempty"`
	// Number of request body bytes sent.
	BytesOut int64 `json:"bytes_out,omitempty"`
}

// AttackResult is a DoResult with timings and the token it was scheduled with
type AttackResult struct {
	AttackToken attackToken
	Begin, End  time.Time
	Elapsed     time.Duration
	DoResult    DoResult
}

func (a AttackResult) String() string {
	return fmt.Sprintf(
		"begin: %s, elapsed: %s, token: [%s], label: %s, status: %d, error: %q",
		a.Begin.Format(time.RFC3339Nano),
		a.Elapsed,
		a.AttackToken,
		a.DoResult.RequestLabel,
		a.DoResult.StatusCode,
		a.DoResult.Error,
	)
}

type attackToken struct {
	TargetRPS int
	Step      int
	Tick      int
}

func (a attackToken) String() string {
	return fmt.Sprintf("targetRPS: %d, step: %d, tick: %d", a.TargetRPS, a.Step, a.Tick)
}

type requestLabelKey struct{}

type requestLabel struct {
	mu    sync.Mutex
	label string
}

func (l *requestLabel) get() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.label
}

// SetRequestLabel names the request Do is about to send, the name is used to report Do as timed out
// when it does not return within attacker timeout. Without it timed out requests are labeled with runner name.
func SetRequestLabel(ctx context.Context, label string) {
	l, ok := ctx.Value(requestLabelKey{}).(*requestLabel)
	if !ok {
		return
	}
	l.mu.Lock()
	l.label = label
	l.mu.Unlock()
}

// attack receives schedule signal and attacks target calling Do() method, sending AttackResult with timings
func attack(a Attack, r *Runner, num int) {
	defer r.attackersWg.Done()
	l := r.L.With("attacker", num)
	for {
		select {
		case <-r.TimeoutCtx.Done():
			l.Debugf("stopping attacker")
			return
		case token, ok := <-r.next:
			if !ok {
				l.Debugf("schedule is over, stopping attacker")
				return
			}
			l.Debug("attacking")
			if res, ok := r.doAttack(a, token); ok {
				r.results <- res
			}
		}
	}
}

// asyncAttack starts new goroutine for every received token, Attack must be safe for concurrent Do()
func asyncAttack(a Attack, r *Runner) {
	defer r.attackersWg.Done()
	for token := range r.next {
		r.attackersWg.Add(1)
		go func(token attackToken) {
			defer r.attackersWg.Done()
			if res, ok := r.doAttack(a, token); ok {
				r.results <- res
			}
		}(token)
	}
	r.L.Debugf("schedule is over, open world dispatcher exited")
}

// doAttack calls Do() with attacker timeout, returns false if test has ended before Do() returned,
// such results are dropped and not considered as errors
func (r *Runner) doAttack(a Attack, token attackToken) (AttackResult, bool) {
	label := &requestLabel{}
	ctx, cancel := context.WithTimeout(
		context.WithValue(r.TimeoutCtx, requestLabelKey{}, label),
		time.Duration(r.Cfg.AttackerTimeout)*time.Second,
	)
	defer cancel()

	done := make(chan DoResult, 1)
	tStart := time.Now()
	go func() {
		done <- a.Do(ctx)
	}()

	var doResult DoResult
	select {
	case doResult = <-done:
	case <-ctx.Done():
		if r.TimeoutCtx.Err() != nil {
			return AttackResult{}, false
		}
		doResult = DoResult{RequestLabel: label.get(), Error: errAttackDoTimedOut}
		if doResult.RequestLabel == "" {
			doResult.RequestLabel = r.Name
		}
	}
	tEnd := time.Now()
	return AttackResult{
		AttackToken: token,
		Begin:       tStart,
		End:         tEnd,
		Elapsed:     tEnd.Sub(tStart),
		DoResult:    doResult,
	}, true
}
