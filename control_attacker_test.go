/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package lockprobe

import (
	"context"
	"sync/atomic"
	"time"
)

// controlAttacker sleeps *sleep ms per Do ignoring ctx, returns error once serviceError is closed
type controlAttacker struct {
	num          int
	serviceError chan bool
	calls        *int64
	torn         *int64
	sleep        *int64
	label        string
	r            *Runner
}

func (a *controlAttacker) Clone(r *Runner) Attack {
	if a.calls == nil {
		a.calls = new(int64)
	}
	if a.torn == nil {
		a.torn = new(int64)
	}
	if a.sleep == nil {
		a.sleep = new(int64)
	}
	return &controlAttacker{
		serviceError: a.serviceError,
		calls:        a.calls,
		torn:         a.torn,
		sleep:        a.sleep,
		label:        a.label,
		r:            r,
	}
}

func (a *controlAttacker) Setup(_ RunnerConfig) error {
	return nil
}

func (a *controlAttacker) Do(ctx context.Context) DoResult {
	label := a.r.Name
	if a.label != "" {
		label = a.label
		SetRequestLabel(ctx, label)
	}
	atomic.AddInt64(a.calls, 1)
	select {
	case <-a.serviceError:
		return DoResult{RequestLabel: label, Error: "service error"}
	default:
	}
	time.Sleep(time.Duration(atomic.LoadInt64(a.sleep)) * time.Millisecond)
	return DoResult{RequestLabel: label, StatusCode: 200}
}

func (a *controlAttacker) Teardown() error {
	atomic.AddInt64(a.torn, 1)
	return nil
}

func newControlAttacker(num int, serviceError chan bool, r *Runner) *controlAttacker {
	return &controlAttacker{
		num:          num,
		serviceError: serviceError,
		calls:        new(int64),
		torn:         new(int64),
		sleep:        new(int64),
		r:            r,
	}
}

// setSleep sets Do duration of every control attacker of r
func setSleep(r *Runner, ms int64) {
	for _, a := range r.attackers {
		atomic.StoreInt64(a.(*controlAttacker).sleep, ms)
	}
}

func serviceErrorAfter(se chan bool, t time.Duration) {
	go func() {
		time.Sleep(t)
		close(se)
	}()
}

type controllableConfig struct {
	R               *Runner
	ControlChan     chan bool
	AttackersAmount int
}

func withControllableAttackers(cfg controllableConfig) {
	attackers := make([]Attack, 0)
	for i := 0; i < cfg.AttackersAmount; i++ {
		attackers = append(attackers, newControlAttacker(i, cfg.ControlChan, cfg.R))
	}
	cfg.R.attackers = attackers
}

func testRunnerCfg() *RunnerConfig {
	return &RunnerConfig{
		Name:            "test_runner",
		Attackers:       1,
		AttackerTimeout: 1,
		StartRPS:        20,
		StepDurationSec: 2,
		StepRPS:         1,
		TestTimeSec:     5,
		LogLevel:        "error",
	}
}
