/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package lockprobe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func prepareAttack(t *testing.T) *Runner {
	r, err := NewRunner(testRunnerCfg(), &controlAttacker{})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.Cfg.TestTimeSec)*time.Second)
	t.Cleanup(cancel)
	r.TimeoutCtx = ctx
	r.CancelFunc = cancel
	return r
}

func TestCommonAttackSuccess(t *testing.T) {
	r := prepareAttack(t)
	setSleep(r, 10)

	r.attackersWg.Add(1)
	go attack(r.attackers[0], r, 0)
	r.next <- attackToken{Step: 1, Tick: 1}
	res := <-r.results
	require.Empty(t, res.DoResult.Error)
	require.Equal(t, r.Name, res.DoResult.RequestLabel)
	require.GreaterOrEqual(t, res.Elapsed, 10*time.Millisecond)
	close(r.next)
	r.attackersWg.Wait()
}

func TestCommonAttackTimeout(t *testing.T) {
	r := prepareAttack(t)
	setSleep(r, 2000)

	r.attackersWg.Add(1)
	go attack(r.attackers[0], r, 0)
	r.next <- attackToken{Step: 1, Tick: 1}
	res := <-r.results
	require.Equal(t, errAttackDoTimedOut, res.DoResult.Error)
	require.Equal(t, r.Name, res.DoResult.RequestLabel)
	close(r.next)
	r.attackersWg.Wait()
}

func TestCommonAttackTimeoutKeepsRequestLabel(t *testing.T) {
	r, err := NewRunner(testRunnerCfg(), &controlAttacker{label: "slow request"})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.Cfg.TestTimeSec)*time.Second)
	t.Cleanup(cancel)
	r.TimeoutCtx = ctx
	r.CancelFunc = cancel
	setSleep(r, 1500)

	res, ok := r.doAttack(r.attackers[0], attackToken{Step: 1, Tick: 1})
	require.True(t, ok)
	require.Equal(t, errAttackDoTimedOut, res.DoResult.Error)
	require.Equal(t, "slow request", res.DoResult.RequestLabel)
}

func TestCommonSetRequestLabelWithoutAttackContext(t *testing.T) {
	require.NotPanics(t, func() {
		SetRequestLabel(context.Background(), "label")
	})
}

func TestCommonAttackDroppedAfterTestEnd(t *testing.T) {
	r := prepareAttack(t)
	setSleep(r, 2000)
	go func() {
		time.Sleep(100 * time.Millisecond)
		r.CancelFunc()
	}()
	_, ok := r.doAttack(r.attackers[0], attackToken{Step: 1, Tick: 1})
	require.False(t, ok)
}

func TestCommonAsyncAttackEveryToken(t *testing.T) {
	r := prepareAttack(t)
	setSleep(r, 50)
	a := r.attackers[0].(*controlAttacker)

	r.attackersWg.Add(1)
	go asyncAttack(a, r)
	for i := 0; i < 10; i++ {
		r.next <- attackToken{TargetRPS: 10, Step: 1, Tick: 1}
	}
	close(r.next)
	r.attackersWg.Wait()
	require.Len(t, r.results, 10)
	require.Equal(t, int64(10), *a.calls)
}
