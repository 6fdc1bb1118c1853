/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package probes

import (
	"github.com/insolar/lockprobe"
)

// Scenario names registered in lockprobe attacker registry
const (
	ScenarioCheck     = "check"
	ScenarioTokenLock = "token_lock"
	ScenarioIPLock    = "ip_lock"
	ScenarioLock      = "lock"
)

// Scenario params read from RunnerConfig.AttackerParams
const (
	ParamToken        = "token"
	ParamForwardedFor = "forwarded_for"
	ParamTransport    = "transport"
)

func init() {
	lockprobe.RegisterAttacker(ScenarioCheck, checkScenario)
	lockprobe.RegisterAttacker(ScenarioTokenLock, tokenLockScenario)
	lockprobe.RegisterAttacker(ScenarioIPLock, ipLockScenario)
	lockprobe.RegisterAttacker(ScenarioLock, lockScenario)
}

// Params values of scenario params with defaults applied
type Params struct {
	Token        string
	ForwardedFor string
	Transport    Transport
}

func ParseParams(params map[string]string) (Params, error) {
	p := Params{
		Token:        DefaultToken,
		ForwardedFor: DefaultForwardedFor,
	}
	if v := params[ParamToken]; v != "" {
		p.Token = v
	}
	if v := params[ParamForwardedFor]; v != "" {
		p.ForwardedFor = v
	}
	t, err := ParseTransport(params[ParamTransport])
	if err != nil {
		return p, err
	}
	p.Transport = t
	return p, nil
}

func checkScenario(params map[string]string) (lockprobe.Attack, error) {
	p, err := ParseParams(params)
	if err != nil {
		return nil, err
	}
	return NewHealthAttack(CheckDefinition(p.Token), p.Transport), nil
}

func tokenLockScenario(params map[string]string) (lockprobe.Attack, error) {
	p, err := ParseParams(params)
	if err != nil {
		return nil, err
	}
	return NewHealthAttack(TokenLockDefinition(p.Token), p.Transport), nil
}

func ipLockScenario(params map[string]string) (lockprobe.Attack, error) {
	p, err := ParseParams(params)
	if err != nil {
		return nil, err
	}
	return NewHealthAttack(IPLockDefinition(p.ForwardedFor), p.Transport), nil
}

// lockScenario both lock probes in one user, picked with equal weight
func lockScenario(params map[string]string) (lockprobe.Attack, error) {
	p, err := ParseParams(params)
	if err != nil {
		return nil, err
	}
	return NewTaskSet(
		WeightedTask{Attack: NewHealthAttack(TokenLockDefinition(p.Token), p.Transport), Weight: 1},
		WeightedTask{Attack: NewHealthAttack(IPLockDefinition(p.ForwardedFor), p.Transport), Weight: 1},
	), nil
}
