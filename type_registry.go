/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package lockprobe

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// AttackerFactory builds attack prototype from RunnerConfig.AttackerParams
type AttackerFactory func(params map[string]string) (Attack, error)

var (
	atkRegistryMu sync.RWMutex
	atkRegistry   = make(map[string]AttackerFactory)
)

// RegisterAttacker registers attacker factory by name, registering the same name twice replaces the factory
func RegisterAttacker(name string, f AttackerFactory) {
	atkRegistryMu.Lock()
	defer atkRegistryMu.Unlock()
	atkRegistry[name] = f
}

// AttackerFromString builds registered attacker
func AttackerFromString(name string, params map[string]string) (Attack, error) {
	atkRegistryMu.RLock()
	f, ok := atkRegistry[name]
	atkRegistryMu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(errUnknownAttacker, "%q", name)
	}
	return f(params)
}

// RegisteredAttackers sorted names of registered attackers
func RegisteredAttackers() []string {
	atkRegistryMu.RLock()
	defer atkRegistryMu.RUnlock()
	names := make([]string, 0, len(atkRegistry))
	for name := range atkRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
