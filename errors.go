/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package lockprobe

import (
	"errors"
)

// ErrInterrupted is returned by Runner.Run when test was stopped by a signal or cancelled parent context,
// results collected before that are still reported
var ErrInterrupted = errors.New("test interrupted")

var (
	errAttackDoTimedOut  = "attack Do(ctx) timeout"
	errAttackerSetup     = errors.New("error when setup attacker")
	errNoAttackPrototype = errors.New("attack prototype is nil")
	errUnknownAttacker   = errors.New("unknown attacker")
	errEmptyCSV          = errors.New("empty csv, nothing to plot")
	errMalformedCSV      = errors.New("malformed csv")
)
