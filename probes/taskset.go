/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package probes

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/insolar/lockprobe"
)

var ErrEmptyTaskSet = errors.New("task set has no tasks")

// WeightedTask task of a TaskSet, tasks with zero weight are treated as weight 1
type WeightedTask struct {
	Attack lockprobe.Attack
	Weight int
}

// TaskSet runs one of its tasks per Do, picked randomly by weight
type TaskSet struct {
	tasks []WeightedTask
	total int

	mu  *sync.Mutex
	rnd *rand.Rand
}

func NewTaskSet(tasks ...WeightedTask) *TaskSet {
	ts := &TaskSet{
		tasks: make([]WeightedTask, 0, len(tasks)),
		mu:    &sync.Mutex{},
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, t := range tasks {
		if t.Weight <= 0 {
			t.Weight = 1
		}
		ts.total += t.Weight
		ts.tasks = append(ts.tasks, t)
	}
	return ts
}

func (t *TaskSet) Clone(r *lockprobe.Runner) lockprobe.Attack {
	tasks := make([]WeightedTask, 0, len(t.tasks))
	for _, wt := range t.tasks {
		tasks = append(tasks, WeightedTask{Attack: wt.Attack.Clone(r), Weight: wt.Weight})
	}
	return NewTaskSet(tasks...)
}

func (t *TaskSet) Setup(c lockprobe.RunnerConfig) error {
	if len(t.tasks) == 0 {
		return ErrEmptyTaskSet
	}
	for i, wt := range t.tasks {
		if err := wt.Attack.Setup(c); err != nil {
			return errors.Wrapf(err, "task #%d", i)
		}
	}
	return nil
}

func (t *TaskSet) Do(ctx context.Context) lockprobe.DoResult {
	return t.pick().Do(ctx)
}

func (t *TaskSet) pick() lockprobe.Attack {
	t.mu.Lock()
	n := t.rnd.Intn(t.total)
	t.mu.Unlock()
	for _, wt := range t.tasks {
		if n < wt.Weight {
			return wt.Attack
		}
		n -= wt.Weight
	}
	return t.tasks[len(t.tasks)-1].Attack
}

func (t *TaskSet) Teardown() error {
	var firstErr error
	for _, wt := range t.tasks {
		if err := wt.Attack.Teardown(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
