/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package lockprobe

import (
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/pkg/errors"
)

// handleShutdownSignal cancels the test on SIGINT/SIGTERM, returned func stops listening
func (r *Runner) handleShutdownSignal() func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case <-done:
			return
		case <-r.TimeoutCtx.Done():
			return
		case sig := <-sigs:
			r.L.Infof("exit signal received, exiting")
			if r.Cfg.GoroutinesDump {
				buf := make([]byte, 1<<20)
				stacklen := runtime.Stack(buf, true)
				r.L.Infof("=== received SIGTERM ===\n*** goroutine dump...\n%s\n*** end\n", buf[:stacklen])
			}
			r.interrupt(sig.String())
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

// CreateFileOrReplace creates file in dir, truncating existing one
func CreateFileOrReplace(dir, fname string) (*os.File, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "create report dir %s", dir)
		}
	}
	fpath, err := filepath.Abs(filepath.Join(dir, fname))
	if err != nil {
		return nil, errors.Wrapf(err, "resolve path %s", fname)
	}
	file, err := os.Create(fpath)
	if err != nil {
		return nil, errors.Wrapf(err, "create file %s", fpath)
	}
	return file, nil
}

// MaxRPS returns max value, 0 if there are no values
func MaxRPS(array []float64) float64 {
	if len(array) == 0 {
		return 0
	}
	var max = array[0]
	for _, value := range array {
		if max < value {
			max = value
		}
	}
	return max
}
