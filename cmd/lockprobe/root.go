/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/insolar/lockprobe"
)

// errRunFailed run finished but the verdict is failed
var errRunFailed = errors.New("run failed")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lockprobe",
		Short:         "lockprobe - rate limit probes for /health",
		Long:          "lockprobe fires health check probes with API_KEY or X-Forwarded-For headers to exercise token and ip rate limits",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newScenariosCmd(), newReportCmd())
	return root
}

// exit codes, interrupted follows the shell convention for SIGINT
const (
	exitOK          = 0
	exitFailed      = 1
	exitError       = 2
	exitInterrupted = 130
)

func execute() int {
	return exitCode(newRootCmd().ExecuteContext(context.Background()))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errRunFailed):
		return exitFailed
	case errors.Is(err, lockprobe.ErrInterrupted):
		fmt.Fprintln(os.Stderr, "interrupted, summary is partial")
		return exitInterrupted
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitError
	}
}
