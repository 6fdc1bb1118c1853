/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/insolar/lockprobe"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run probes against target",
		Long:  "This command fires the selected scenario against <target>/health and prints per label summary.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return runProbes(cmd, cfg)
		},
	}
	addRunFlags(cmd.Flags())
	return cmd
}

func runProbes(cmd *cobra.Command, cfg *runConfig) error {
	if cfg.Target == "" {
		return errors.New("target is required")
	}
	rc, err := cfg.runnerConfig()
	if err != nil {
		return err
	}
	atk, err := lockprobe.AttackerFromString(cfg.Scenario, rc.AttackerParams)
	if err != nil {
		return err
	}
	r, err := lockprobe.NewRunner(rc, atk)
	if err != nil {
		return err
	}
	r.L.Infof("scenario: %s, target: %s", cfg.Scenario, cfg.Target)
	// interrupted run still has a partial summary to show
	_, runErr := r.Run(cmd.Context())
	if runErr != nil && !errors.Is(runErr, lockprobe.ErrInterrupted) {
		return runErr
	}
	summary := r.Summary()
	if err := lockprobe.RenderSummary(cmd.OutOrStdout(), summary); err != nil {
		return err
	}
	if cfg.SummaryJSON != "" {
		if err := lockprobe.WriteSummaryJSON(cfg.SummaryJSON, summary); err != nil {
			return err
		}
	}
	if r.Report != nil {
		r.L.Infof("results: %s, percentiles: %s", r.Report.ResultsPath(), r.Report.PercentilesPath())
	}
	if r.IsFailed() {
		return errRunFailed
	}
	return runErr
}
