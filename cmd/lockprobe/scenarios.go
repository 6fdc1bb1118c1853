/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/insolar/lockprobe"
	"github.com/insolar/lockprobe/probes"
)

var (
	scenarioNameStyle = lipgloss.NewStyle().Bold(true).Width(14)
	scenarioDescr     = map[string]string{
		probes.ScenarioCheck:     "unnamed probe, API_KEY header, reported as /health",
		probes.ScenarioTokenLock: "\"" + probes.TokenLockLabel + "\", API_KEY header",
		probes.ScenarioIPLock:    "\"" + probes.IPLockLabel + "\", X-Forwarded-For header",
		probes.ScenarioLock:      "token lock and ip lock probes picked with equal weight",
	}
)

func newScenariosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List scenarios",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range lockprobe.RegisteredAttackers() {
				fmt.Fprintln(cmd.OutOrStdout(), lipgloss.JoinHorizontal(lipgloss.Top,
					scenarioNameStyle.Render(name),
					scenarioDescr[name],
				))
			}
		},
	}
}
