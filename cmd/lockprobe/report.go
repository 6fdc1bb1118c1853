/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/insolar/lockprobe"
)

func newReportCmd() *cobra.Command {
	var (
		title   string
		outHTML bool
		outPNG  bool
	)
	cmd := &cobra.Command{
		Use:   "report <percs.csv>",
		Short: "Render percentiles charts from csv",
		Long:  "This command renders html and png charts next to a percentiles csv written by `lockprobe run --csv`.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			csvPath := args[0]
			base := strings.TrimSuffix(csvPath, filepath.Ext(csvPath))
			if title == "" {
				title = filepath.Base(base)
			}
			if outHTML {
				if err := lockprobe.RenderPercsHTML(csvPath, base+".html", title); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), base+".html")
			}
			if outPNG {
				if err := lockprobe.RenderPercsPNG(csvPath, base+".png", title); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), base+".png")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "chart title, csv file name by default")
	cmd.Flags().BoolVar(&outHTML, "html", true, "render html chart")
	cmd.Flags().BoolVar(&outPNG, "png", true, "render png chart")
	return cmd
}
