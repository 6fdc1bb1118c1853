/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package lockprobe

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// LabelSummary aggregated results of one request label for the whole test
type LabelSummary struct {
	Label        string         `json:"label"`
	Requests     uint64         `json:"requests"`
	Failures     uint64         `json:"failures"`
	SuccessRatio float64        `json:"success_ratio"`
	StatusCodes  map[string]int `json:"status_codes"`
	P50          time.Duration  `json:"p50"`
	P95          time.Duration  `json:"p95"`
	P99          time.Duration  `json:"p99"`
	Max          time.Duration  `json:"max"`
	Errors       []string       `json:"errors,omitempty"`
}

// Summary returns per label summaries sorted by label
func (r *Runner) Summary() []LabelSummary {
	r.labelMetricsMu.Lock()
	defer r.labelMetricsMu.Unlock()
	res := make([]LabelSummary, 0, len(r.labelMetrics))
	for label, m := range r.labelMetrics {
		m.update()
		codes := make(map[string]int, len(m.StatusCodes))
		for k, v := range m.StatusCodes {
			codes[k] = v
		}
		res = append(res, LabelSummary{
			Label:        label,
			Requests:     m.Requests,
			Failures:     m.Requests - uint64(m.success),
			SuccessRatio: m.Success,
			StatusCodes:  codes,
			P50:          m.Latencies.P50,
			P95:          m.Latencies.P95,
			P99:          m.Latencies.P99,
			Max:          m.Latencies.Max,
			Errors:       append([]string(nil), m.Errors...),
		})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Label < res[j].Label })
	return res
}

var (
	summaryHeaderStyle = lipgloss.NewStyle().Bold(true).PaddingRight(2)
	summaryCellStyle   = lipgloss.NewStyle().PaddingRight(2)
	summaryFailStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).PaddingRight(2)
	summaryColumns     = []string{"Name", "# reqs", "# fails", "success %", "codes", "p50", "p95", "p99", "max"}
)

// RenderSummary writes summaries as a table
func RenderSummary(w io.Writer, summaries []LabelSummary) error {
	rows := make([][]string, 0, len(summaries)+1)
	rows = append(rows, summaryColumns)
	for _, s := range summaries {
		rows = append(rows, []string{
			s.Label,
			strconv.FormatUint(s.Requests, 10),
			strconv.FormatUint(s.Failures, 10),
			fmt.Sprintf("%.2f", s.SuccessRatio*100),
			formatStatusCodes(s.StatusCodes),
			s.P50.String(),
			s.P95.String(),
			s.P99.String(),
			s.Max.String(),
		})
	}
	widths := make([]int, len(summaryColumns))
	for _, row := range rows {
		for i, cell := range row {
			if l := lipgloss.Width(cell); l > widths[i] {
				widths[i] = l
			}
		}
	}
	lines := make([]string, 0, len(rows))
	for rowIdx, row := range rows {
		cells := make([]string, 0, len(row))
		for i, cell := range row {
			style := summaryCellStyle
			switch {
			case rowIdx == 0:
				style = summaryHeaderStyle
			case i == 2 && summaries[rowIdx-1].Failures > 0:
				style = summaryFailStyle
			}
			cells = append(cells, style.Copy().Width(widths[i]+2).Render(cell))
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}

// WriteSummaryJSON writes summaries to json file
func WriteSummaryJSON(path string, summaries []LabelSummary) error {
	data, err := jsoniter.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal summary")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "write summary %s", path)
}

func formatStatusCodes(codes map[string]int) string {
	if len(codes) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(codes))
	for k := range codes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%d", k, codes[k]))
	}
	return strings.Join(parts, " ")
}
