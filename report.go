/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package lockprobe

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Report struct {
	runId               string
	runName             string
	dir                 string
	metricsLogFilename  string
	percsReportFilename string
	percsPNGFilename    string
	percLogFilename     string
	metricsFile         *os.File
	percFile            *os.File
	metricsLogFile      *csv.Writer
	percLogFile         *csv.Writer
	reportOptions       *ReportOptions
	L                   *Logger
}

func NewReport(cfg *RunnerConfig, l *Logger) (*Report, error) {
	tn := time.Now().Unix()
	runId := uuid.New().String()
	r := &Report{
		runId:               runId,
		runName:             cfg.Name,
		dir:                 cfg.ReportOptions.Dir,
		metricsLogFilename:  fmt.Sprintf(MetricsLogFile, cfg.Name, runId, tn),
		percsReportFilename: fmt.Sprintf(ReportGraphFile, cfg.Name, runId, tn),
		percsPNGFilename:    fmt.Sprintf(ReportPNGFile, cfg.Name, runId, tn),
		percLogFilename:     fmt.Sprintf(PercsLogFile, cfg.Name, runId, tn),
		reportOptions:       cfg.ReportOptions,
		L:                   l.With("report", runId),
	}
	var err error
	if r.metricsFile, err = CreateFileOrReplace(r.dir, r.metricsLogFilename); err != nil {
		return nil, err
	}
	if r.percFile, err = CreateFileOrReplace(r.dir, r.percLogFilename); err != nil {
		_ = r.metricsFile.Close()
		return nil, err
	}
	r.metricsLogFile = csv.NewWriter(r.metricsFile)
	r.percLogFile = csv.NewWriter(r.percFile)
	_ = r.metricsLogFile.Write(ResultsCsvHeader)
	_ = r.percLogFile.Write(PercsCsvHeader)
	return r, nil
}

// RunID uniq id of a run, part of every report file name
func (r *Report) RunID() string {
	return r.runId
}

// ResultsPath path of csv with every attack result
func (r *Report) ResultsPath() string {
	return filepath.Join(r.dir, r.metricsLogFilename)
}

// PercentilesPath path of csv with tick percentiles
func (r *Report) PercentilesPath() string {
	return filepath.Join(r.dir, r.percLogFilename)
}

// HTMLPath path of rendered html chart
func (r *Report) HTMLPath() string {
	return filepath.Join(r.dir, r.percsReportFilename)
}

// PNGPath path of rendered png chart
func (r *Report) PNGPath() string {
	return filepath.Join(r.dir, r.percsPNGFilename)
}

func (r *Report) plot() {
	if r.reportOptions.HTML {
		r.L.Infof("reporting html graph: %s", r.HTMLPath())
		if err := RenderPercsHTML(r.PercentilesPath(), r.HTMLPath(), r.runName); err != nil {
			r.L.Error(err)
		}
	}
	if r.reportOptions.PNG {
		r.L.Infof("reporting png graph: %s", r.PNGPath())
		if err := RenderPercsPNG(r.PercentilesPath(), r.PNGPath(), r.runName); err != nil {
			r.L.Error(err)
		}
	}
}

// flushLogs flushes and closes csv files
func (r *Report) flushLogs() error {
	r.percLogFile.Flush()
	r.metricsLogFile.Flush()
	if err := r.percLogFile.Error(); err != nil {
		return errors.Wrap(err, "flush percentiles csv")
	}
	if err := r.metricsLogFile.Error(); err != nil {
		return errors.Wrap(err, "flush results csv")
	}
	if err := r.percFile.Close(); err != nil {
		return errors.Wrap(err, "close percentiles csv")
	}
	return errors.Wrap(r.metricsFile.Close(), "close results csv")
}

func (r *Report) writeResultEntry(res AttackResult, errorMsg string) {
	_ = r.metricsLogFile.Write([]string{
		res.DoResult.RequestLabel,
		strconv.FormatInt(res.Begin.UnixNano(), 10),
		strconv.FormatInt(res.End.UnixNano(), 10),
		res.Elapsed.String(),
		strconv.Itoa(res.DoResult.StatusCode),
		errorMsg,
	})
}

func (r *Report) writePercentilesEntry(res AttackResult, tickMetrics *Metrics) {
	_ = r.percLogFile.Write([]string{
		r.runName,
		strconv.Itoa(res.AttackToken.Tick),
		strconv.Itoa(int(tickMetrics.Rate)),
		strconv.FormatInt(tickMetrics.Latencies.P50.Milliseconds(), 10),
		strconv.FormatInt(tickMetrics.Latencies.P95.Milliseconds(), 10),
		strconv.FormatInt(tickMetrics.Latencies.P99.Milliseconds(), 10),
	})
}
