/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package main

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/insolar/lockprobe"
	"github.com/insolar/lockprobe/probes"
)

const envPrefix = "LOCKPROBE"

// runConfig flat run settings, filled from config file, LOCKPROBE_* env and flags
type runConfig struct {
	Target           string  `mapstructure:"target"`
	Name             string  `mapstructure:"name"`
	Scenario         string  `mapstructure:"scenario"`
	Token            string  `mapstructure:"token"`
	ForwardedFor     string  `mapstructure:"forwarded_for"`
	Transport        string  `mapstructure:"transport"`
	Mode             string  `mapstructure:"mode"`
	Attackers        int     `mapstructure:"attackers"`
	RPS              int     `mapstructure:"rps"`
	StepRPS          int     `mapstructure:"step_rps"`
	StepDuration     int     `mapstructure:"step_duration"`
	Duration         int     `mapstructure:"duration"`
	Requests         int     `mapstructure:"requests"`
	Timeout          int     `mapstructure:"timeout"`
	WaitBefore       int     `mapstructure:"wait_before"`
	SuccessRatio     float64 `mapstructure:"success_ratio"`
	FailOnFirstError bool    `mapstructure:"fail_on_first_error"`
	CSV              bool    `mapstructure:"csv"`
	PNG              bool    `mapstructure:"png"`
	HTML             bool    `mapstructure:"html"`
	ReportDir        string  `mapstructure:"report_dir"`
	Prometheus       bool    `mapstructure:"prometheus"`
	PrometheusPort   int     `mapstructure:"prometheus_port"`
	Pprof            bool    `mapstructure:"pprof"`
	Dump             bool    `mapstructure:"dump"`
	GoroutinesDump   bool    `mapstructure:"goroutines_dump"`
	LogLevel         string  `mapstructure:"log_level"`
	LogEncoding      string  `mapstructure:"log_encoding"`
	SummaryJSON      string  `mapstructure:"summary_json"`
}

func addRunFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "yaml config file, flags and LOCKPROBE_* env override it")
	fs.String("target", "", "target base url, probes are sent to <target>/health")
	fs.String("name", lockprobe.DefaultRunnerName, "runner name used in reports")
	fs.String("scenario", probes.ScenarioLock, "scenario to run, see lockprobe scenarios")
	fs.String("token", probes.DefaultToken, "API_KEY header value")
	fs.String("forwarded-for", probes.DefaultForwardedFor, "X-Forwarded-For header value")
	fs.String("transport", "http", "http or fasthttp")
	fs.String("mode", "private", "private (fixed attackers) or open (goroutine per request)")
	fs.Int("attackers", 10, "amount of attackers in private mode")
	fs.Int("rps", 10, "start requests per second")
	fs.Int("step-rps", 0, "rps added every step")
	fs.Int("step-duration", 0, "step duration, seconds")
	fs.Int("duration", 30, "test duration, seconds")
	fs.Int("requests", 0, "stop after this amount of requests, 0 is unlimited")
	fs.Int("timeout", lockprobe.DefaultAttackerTimeout, "request timeout, seconds")
	fs.Int("wait-before", 0, "wait before start, seconds")
	fs.Float64("success-ratio", 0, "fail the run when a second has lower success ratio, 0 disables")
	fs.Bool("fail-on-first-error", false, "fail the run on first transport error")
	fs.Bool("csv", false, "write results and percentiles csv")
	fs.Bool("png", false, "render percentiles png chart, implies csv")
	fs.Bool("html", false, "render percentiles html chart, implies csv")
	fs.String("report-dir", "", "directory for report files")
	fs.Bool("prometheus", false, "serve prometheus metrics")
	fs.Int("prometheus-port", lockprobe.DefaultPrometheusPort, "prometheus metrics port")
	fs.Bool("pprof", false, "serve pprof handlers on prometheus port")
	fs.Bool("dump", false, "dump http requests and responses")
	fs.Bool("goroutines-dump", false, "dump goroutines on exit signal")
	fs.String("log-level", "info", "debug|info|warn|error")
	fs.String("log-encoding", "console", "console|json")
	fs.String("summary-json", "", "write per label summary to json file")
}

// loadRunConfig reads settings in priority order: flags, env, config file, flag defaults
func loadRunConfig(fs *pflag.FlagSet) (*runConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		if err := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	if bindErr != nil {
		return nil, errors.Wrap(bindErr, "bind flags")
	}

	if cfgFile, _ := fs.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", cfgFile)
		}
	}

	cfg := &runConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return cfg, nil
}

func (c *runConfig) attackerParams() map[string]string {
	return map[string]string{
		probes.ParamToken:        c.Token,
		probes.ParamForwardedFor: c.ForwardedFor,
		probes.ParamTransport:    c.Transport,
	}
}

func (c *runConfig) runnerConfig() (*lockprobe.RunnerConfig, error) {
	mode, err := lockprobe.ParseSystemMode(c.Mode)
	if err != nil {
		return nil, err
	}
	return &lockprobe.RunnerConfig{
		TargetUrl:        c.Target,
		Name:             c.Name,
		SystemMode:       mode,
		Attackers:        c.Attackers,
		AttackerTimeout:  c.Timeout,
		StartRPS:         c.RPS,
		StepDurationSec:  c.StepDuration,
		StepRPS:          c.StepRPS,
		TestTimeSec:      c.Duration,
		WaitBeforeSec:    c.WaitBefore,
		MaxRequests:      c.Requests,
		DumpTransport:    c.Dump,
		GoroutinesDump:   c.GoroutinesDump,
		FailOnFirstError: c.FailOnFirstError,
		SuccessRatio:     c.SuccessRatio,
		LogLevel:         c.LogLevel,
		LogEncoding:      c.LogEncoding,
		AttackerParams:   c.attackerParams(),
		ReportOptions: &lockprobe.ReportOptions{
			CSV:  c.CSV || c.PNG || c.HTML,
			PNG:  c.PNG,
			HTML: c.HTML,
			Dir:  c.ReportDir,
		},
		Prometheus: &lockprobe.Prometheus{
			Enable: c.Prometheus,
			Port:   c.PrometheusPort,
			Pprof:  c.Pprof,
		},
	}, nil
}
