/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package lockprobe

import (
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pkg/errors"
)

const (
	DefaultRunnerName      = "lockprobe"
	DefaultAttackerTimeout = 5
	DefaultPrometheusPort  = 2112
)

// SystemMode describes how attackers are fed with attack tokens
type SystemMode int

const (
	// PrivateSystem has a fixed amount of attackers, each one handles one token at a time,
	// so slow responses lower the achieved rate
	PrivateSystem SystemMode = iota
	// OpenWorldSystem starts a new goroutine for every token, rate does not depend on response time
	OpenWorldSystem
)

func (m SystemMode) String() string {
	switch m {
	case PrivateSystem:
		return "private"
	case OpenWorldSystem:
		return "open"
	default:
		return "unknown"
	}
}

// ParseSystemMode parses "private" or "open"
func ParseSystemMode(s string) (SystemMode, error) {
	switch strings.ToLower(s) {
	case "", "private":
		return PrivateSystem, nil
	case "open", "open_world":
		return OpenWorldSystem, nil
	default:
		return PrivateSystem, errors.Errorf("unknown system mode: %q", s)
	}
}

// ReportOptions selects report artifacts written after the run
type ReportOptions struct {
	// CSV writes every result and every tick percentiles to csv files
	CSV bool
	// PNG renders percentiles chart to png, requires CSV
	PNG bool
	// HTML renders interactive percentiles chart, requires CSV
	HTML bool
	// Dir directory for report files, current dir if empty
	Dir string
}

// Prometheus metrics endpoint options
type Prometheus struct {
	Enable bool
	Port   int
	// Pprof also mounts /debug/pprof handlers on the metrics port
	Pprof bool
}

// RunnerConfig runner configuration
type RunnerConfig struct {
	// TargetUrl target base url
	TargetUrl string
	// Name of a runner instance
	Name string
	// SystemMode private or open world
	SystemMode SystemMode
	// Attackers constant amount of attackers
	Attackers int
	// AttackerTimeout timeout of attacker, seconds
	AttackerTimeout int
	// StartRPS start amount of requests per second
	StartRPS int
	// StepDurationSec duration of step in which rps is increased by StepRPS
	StepDurationSec int
	// StepRPS amount of requests per second which will be added in next step
	StepRPS int
	// TestTimeSec test timeout
	TestTimeSec int
	// WaitBeforeSec time to wait before start in case we didn't know start criteria
	WaitBeforeSec int
	// MaxRequests stops scheduling after this amount of attacks, 0 means no limit
	MaxRequests int
	// DumpTransport dump http requests to stdout
	DumpTransport bool
	// GoroutinesDump dumps goroutines on exit signal
	GoroutinesDump bool
	// FailOnFirstError fails on first error
	FailOnFirstError bool
	// SuccessRatio fails the test if tick success ratio is lower
	SuccessRatio float64
	// LogLevel debug|info, etc.
	LogLevel string
	// LogEncoding json|console
	LogEncoding string
	// AttackerParams passed to registered attacker factories
	AttackerParams map[string]string
	ReportOptions  *ReportOptions
	Prometheus     *Prometheus
}

// DefaultCfgValues fills in zero values which have sane defaults
func (c *RunnerConfig) DefaultCfgValues() {
	if c.Name == "" {
		c.Name = DefaultRunnerName
	}
	if c.AttackerTimeout == 0 {
		c.AttackerTimeout = DefaultAttackerTimeout
	}
	if c.SystemMode == OpenWorldSystem && c.Attackers == 0 {
		c.Attackers = 1
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogEncoding == "" {
		c.LogEncoding = "console"
	}
	if c.ReportOptions == nil {
		c.ReportOptions = &ReportOptions{}
	}
	if c.Prometheus == nil {
		c.Prometheus = &Prometheus{}
	}
	if c.Prometheus.Port == 0 {
		c.Prometheus.Port = DefaultPrometheusPort
	}
}

// Validate checks all settings
func (c *RunnerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TargetUrl, validation.By(validateTargetURL)),
		validation.Field(&c.SystemMode, validation.In(PrivateSystem, OpenWorldSystem)),
		validation.Field(&c.Attackers,
			validation.When(c.SystemMode == PrivateSystem, validation.Required.Error("please set attackers > 0")),
			validation.Min(0),
		),
		validation.Field(&c.AttackerTimeout, validation.Required.Error("please set attacker timeout > 0, seconds"), validation.Min(1)),
		validation.Field(&c.StartRPS, validation.Required.Error("please set start rps > 0"), validation.Min(1)),
		validation.Field(&c.StepDurationSec, validation.Min(0)),
		validation.Field(&c.StepRPS, validation.Min(0)),
		validation.Field(&c.TestTimeSec, validation.Required.Error("please set test time > 0, seconds"), validation.Min(1)),
		validation.Field(&c.WaitBeforeSec, validation.Min(0)),
		validation.Field(&c.MaxRequests, validation.Min(0)),
		validation.Field(&c.SuccessRatio, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.LogEncoding, validation.In("json", "console")),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
	)
}

func validateTargetURL(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "must be http or https url")
	}
	if u.Host == "" {
		return validation.NewError("validation_invalid_host", "must contain host")
	}
	return nil
}
