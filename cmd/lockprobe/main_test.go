/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/insolar/lockprobe"
	"github.com/insolar/lockprobe/probes"
)

func newTestFlags(t *testing.T, args ...string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	addRunFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestConfigFlagDefaults(t *testing.T) {
	cfg, err := loadRunConfig(newTestFlags(t))
	require.NoError(t, err)
	require.Equal(t, probes.ScenarioLock, cfg.Scenario)
	require.Equal(t, probes.DefaultToken, cfg.Token)
	require.Equal(t, probes.DefaultForwardedFor, cfg.ForwardedFor)
	require.Equal(t, 10, cfg.RPS)
	require.Equal(t, lockprobe.DefaultPrometheusPort, cfg.PrometheusPort)
}

func TestConfigPriority(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "lockprobe.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`
target: http://from-file:8080
scenario: token_lock
rps: 50
token: file-token
csv: true
`), 0644))
	t.Setenv("LOCKPROBE_RPS", "70")
	t.Setenv("LOCKPROBE_FORWARDED_FOR", "10.1.1.1")

	cfg, err := loadRunConfig(newTestFlags(t, "--config", cfgFile, "--token", "flag-token"))
	require.NoError(t, err)
	require.Equal(t, "http://from-file:8080", cfg.Target)
	require.Equal(t, probes.ScenarioTokenLock, cfg.Scenario)
	require.Equal(t, 70, cfg.RPS)
	require.Equal(t, "flag-token", cfg.Token)
	require.Equal(t, "10.1.1.1", cfg.ForwardedFor)
	require.True(t, cfg.CSV)
}

func TestConfigMissingFile(t *testing.T) {
	_, err := loadRunConfig(newTestFlags(t, "--config", filepath.Join(t.TempDir(), "none.yaml")))
	require.Error(t, err)
}

func TestConfigRunnerConfig(t *testing.T) {
	cfg, err := loadRunConfig(newTestFlags(t, "--mode", "open", "--png", "--transport", "fasthttp"))
	require.NoError(t, err)
	rc, err := cfg.runnerConfig()
	require.NoError(t, err)
	require.Equal(t, lockprobe.OpenWorldSystem, rc.SystemMode)
	require.True(t, rc.ReportOptions.CSV)
	require.True(t, rc.ReportOptions.PNG)
	require.Equal(t, "fasthttp", rc.AttackerParams[probes.ParamTransport])

	cfg.Mode = "bound"
	_, err = cfg.runnerConfig()
	require.Error(t, err)
}

func TestCLIRunTokenLock(t *testing.T) {
	target := lockprobe.NewHealthTarget(lockprobe.HealthTargetOptions{})
	srv := httptest.NewServer(target.Handler())
	defer srv.Close()
	summaryPath := filepath.Join(t.TempDir(), "summary.json")

	out := &bytes.Buffer{}
	root := newRootCmd()
	root.SetOut(out)
	root.SetArgs([]string{
		"run",
		"--target", srv.URL,
		"--scenario", probes.ScenarioTokenLock,
		"--rps", "5",
		"--requests", "5",
		"--duration", "10",
		"--attackers", "2",
		"--log-level", "error",
		"--summary-json", summaryPath,
	})
	require.NoError(t, root.ExecuteContext(context.Background()))
	require.Len(t, target.Requests(), 5)
	require.Contains(t, out.String(), probes.TokenLockLabel)
	require.FileExists(t, summaryPath)
}

func TestCLIRunFailedVerdict(t *testing.T) {
	target := lockprobe.NewHealthTarget(lockprobe.HealthTargetOptions{KnownTokens: []string{"other"}})
	srv := httptest.NewServer(target.Handler())
	defer srv.Close()

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{
		"run",
		"--target", srv.URL,
		"--scenario", probes.ScenarioCheck,
		"--rps", "4",
		"--requests", "4",
		"--duration", "10",
		"--success-ratio", "1",
		"--log-level", "error",
	})
	require.ErrorIs(t, root.ExecuteContext(context.Background()), errRunFailed)
}

func TestCLIRunInterruptedShowsPartialSummary(t *testing.T) {
	target := lockprobe.NewHealthTarget(lockprobe.HealthTargetOptions{})
	srv := httptest.NewServer(target.Handler())
	defer srv.Close()

	out := &bytes.Buffer{}
	root := newRootCmd()
	root.SetOut(out)
	root.SetArgs([]string{
		"run",
		"--target", srv.URL,
		"--scenario", probes.ScenarioTokenLock,
		"--rps", "5",
		"--duration", "30",
		"--log-level", "error",
	})
	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	err := root.ExecuteContext(ctx)
	require.ErrorIs(t, err, lockprobe.ErrInterrupted)
	require.Contains(t, out.String(), probes.TokenLockLabel)
	require.Equal(t, exitInterrupted, exitCode(err))
}

func TestCLIExitCodes(t *testing.T) {
	require.Equal(t, exitOK, exitCode(nil))
	require.Equal(t, exitFailed, exitCode(errRunFailed))
	require.Equal(t, exitInterrupted, exitCode(errors.Wrap(lockprobe.ErrInterrupted, "before start")))
	require.Equal(t, exitError, exitCode(errors.New("target is required")))
}

func TestCLIRunRequiresTarget(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"run", "--log-level", "error"})
	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, errRunFailed)
}

func TestCLIScenarios(t *testing.T) {
	out := &bytes.Buffer{}
	root := newRootCmd()
	root.SetOut(out)
	root.SetArgs([]string{"scenarios"})
	require.NoError(t, root.ExecuteContext(context.Background()))
	for _, s := range []string{probes.ScenarioCheck, probes.ScenarioTokenLock, probes.ScenarioIPLock, probes.ScenarioLock} {
		require.Contains(t, out.String(), s)
	}
}

func TestCLIReport(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "percs.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("Runner,Tick,RPS,P50,P95,P99\nr,1,10,20,30,40\nr,2,12,25,35,45\n"), 0644))

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"report", csvPath})
	require.NoError(t, root.ExecuteContext(context.Background()))
	require.FileExists(t, filepath.Join(dir, "percs.html"))
	require.FileExists(t, filepath.Join(dir, "percs.png"))
}
