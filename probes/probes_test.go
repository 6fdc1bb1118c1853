/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package probes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/goleak"

	"github.com/insolar/lockprobe"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreAnyFunction("github.com/valyala/fasthttp.(*HostClient).connsCleaner"),
		goleak.IgnoreAnyFunction("github.com/valyala/fasthttp.(*Client).mCleaner"),
		goleak.IgnoreAnyFunction("github.com/valyala/fasthttp.(*TCPDialer).tcpAddrsClean"),
		goleak.IgnoreAnyFunction("os/signal.loop"),
	)
}

func newTarget(t *testing.T, opts lockprobe.HealthTargetOptions) (*lockprobe.HealthTarget, string) {
	target := lockprobe.NewHealthTarget(opts)
	srv := httptest.NewServer(target.Handler())
	t.Cleanup(srv.Close)
	return target, srv.URL
}

func runProbe(t *testing.T, base string, a lockprobe.Attack, requests int) *lockprobe.Runner {
	r, err := lockprobe.NewRunner(&lockprobe.RunnerConfig{
		TargetUrl:       base,
		Name:            "probe_test",
		Attackers:       2,
		AttackerTimeout: 2,
		StartRPS:        requests,
		TestTimeSec:     10,
		MaxRequests:     requests,
		LogLevel:        "error",
	}, a)
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)
	return r
}

func TestProbesDefinitions(t *testing.T) {
	check := CheckDefinition(DefaultToken)
	require.Equal(t, "/health", check.ReportLabel())
	require.Equal(t, map[string]string{"API_KEY": "5095bc00-2f9e-4e6f-b355-11688d20530d"}, check.Headers)

	tl := TokenLockDefinition("tkn")
	require.Equal(t, "Health check token lock", tl.ReportLabel())
	require.Equal(t, map[string]string{"API_KEY": "tkn"}, tl.Headers)

	ipl := IPLockDefinition(DefaultForwardedFor)
	require.Equal(t, "Health check ip lock", ipl.ReportLabel())
	require.Equal(t, map[string]string{"X-Forwarded-For": "192.168.9.9"}, ipl.Headers)
}

func TestProbesCloneIsIndependent(t *testing.T) {
	d := TokenLockDefinition("a")
	c := d.Clone()
	c.Headers[TokenHeader] = "b"
	require.Equal(t, "a", d.Headers[TokenHeader])
}

func TestProbesURL(t *testing.T) {
	d := CheckDefinition(DefaultToken)
	u, err := d.URL("http://localhost:8080")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/health", u)

	u, err = d.URL("http://localhost:8080/api/")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/api/health", u)

	_, err = d.URL("")
	require.ErrorIs(t, err, ErrEmptyBaseURL)
	_, err = d.URL("localhost:8080")
	require.ErrorIs(t, err, ErrInvalidBaseURL)
	_, err = d.URL("ftp://localhost")
	require.ErrorIs(t, err, ErrInvalidBaseURL)
}

func TestProbesValidate(t *testing.T) {
	require.NoError(t, IPLockDefinition(DefaultForwardedFor).Validate())
	require.ErrorIs(t, Definition{Path: "health"}.Validate(), ErrInvalidPath)
	require.ErrorIs(t, TokenLockDefinition("").Validate(), ErrInvalidHeader)
}

func TestProbesRequestHeaderNamesAreExact(t *testing.T) {
	req, err := TokenLockDefinition(DefaultToken).NewRequest(context.Background(), "http://localhost")
	require.NoError(t, err)
	require.Equal(t, http.MethodGet, req.Method)
	require.Equal(t, "/health", req.URL.Path)
	require.Nil(t, req.Body)
	require.Equal(t, []string{DefaultToken}, req.Header["API_KEY"])
	require.Len(t, req.Header, 1)

	freq := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(freq)
	require.NoError(t, IPLockDefinition(DefaultForwardedFor).FillFastHTTP(freq, "http://localhost"))
	require.Equal(t, "GET", string(freq.Header.Method()))
	require.Equal(t, "/health", string(freq.URI().Path()))
	require.Equal(t, DefaultForwardedFor, string(freq.Header.Peek("X-Forwarded-For")))
}

func TestProbesTokenLockFiveInvocations(t *testing.T) {
	target, base := newTarget(t, lockprobe.HealthTargetOptions{})
	r := runProbe(t, base, NewHealthAttack(TokenLockDefinition(DefaultToken), TransportHTTP), 5)

	reqs := target.Requests()
	require.Len(t, reqs, 5)
	for _, rr := range reqs {
		require.Equal(t, http.MethodGet, rr.Method)
		require.Equal(t, "/health", rr.Path)
		require.Equal(t, "5095bc00-2f9e-4e6f-b355-11688d20530d", rr.Header.Get("API_KEY"))
		require.Empty(t, rr.Header.Get("Content-Type"))
		require.Empty(t, rr.Header.Get("X-Forwarded-For"))
	}
	summary := r.Summary()
	require.Len(t, summary, 1)
	require.Equal(t, TokenLockLabel, summary[0].Label)
	require.Equal(t, uint64(5), summary[0].Requests)
	require.Equal(t, map[string]int{"200": 5}, summary[0].StatusCodes)
}

func TestProbesCheckIsReportedUnderPath(t *testing.T) {
	target, base := newTarget(t, lockprobe.HealthTargetOptions{})
	r := runProbe(t, base, NewHealthAttack(CheckDefinition(DefaultToken), TransportHTTP), 3)

	for _, rr := range target.Requests() {
		require.Equal(t, DefaultToken, rr.Header.Get("API_KEY"))
		require.Empty(t, rr.Header.Get("Content-Type"))
	}
	summary := r.Summary()
	require.Len(t, summary, 1)
	require.Equal(t, "/health", summary[0].Label)
	require.Equal(t, uint64(3), summary[0].Requests)
}

func TestProbesIPLockInvocations(t *testing.T) {
	target, base := newTarget(t, lockprobe.HealthTargetOptions{})
	runProbe(t, base, NewHealthAttack(IPLockDefinition(DefaultForwardedFor), TransportHTTP), 4)

	reqs := target.Requests()
	require.Len(t, reqs, 4)
	for _, rr := range reqs {
		require.Equal(t, "/health", rr.Path)
		require.Equal(t, "192.168.9.9", rr.Header.Get("X-Forwarded-For"))
		require.Empty(t, rr.Header.Get("API_KEY"))
		require.Empty(t, rr.Header.Get("Content-Type"))
	}
}

func TestProbesFastHTTPTransport(t *testing.T) {
	target, base := newTarget(t, lockprobe.HealthTargetOptions{})
	r := runProbe(t, base, NewHealthAttack(TokenLockDefinition("fast-token"), TransportFastHTTP), 5)

	reqs := target.Requests()
	require.Len(t, reqs, 5)
	for _, rr := range reqs {
		require.Equal(t, "/health", rr.Path)
		require.Equal(t, "fast-token", rr.Header.Get("API_KEY"))
		require.Empty(t, rr.Header.Get("Content-Type"))
	}
	require.Equal(t, map[string]int{"200": 5}, r.Summary()[0].StatusCodes)
}

func TestProbesRateLimitedStatusIsRecordedNotFailed(t *testing.T) {
	_, base := newTarget(t, lockprobe.HealthTargetOptions{TokenRPS: 1, TokenBurst: 1})
	r := runProbe(t, base, NewHealthAttack(TokenLockDefinition(DefaultToken), TransportHTTP), 5)

	s := r.Summary()[0]
	require.Equal(t, uint64(5), s.Requests)
	require.Greater(t, s.StatusCodes["429"], 0)
	require.Equal(t, 5, s.StatusCodes["200"]+s.StatusCodes["429"])
	require.False(t, r.IsFailed())
}

func TestProbesTransportErrorIsRecorded(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	r := runProbe(t, base, NewHealthAttack(TokenLockDefinition(DefaultToken), TransportHTTP), 2)
	s := r.Summary()[0]
	require.Equal(t, uint64(2), s.Requests)
	require.Equal(t, uint64(2), s.Failures)
	require.NotEmpty(t, s.Errors)
}

func TestProbesSetupFails(t *testing.T) {
	_, err := lockprobe.NewRunner(&lockprobe.RunnerConfig{
		TargetUrl:       "http://localhost:1",
		Attackers:       1,
		AttackerTimeout: 1,
		StartRPS:        1,
		TestTimeSec:     1,
		LogLevel:        "error",
	}, NewHealthAttack(Definition{Path: "health"}, TransportHTTP))
	require.ErrorIs(t, err, ErrInvalidPath)

	_, err = lockprobe.NewRunner(&lockprobe.RunnerConfig{
		Attackers:       1,
		AttackerTimeout: 1,
		StartRPS:        1,
		TestTimeSec:     1,
		LogLevel:        "error",
	}, NewHealthAttack(CheckDefinition(DefaultToken), TransportHTTP))
	require.ErrorIs(t, err, ErrEmptyBaseURL)
}
