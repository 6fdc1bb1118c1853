/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package probes

import (
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"

	"github.com/insolar/lockprobe"
)

// Transport selects http client used by HealthAttack
type Transport int

const (
	TransportHTTP Transport = iota
	TransportFastHTTP
)

var ErrUnknownTransport = errors.New("unknown transport")

func (t Transport) String() string {
	switch t {
	case TransportHTTP:
		return "http"
	case TransportFastHTTP:
		return "fasthttp"
	default:
		return "unknown"
	}
}

// ParseTransport parses "http" or "fasthttp", empty string is http
func ParseTransport(s string) (Transport, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "http":
		return TransportHTTP, nil
	case "fasthttp":
		return TransportFastHTTP, nil
	default:
		return TransportHTTP, errors.Wrapf(ErrUnknownTransport, "%q", s)
	}
}

// HealthAttack sends one probe request per Do, response body is discarded and never inspected
type HealthAttack struct {
	*lockprobe.Runner
	Definition Definition
	Transport  Transport
	label      string
}

func NewHealthAttack(d Definition, t Transport) *HealthAttack {
	return &HealthAttack{Definition: d, Transport: t, label: d.ReportLabel()}
}

func (a *HealthAttack) Clone(r *lockprobe.Runner) lockprobe.Attack {
	return &HealthAttack{
		Runner:     r,
		Definition: a.Definition.Clone(),
		Transport:  a.Transport,
		label:      a.Definition.ReportLabel(),
	}
}

func (a *HealthAttack) Setup(c lockprobe.RunnerConfig) error {
	if err := a.Definition.Validate(); err != nil {
		return err
	}
	if _, err := a.Definition.URL(c.TargetUrl); err != nil {
		return err
	}
	switch a.Transport {
	case TransportHTTP:
		if a.Runner == nil || a.HTTPClient == nil {
			return errors.New("http client is not initialized")
		}
	case TransportFastHTTP:
		if a.Runner == nil || a.FastHTTPClient == nil {
			return errors.New("fasthttp client is not initialized")
		}
	default:
		return errors.Wrapf(ErrUnknownTransport, "%d", a.Transport)
	}
	return nil
}

func (a *HealthAttack) Do(ctx context.Context) lockprobe.DoResult {
	lockprobe.SetRequestLabel(ctx, a.label)
	if a.Transport == TransportFastHTTP {
		return a.doFastHTTP(ctx)
	}
	return a.doHTTP(ctx)
}

func (a *HealthAttack) doHTTP(ctx context.Context) lockprobe.DoResult {
	req, err := a.Definition.NewRequest(ctx, a.Cfg.TargetUrl)
	if err != nil {
		return lockprobe.DoResult{RequestLabel: a.label, Error: err.Error()}
	}
	res, err := a.HTTPClient.Do(req)
	if err != nil {
		return lockprobe.DoResult{RequestLabel: a.label, Error: err.Error()}
	}
	defer res.Body.Close()
	n, err := io.Copy(io.Discard, res.Body)
	if err != nil {
		return lockprobe.DoResult{
			RequestLabel: a.label,
			StatusCode:   res.StatusCode,
			BytesIn:      n,
			Error:        err.Error(),
		}
	}
	return lockprobe.DoResult{
		RequestLabel: a.label,
		StatusCode:   res.StatusCode,
		BytesIn:      n,
	}
}

func (a *HealthAttack) doFastHTTP(ctx context.Context) lockprobe.DoResult {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)
	if err := a.Definition.FillFastHTTP(req, a.Cfg.TargetUrl); err != nil {
		return lockprobe.DoResult{RequestLabel: a.label, Error: err.Error()}
	}
	if err := a.FastHTTPClient.DoCtx(ctx, req, resp); err != nil {
		return lockprobe.DoResult{RequestLabel: a.label, Error: err.Error()}
	}
	return lockprobe.DoResult{
		RequestLabel: a.label,
		StatusCode:   resp.StatusCode(),
		BytesIn:      int64(len(resp.Body())),
	}
}

func (a *HealthAttack) Teardown() error {
	return nil
}
