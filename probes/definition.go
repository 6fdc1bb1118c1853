/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

// Package probes contains health check probes used to exercise rate limiting
// keyed by API token and by client IP.
package probes

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
)

const (
	HealthPath         = "/health"
	TokenHeader        = "API_KEY"
	ForwardedForHeader = "X-Forwarded-For"

	DefaultToken        = "5095bc00-2f9e-4e6f-b355-11688d20530d"
	DefaultForwardedFor = "192.168.9.9"

	TokenLockLabel = "Health check token lock"
	IPLockLabel    = "Health check ip lock"
)

var (
	ErrEmptyBaseURL   = errors.New("base url is empty")
	ErrInvalidBaseURL = errors.New("base url must be absolute http(s) url")
	ErrInvalidPath    = errors.New("probe path must start with /")
	ErrInvalidHeader  = errors.New("probe header name and value must not be empty")
)

// Definition is a static probe: one GET request to Path with Headers, reported under Label.
// Definitions are never mutated after construction, use Clone to get an independent copy.
type Definition struct {
	// Label name of the probe in reports, Path is used when empty
	Label   string
	Path    string
	Headers map[string]string
}

// CheckDefinition unnamed probe sending API_KEY only
func CheckDefinition(token string) Definition {
	return Definition{
		Path:    HealthPath,
		Headers: map[string]string{TokenHeader: token},
	}
}

// TokenLockDefinition probe limited by API_KEY token
func TokenLockDefinition(token string) Definition {
	return Definition{
		Label:   TokenLockLabel,
		Path:    HealthPath,
		Headers: map[string]string{TokenHeader: token},
	}
}

// IPLockDefinition probe limited by client ip
func IPLockDefinition(ip string) Definition {
	return Definition{
		Label:   IPLockLabel,
		Path:    HealthPath,
		Headers: map[string]string{ForwardedForHeader: ip},
	}
}

func (d Definition) Clone() Definition {
	headers := make(map[string]string, len(d.Headers))
	for k, v := range d.Headers {
		headers[k] = v
	}
	return Definition{Label: d.Label, Path: d.Path, Headers: headers}
}

// ReportLabel label used to aggregate probe results
func (d Definition) ReportLabel() string {
	if d.Label == "" {
		return d.Path
	}
	return d.Label
}

func (d Definition) Validate() error {
	if !strings.HasPrefix(d.Path, "/") {
		return errors.Wrapf(ErrInvalidPath, "%q", d.Path)
	}
	for k, v := range d.Headers {
		if strings.TrimSpace(k) == "" || v == "" {
			return errors.Wrapf(ErrInvalidHeader, "%q", k)
		}
	}
	return nil
}

// URL joins base url and probe path, base path is kept as prefix
func (d Definition) URL(base string) (string, error) {
	if base == "" {
		return "", ErrEmptyBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrap(ErrInvalidBaseURL, err.Error())
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errors.Wrapf(ErrInvalidBaseURL, "%q", base)
	}
	u.Path = strings.TrimRight(u.Path, "/") + d.Path
	u.RawPath = ""
	return u.String(), nil
}

// headerNames sorted names, requests are built in the same order every time
func (d Definition) headerNames() []string {
	names := make([]string, 0, len(d.Headers))
	for k := range d.Headers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// NewRequest builds GET request without body, header names are sent exactly as defined
func (d Definition) NewRequest(ctx context.Context, base string) (*http.Request, error) {
	u, err := d.URL(base)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build probe request")
	}
	for _, k := range d.headerNames() {
		// not Header.Set, it would send API_KEY as Api_key
		req.Header[k] = []string{d.Headers[k]}
	}
	return req, nil
}

// FillFastHTTP fills fasthttp request the same way NewRequest does
func (d Definition) FillFastHTTP(req *fasthttp.Request, base string) error {
	u, err := d.URL(base)
	if err != nil {
		return err
	}
	req.Header.DisableNormalizing()
	req.Header.SetMethod(http.MethodGet)
	req.SetRequestURI(u)
	for _, k := range d.headerNames() {
		req.Header.Set(k, d.Headers[k])
	}
	return nil
}
