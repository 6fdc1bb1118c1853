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
	"net/http"
	"net/http/cookiejar"
	"net/http/httputil"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// NewLoggingHTTPClient creates new client, dumps requests and responses to stdout if debug
func NewLoggingHTTPClient(debug bool, transportTimeout int) *http.Client {
	var out io.Writer
	if debug {
		out = os.Stdout
	}
	return NewDumpingHTTPClient(out, transportTimeout)
}

// NewDumpingHTTPClient creates new client which dumps requests and responses to out, nil out disables dumps
func NewDumpingHTTPClient(out io.Writer, transportTimeout int) *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxConnsPerHost = 65535
	t.MaxIdleConns = 65535
	t.MaxIdleConnsPerHost = 65535
	// no Accept-Encoding header added by transport
	t.DisableCompression = true
	t.ResponseHeaderTimeout = time.Duration(transportTimeout) * time.Second

	var transport http.RoundTripper = t
	if out != nil {
		transport = &DumpTransport{r: t, out: out}
	}
	cookieJar, _ := cookiejar.New(nil)
	return &http.Client{
		Transport: transport,
		Timeout:   time.Duration(transportTimeout) * time.Second,
		Jar:       cookieJar,
	}
}

const (
	RequestHeader      = "========== REQUEST ==========\n%s\n"
	RequestHeaderBody  = "========== REQUEST ==========\n%s\n%s\n"
	ResponseHeaderBody = "========== RESPONSE ==========\n%s\n%s\n"
	ResponseHeader     = "========== RESPONSE ==========\n%s\n"
	HTTPBodyDelimiter  = "\r\n\r\n"
)

// DumpTransport log http request/responses, pprint bodies
type DumpTransport struct {
	r   http.RoundTripper
	out io.Writer
}

func (d *DumpTransport) RoundTrip(h *http.Request) (*http.Response, error) {
	dump, _ := httputil.DumpRequestOut(h, true)
	if bodyIsJson(h.Header) {
		req, pprintBody := prettyPrintJsonBody(dump)
		fmt.Fprintf(d.out, RequestHeaderBody, req, pprintBody)
	} else {
		fmt.Fprintf(d.out, RequestHeader, dump)
	}
	resp, err := d.r.RoundTrip(h)
	if err != nil {
		return nil, err
	}
	dump, _ = httputil.DumpResponse(resp, true)
	if bodyIsJson(resp.Header) {
		respString, pprintBody := prettyPrintJsonBody(dump)
		fmt.Fprintf(d.out, ResponseHeaderBody, respString, pprintBody)
		return resp, nil
	}
	fmt.Fprintf(d.out, ResponseHeader, dump)
	return resp, nil
}

// prettyPrintJsonBody returns http format request and pretty printed json body,
// body is returned as is if it's not valid json
func prettyPrintJsonBody(b []byte) (string, string) {
	sp := strings.SplitN(string(b), HTTPBodyDelimiter, 2)
	if len(sp) != 2 {
		return sp[0], ""
	}
	body := sp[1]
	var obj interface{}
	if err := jsoniter.Unmarshal([]byte(body), &obj); err != nil {
		return sp[0], body
	}
	pprintBody, err := jsoniter.MarshalIndent(obj, "", "    ")
	if err != nil {
		return sp[0], body
	}
	return sp[0], string(pprintBody)
}

func bodyIsJson(h http.Header) bool {
	return strings.Contains(h.Get("content-type"), "application/json")
}
