/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package lockprobe

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	targetTokenHeader = "API_KEY"
	targetIPHeader    = "X-Forwarded-For"
)

// HealthTargetOptions configures local /health target, zero value answers 200 to everything
type HealthTargetOptions struct {
	// TokenRPS requests per second allowed for every API_KEY, 0 disables token limits
	TokenRPS   float64
	TokenBurst int
	// IPRPS requests per second allowed for every client ip, 0 disables ip limits
	IPRPS   float64
	IPBurst int
	// KnownTokens answers 401 for other tokens when not empty
	KnownTokens []string
	// Latency sleeps before every answer
	Latency time.Duration
}

// RecordedRequest request as received by HealthTarget
type RecordedRequest struct {
	Method     string
	Path       string
	Header     http.Header
	RemoteAddr string
	StatusCode int
}

// HealthTarget is a local stand-in for a rate limited service, it records every request
type HealthTarget struct {
	opts        HealthTargetOptions
	knownTokens map[string]struct{}

	mu            sync.Mutex
	requests      []RecordedRequest
	tokenLimiters map[string]*rate.Limiter
	ipLimiters    map[string]*rate.Limiter

	engine *gin.Engine
}

func NewHealthTarget(opts HealthTargetOptions) *HealthTarget {
	gin.SetMode(gin.ReleaseMode)
	t := &HealthTarget{
		opts:          opts,
		knownTokens:   make(map[string]struct{}, len(opts.KnownTokens)),
		tokenLimiters: make(map[string]*rate.Limiter),
		ipLimiters:    make(map[string]*rate.Limiter),
	}
	for _, tk := range opts.KnownTokens {
		t.knownTokens[tk] = struct{}{}
	}
	r := gin.New()
	r.Use(t.record(), t.limit())
	r.GET("/health", func(c *gin.Context) {
		if t.opts.Latency > 0 {
			time.Sleep(t.opts.Latency)
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	t.engine = r
	return t
}

func (t *HealthTarget) Handler() http.Handler {
	return t.engine
}

// Requests returns copy of recorded requests
func (t *HealthTarget) Requests() []RecordedRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]RecordedRequest(nil), t.requests...)
}

// Reset forgets recorded requests and limiter state
func (t *HealthTarget) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests = nil
	t.tokenLimiters = make(map[string]*rate.Limiter)
	t.ipLimiters = make(map[string]*rate.Limiter)
}

func (t *HealthTarget) record() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Header = canonicalHeader(c.Request.Header)
		c.Next()
		t.mu.Lock()
		defer t.mu.Unlock()
		t.requests = append(t.requests, RecordedRequest{
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			Header:     c.Request.Header.Clone(),
			RemoteAddr: c.Request.RemoteAddr,
			StatusCode: c.Writer.Status(),
		})
	}
}

// limit token requests are limited by token only, other requests by forwarded or remote ip
func (t *HealthTarget) limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := c.GetHeader(targetTokenHeader); token != "" {
			if len(t.knownTokens) > 0 {
				if _, ok := t.knownTokens[token]; !ok {
					c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token not found"})
					return
				}
			}
			if !t.allow(t.tokenLimiters, token, t.opts.TokenRPS, t.opts.TokenBurst) {
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "token rate limit exceeded"})
				return
			}
			c.Next()
			return
		}
		if !t.allow(t.ipLimiters, clientIP(c.Request), t.opts.IPRPS, t.opts.IPBurst) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "ip rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (t *HealthTarget) allow(limiters map[string]*rate.Limiter, key string, rps float64, burst int) bool {
	if rps <= 0 {
		return true
	}
	t.mu.Lock()
	l, ok := limiters[key]
	if !ok {
		if burst <= 0 {
			burst = 1
		}
		l = rate.NewLimiter(rate.Limit(rps), burst)
		limiters[key] = l
	}
	t.mu.Unlock()
	return l.Allow()
}

// canonicalHeader rewrites header keys the way net/http server does when reading them from the wire,
// handlers called in process may get raw keys such as API_KEY
func canonicalHeader(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, vs := range h {
		for _, v := range vs {
			out.Add(k, v)
		}
	}
	return out
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get(targetIPHeader); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RunTestServer serves target on addr until returned server is shut down
func RunTestServer(addr string, t *HealthTarget, l *Logger) *http.Server {
	srv := &http.Server{
		Addr:    addr,
		Handler: t.Handler(),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Errorf("health target: %v", err)
		}
	}()
	return srv
}
