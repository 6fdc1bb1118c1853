/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/insolar/lockprobe"
)

func main() {
	var (
		addr        = pflag.String("addr", "0.0.0.0:9031", "listen address")
		tokenRPS    = pflag.Float64("token-rps", 0, "allowed rps per API_KEY, 0 disables")
		tokenBurst  = pflag.Int("token-burst", 1, "burst per API_KEY")
		ipRPS       = pflag.Float64("ip-rps", 0, "allowed rps per client ip, 0 disables")
		ipBurst     = pflag.Int("ip-burst", 1, "burst per client ip")
		knownTokens = pflag.StringSlice("known-tokens", nil, "tokens accepted by target, any token if empty")
		latency     = pflag.Duration("latency", 0, "latency added to every answer")
		logLevel    = pflag.String("log-level", "info", "debug|info|warn|error")
	)
	pflag.Parse()

	l, err := lockprobe.NewCLILogger("console", *logLevel)
	if err != nil {
		panic(err)
	}
	target := lockprobe.NewHealthTarget(lockprobe.HealthTargetOptions{
		TokenRPS:    *tokenRPS,
		TokenBurst:  *tokenBurst,
		IPRPS:       *ipRPS,
		IPBurst:     *ipBurst,
		KnownTokens: *knownTokens,
		Latency:     *latency,
	})
	srv := lockprobe.RunTestServer(*addr, target, l)
	l.Infof("health target listening on %s", *addr)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		l.Errorf("shutdown: %v", err)
	}
	l.Infof("served %d requests", len(target.Requests()))
}
