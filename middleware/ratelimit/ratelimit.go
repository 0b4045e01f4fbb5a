// Package ratelimit enforces the per-client DNS query budget. Denied
// queries are dropped without a response.
package ratelimit

import (
	"context"
	"net"

	"github.com/cespare/xxhash/v2"
	"github.com/semihalev/pkdns/cache"
	"github.com/semihalev/pkdns/config"
	"github.com/semihalev/pkdns/middleware"
	"golang.org/x/time/rate"
)

// RateLimit type
type RateLimit struct {
	limiters *cache.Cache

	rate  int
	burst int
}

func init() {
	middleware.Register(name, func(cfg *config.Config) middleware.Handler {
		return New(cfg)
	})
}

// New return ratelimit
func New(cfg *config.Config) *RateLimit {
	burst := cfg.QueryRateLimitBurst
	if burst <= 0 {
		burst = cfg.QueryRateLimit
	}

	return &RateLimit{
		limiters: cache.New(limiterCacheBytes),
		rate:     cfg.QueryRateLimit,
		burst:    burst,
	}
}

// (*RateLimit).Name return middleware name
func (r *RateLimit) Name() string { return name }

// (*RateLimit).ServeDNS implements the Handler interface.
func (r *RateLimit) ServeDNS(ctx context.Context, ch *middleware.Chain) {
	if r.rate == 0 {
		ch.Next(ctx)
		return
	}

	remoteip := ch.Writer.RemoteIP()
	if remoteip == nil || remoteip.IsLoopback() {
		ch.Next(ctx)
		return
	}

	if !r.limiter(remoteip).Allow() {
		// no reply to client
		ch.Cancel()
		return
	}

	ch.Next(ctx)
}

func (r *RateLimit) limiter(remoteip net.IP) *rate.Limiter {
	key := xxhash.Sum64(remoteip)

	if v, ok := r.limiters.Get(key); ok {
		return v.(*rate.Limiter)
	}

	l := rate.NewLimiter(rate.Limit(r.rate), r.burst)
	r.limiters.Add(key, l, limiterSize)

	return l
}

const (
	name = "ratelimit"

	// weight bookkeeping for the limiter table, bounds active buckets
	limiterSize       = 64
	limiterCacheBytes = 64 * 256 * 100
)
