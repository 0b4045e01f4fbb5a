package resolver

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/semihalev/pkdns/cache"
	"github.com/semihalev/pkdns/config"
	"github.com/semihalev/pkdns/mainline"
	"github.com/semihalev/pkdns/pkarr"
	"github.com/semihalev/zlog/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// dhtBackend is the DHT collaborator contract: one signed packet per
// public key, newest wins.
type dhtBackend interface {
	Lookup(ctx context.Context, key pkarr.PublicKey) (*pkarr.SignedPacket, error)
}

// pkarrResolver owns the signed packet cache and the DHT client. It
// coalesces concurrent lookups per key and holds back clients that
// trigger too many DHT queries.
type pkarrResolver struct {
	dht      dhtBackend
	packets  *cache.Cache
	group    singleflight.Group
	limiters *cache.Cache

	minTTL time.Duration

	rate  int
	burst int
}

// pkarrEntry is a cached signed packet. A nil packet marks a key the
// DHT holds nothing for, so misses don't hammer the network either.
type pkarrEntry struct {
	packet   *pkarr.SignedPacket
	storedAt time.Time
}

func (e *pkarrEntry) size() int64 {
	if e.packet == nil {
		return notFoundSize
	}

	return int64(e.packet.Size())
}

func newPkarrResolver(cfg *config.Config) *pkarrResolver {
	burst := cfg.DHTQueryRateLimitBurst
	if burst <= 0 {
		burst = cfg.DHTQueryRateLimit
	}

	return &pkarrResolver{
		dht:      mainline.New(cfg.Forward, cfg.Timeout.Duration),
		packets:  cache.New(cfg.DHTCacheMB * 1024 * 1024),
		limiters: cache.New(limiterCacheBytes),
		minTTL:   time.Duration(cfg.MinTTL) * time.Second,
		rate:     cfg.DHTQueryRateLimit,
		burst:    burst,
	}
}

// packet returns the signed packet for key, from cache when younger
// than min_ttl, refreshed from the DHT otherwise. A stale packet
// stands in when the DHT fails or the client is over its DHT budget.
// ErrNotFound means the DHT authoritatively holds nothing.
func (p *pkarrResolver) packet(ctx context.Context, key pkarr.PublicKey, client net.IP) (*pkarr.SignedPacket, error) {
	ck := xxhash.Sum64(key[:])

	stale, ok := p.get(ck)
	if ok && time.Since(stale.storedAt) < p.minTTL {
		return p.unwrap(stale)
	}

	if !p.admit(client) {
		if ok {
			return p.unwrap(stale)
		}

		zlog.Debug("DHT query rate limited", "client", client.String(), "key", key.String())

		return nil, ErrRateLimited
	}

	v, err, _ := p.group.Do(key.String(), func() (any, error) {
		// the winner of the gate may already have refreshed it
		if e, ok := p.get(ck); ok && time.Since(e.storedAt) < p.minTTL {
			return e, nil
		}

		packet, err := p.dht.Lookup(ctx, key)
		if err != nil {
			return nil, err
		}

		return p.store(ck, packet), nil
	})

	if err != nil {
		if errors.Is(err, mainline.ErrNotFound) {
			return p.unwrap(p.store(ck, nil))
		}

		// serve stale on lookup failure
		if ok {
			zlog.Debug("DHT lookup failed, serving stale packet", "key", key.String(), "error", err.Error())
			return p.unwrap(stale)
		}

		zlog.Debug("DHT lookup failed", "key", key.String(), "error", err.Error())

		return nil, ErrTimeout
	}

	return p.unwrap(v.(*pkarrEntry))
}

func (p *pkarrResolver) get(ck uint64) (*pkarrEntry, bool) {
	if v, ok := p.packets.Get(ck); ok {
		return v.(*pkarrEntry), true
	}

	return nil, false
}

// store inserts a packet, keeping the newest timestamp when a fresher
// packet landed concurrently.
func (p *pkarrResolver) store(ck uint64, packet *pkarr.SignedPacket) *pkarrEntry {
	if cur, ok := p.get(ck); ok && cur.packet != nil && packet != nil &&
		cur.packet.Timestamp > packet.Timestamp {
		packet = cur.packet
	}

	e := &pkarrEntry{packet: packet, storedAt: time.Now()}
	p.packets.Add(ck, e, e.size())

	return e
}

func (p *pkarrResolver) unwrap(e *pkarrEntry) (*pkarr.SignedPacket, error) {
	if e.packet == nil {
		return nil, ErrNotFound
	}

	return e.packet, nil
}

// admit consults the per-client DHT budget. Local and unknown sources
// are never limited.
func (p *pkarrResolver) admit(client net.IP) bool {
	if p.rate == 0 || client == nil || client.IsLoopback() {
		return true
	}

	ck := xxhash.Sum64(client)

	var l *rate.Limiter
	if v, ok := p.limiters.Get(ck); ok {
		l = v.(*rate.Limiter)
	} else {
		l = rate.NewLimiter(rate.Limit(p.rate), p.burst)
		p.limiters.Add(ck, l, limiterSize)
	}

	return l.Allow()
}

const (
	notFoundSize = 64

	limiterSize       = 64
	limiterCacheBytes = 64 * 256 * 100
)
