package resolver

import (
	"context"
	"time"

	"github.com/miekg/dns"
	"github.com/semihalev/pkdns/cache"
	"github.com/semihalev/pkdns/config"
	"github.com/semihalev/pkdns/dnsutil"
	"github.com/semihalev/zlog/v2"
	"golang.org/x/sync/singleflight"
)

// icannResolver forwards conventional names to the configured
// upstream and keeps a TTL-bounded response cache. With max_ttl zero
// the cache is a no-op.
type icannResolver struct {
	upstream string
	client   *dns.Client

	responses *cache.Cache
	group     singleflight.Group

	// port queried on delegated nameservers
	nsPort string

	minTTL time.Duration
	maxTTL time.Duration
}

// icannEntry is an immutable cached response; every hit materializes
// a fresh answer section with rewritten TTLs.
type icannEntry struct {
	answer []dns.RR
	expiry time.Time
	size   int64
}

func newIcannResolver(cfg *config.Config) *icannResolver {
	r := &icannResolver{
		upstream: cfg.Forward,
		client:   &dns.Client{Net: "udp", Timeout: cfg.Timeout.Duration, UDPSize: dnsutil.DefaultMsgSize},
		nsPort:   "53",
		minTTL:   time.Duration(cfg.MinTTL) * time.Second,
		maxTTL:   time.Duration(cfg.MaxTTL) * time.Second,
	}

	if cfg.MaxTTL > 0 {
		r.responses = cache.New(cfg.ICANNCacheMB * 1024 * 1024)
	}

	return r
}

// cached returns a copy of a cached answer with every TTL rewritten
// to the remaining entry lifetime.
func (f *icannResolver) cached(qname string, qtype uint16) ([]dns.RR, bool) {
	if f.responses == nil {
		return nil, false
	}

	v, ok := f.responses.Get(cache.KeyString(qname, qtype, dns.ClassINET))
	if !ok {
		return nil, false
	}

	e := v.(*icannEntry)

	remaining := time.Until(e.expiry)
	if remaining <= 0 {
		f.responses.Remove(cache.KeyString(qname, qtype, dns.ClassINET))
		return nil, false
	}

	ttl := uint32(remaining / time.Second)

	answers := make([]dns.RR, len(e.answer))
	for i, rr := range e.answer {
		out := dns.Copy(rr)
		out.Header().Ttl = ttl
		answers[i] = out
	}

	return answers, true
}

// store caches an upstream response. Expiry derives from the minimum
// answer TTL clamped into [min_ttl, max_ttl].
func (f *icannResolver) store(qname string, qtype uint16, resp *dns.Msg) {
	if f.responses == nil {
		return
	}

	ttl := dnsutil.ClampTTL(dnsutil.MinimalTTL(resp, f.minTTL), f.minTTL, f.maxTTL)

	e := &icannEntry{
		answer: copyRRs(resp.Answer),
		expiry: time.Now().Add(ttl),
		size:   int64(resp.Len()),
	}

	f.responses.Add(cache.KeyString(qname, qtype, dns.ClassINET), e, e.size)
}

// purge drops a cached response.
func (f *icannResolver) purge(qname string, qtype uint16) {
	if f.responses != nil {
		f.responses.Remove(cache.KeyString(dns.Fqdn(qname), qtype, dns.ClassINET))
	}
}

// forward puts the question to the upstream, coalescing identical
// in-flight questions into one exchange.
func (f *icannResolver) forward(ctx context.Context, qname string, qtype uint16) (*dns.Msg, error) {
	key := dns.TypeToString[qtype] + ":" + qname

	v, err, _ := f.group.Do(key, func() (any, error) {
		return f.exchange(ctx, qname, qtype, f.upstream)
	})
	if err != nil {
		return nil, err
	}

	return v.(*dns.Msg), nil
}

// exchange is the raw wire machinery: one UDP query against one
// server, bounded by the configured timeout. It is also used for
// queries against delegated nameservers.
func (f *icannResolver) exchange(ctx context.Context, qname string, qtype uint16, server string) (*dns.Msg, error) {
	req := new(dns.Msg)
	req.SetQuestion(dns.Fqdn(qname), qtype)
	req.RecursionDesired = true
	req.SetEdns0(dnsutil.DefaultMsgSize, false)

	resp, _, err := f.client.ExchangeContext(ctx, req, server)
	if err != nil {
		zlog.Debug("Upstream exchange failed", "server", server, "qname", qname, "error", err.Error())
		return nil, ErrTimeout
	}

	return resp, nil
}
