// Package resolver implements the recursive engine at the heart of
// pkdns: it chases CNAME and NS chains across two disjoint backends,
// signed pkarr zones pulled from the Mainline DHT and conventional
// ICANN names forwarded upstream.
package resolver

import (
	"context"
	"net"
	"strings"

	"github.com/miekg/dns"
	"github.com/semihalev/pkdns/cache"
	"github.com/semihalev/pkdns/config"
	"github.com/semihalev/pkdns/middleware"
	"github.com/semihalev/pkdns/pkarr"
	"github.com/semihalev/pkdns/pknames"
	"github.com/semihalev/zlog/v2"
)

// Resolver type
type Resolver struct {
	tld      string
	maxDepth int

	pkarr *pkarrResolver
	icann *icannResolver
	names *pknames.Table
}

func init() {
	middleware.Register(name, func(cfg *config.Config) middleware.Handler {
		return New(cfg)
	})
}

// New return resolver
func New(cfg *config.Config) *Resolver {
	names, err := pknames.Load(cfg.Directory)
	if err != nil {
		zlog.Error("Pknames directory unreadable", "dir", cfg.Directory, "error", err.Error())
		names, _ = pknames.Load("")
	}

	return &Resolver{
		tld:      cfg.TopLevelDomain,
		maxDepth: cfg.MaxRecursionDepth,
		pkarr:    newPkarrResolver(cfg),
		icann:    newIcannResolver(cfg),
		names:    names,
	}
}

// (*Resolver).Name return middleware name
func (r *Resolver) Name() string { return name }

// (*Resolver).Purge drops a cached ICANN response, for the HTTP API.
func (r *Resolver) Purge(qname string, qtype uint16) {
	r.icann.purge(qname, qtype)
}

// walk is the per-query resolution state: the remaining cross-zone
// hop budget and the visited question set for loop detection. Owned
// by exactly one query, never shared.
type walk struct {
	depth   int
	visited map[uint64]struct{}
	client  net.IP
}

func (w *walk) visit(qname string, qtype uint16) bool {
	key := cache.KeyString(qname, qtype, dns.ClassINET)
	if _, ok := w.visited[key]; ok {
		return false
	}

	w.visited[key] = struct{}{}

	return true
}

// Resolve runs one question through the engine and returns the answer
// section. The error, if any, maps to the response rcode.
func (r *Resolver) Resolve(ctx context.Context, qname string, qtype uint16, client net.IP) ([]dns.RR, error) {
	w := &walk{
		depth:   r.maxDepth,
		visited: make(map[uint64]struct{}),
		client:  client,
	}

	return r.resolve(ctx, w, qname, qtype)
}

// resolve dispatches one question to the backend owning its name and
// re-enters itself for every cross-zone hop.
func (r *Resolver) resolve(ctx context.Context, w *walk, qname string, qtype uint16) ([]dns.RR, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrTimeout
	}

	if !w.visit(qname, qtype) {
		return nil, ErrLoopDetected
	}

	qname = r.names.Rewrite(qname, r.tld)

	if pkarr.IsPkarrName(qname, r.tld) {
		return r.resolvePkarr(ctx, w, qname, qtype)
	}

	return r.resolveIcann(ctx, w, qname, qtype)
}

// hop spends one unit of the recursion budget and re-enters the
// engine with a new question.
func (r *Resolver) hop(ctx context.Context, w *walk, qname string, qtype uint16) ([]dns.RR, error) {
	if w.depth--; w.depth < 0 {
		return nil, ErrBudgetExhausted
	}

	return r.resolve(ctx, w, qname, qtype)
}

// resolvePkarr serves a question from the signed packet of its zone.
func (r *Resolver) resolvePkarr(ctx context.Context, w *walk, qname string, qtype uint16) ([]dns.RR, error) {
	key, sub, err := pkarr.SplitName(qname, r.tld)
	if err != nil {
		// key-shaped label with bogus bits: the zone can never exist
		return nil, ErrNotFound
	}

	packet, err := r.pkarr.packet(ctx, key, w.client)
	if err != nil {
		return nil, err
	}

	var (
		answers []dns.RR
		cname   *dns.CNAME
		nss     []*dns.NS
		seen    bool
	)

	for _, rr := range packet.Records() {
		if !ownerMatches(rr.Header().Name, sub) {
			continue
		}
		seen = true

		switch {
		case qtype == dns.TypeANY || rr.Header().Rrtype == qtype:
			answers = append(answers, withOwner(rr, qname))
		case rr.Header().Rrtype == dns.TypeCNAME:
			cname = withOwner(rr, qname).(*dns.CNAME)
		case rr.Header().Rrtype == dns.TypeNS:
			nss = append(nss, withOwner(rr, qname).(*dns.NS))
		}
	}

	if len(answers) > 0 {
		return answers, nil
	}

	if cname != nil {
		chased, err := r.hop(ctx, w, dns.Fqdn(cname.Target), qtype)
		if err != nil {
			return nil, err
		}

		return append([]dns.RR{cname}, chased...), nil
	}

	if len(nss) > 0 {
		return r.delegate(ctx, w, qname, qtype, nss)
	}

	if seen {
		// name exists, qtype does not
		return nil, nil
	}

	return nil, ErrNotFound
}

// delegate chases an NS delegation: resolve the nameserver address
// through the engine, then put the original question to it with the
// forwarder wire machinery.
func (r *Resolver) delegate(ctx context.Context, w *walk, qname string, qtype uint16, nss []*dns.NS) ([]dns.RR, error) {
	var lastErr error = ErrNotFound

	for _, ns := range nss {
		addrs, err := r.hop(ctx, w, dns.Fqdn(ns.Ns), dns.TypeA)
		if err != nil {
			lastErr = err
			continue
		}

		for _, rr := range addrs {
			a, ok := rr.(*dns.A)
			if !ok {
				continue
			}

			server := net.JoinHostPort(a.A.String(), r.icann.nsPort)

			resp, err := r.icann.exchange(ctx, qname, qtype, server)
			if err != nil {
				lastErr = err
				continue
			}

			if resp.Rcode == dns.RcodeNameError {
				return nil, ErrNotFound
			}

			return resp.Answer, nil
		}
	}

	return nil, lastErr
}

// resolveIcann serves a question through the upstream forwarder and
// its response cache.
func (r *Resolver) resolveIcann(ctx context.Context, w *walk, qname string, qtype uint16) ([]dns.RR, error) {
	if answers, ok := r.icann.cached(qname, qtype); ok {
		return answers, nil
	}

	resp, err := r.icann.forward(ctx, qname, qtype)
	if err != nil {
		return nil, err
	}

	if resp.Rcode == dns.RcodeNameError {
		return nil, ErrNotFound
	}

	// a CNAME into a pkarr zone re-enters the engine; the combined
	// chain is not cached because its parts age differently
	for i, rr := range resp.Answer {
		cr, ok := rr.(*dns.CNAME)
		if !ok || !pkarr.IsPkarrName(cr.Target, r.tld) {
			continue
		}

		chased, err := r.hop(ctx, w, dns.Fqdn(cr.Target), qtype)
		if err != nil {
			return nil, err
		}

		return append(copyRRs(resp.Answer[:i+1]), chased...), nil
	}

	r.icann.store(qname, qtype, resp)

	return resp.Answer, nil
}

// ownerMatches reports whether a packet record owner, relative to the
// zone apex, names sub. Publishers write the apex as ".", "@" or the
// empty name.
func ownerMatches(owner, sub string) bool {
	owner = strings.TrimSuffix(strings.ToLower(owner), ".")
	if owner == "@" {
		owner = ""
	}

	return owner == sub
}

// withOwner clones a packet record rewriting its owner to the fully
// qualified query name.
func withOwner(rr dns.RR, qname string) dns.RR {
	out := dns.Copy(rr)
	out.Header().Name = dns.Fqdn(strings.ToLower(qname))

	return out
}

func copyRRs(rrs []dns.RR) []dns.RR {
	out := make([]dns.RR, len(rrs))
	for i, rr := range rrs {
		out[i] = dns.Copy(rr)
	}

	return out
}

const name = "resolver"
