// Package guard screens questions before resolution: amplification
// defense for ANY and NOTIMP for query types pkdns does not serve.
package guard

import (
	"context"

	"github.com/miekg/dns"
	"github.com/semihalev/pkdns/config"
	"github.com/semihalev/pkdns/middleware"
	"github.com/semihalev/zlog/v2"
)

// Guard type
type Guard struct {
	disableAny bool
}

func init() {
	middleware.Register(name, func(cfg *config.Config) middleware.Handler {
		return New(cfg)
	})
}

// New return guard
func New(cfg *config.Config) *Guard {
	return &Guard{disableAny: cfg.DisableAnyQueries}
}

// (*Guard).Name return middleware name
func (g *Guard) Name() string { return name }

// (*Guard).ServeDNS implements the Handler interface.
func (g *Guard) ServeDNS(ctx context.Context, ch *middleware.Chain) {
	req := ch.Request

	if len(req.Question) != 1 || req.Opcode != dns.OpcodeQuery {
		// no reply to client
		ch.Cancel()
		return
	}

	q := req.Question[0]

	if q.Qtype == dns.TypeANY {
		if g.disableAny {
			zlog.Debug("ANY query suppressed", "client", ch.Writer.RemoteAddr().String())

			// amplification guard, no reply to client
			ch.Cancel()
			return
		}

		ch.Next(ctx)
		return
	}

	if _, ok := supported[q.Qtype]; !ok {
		ch.CancelWithRcode(dns.RcodeNotImplemented)
		return
	}

	ch.Next(ctx)
}

var supported = map[uint16]struct{}{
	dns.TypeA:     {},
	dns.TypeAAAA:  {},
	dns.TypeCNAME: {},
	dns.TypeNS:    {},
	dns.TypeTXT:   {},
	dns.TypeMX:    {},
	dns.TypeSOA:   {},
	dns.TypeSRV:   {},
	dns.TypeSVCB:  {},
	dns.TypeHTTPS: {},
}

const name = "guard"
