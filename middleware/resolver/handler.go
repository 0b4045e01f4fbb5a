package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/miekg/dns"
	"github.com/semihalev/pkdns/dnsutil"
	"github.com/semihalev/pkdns/middleware"
	"github.com/semihalev/zlog/v2"
)

// per query wall-clock budget; outstanding backend calls are
// abandoned when it expires
const queryBudget = 5 * time.Second

// (*Resolver).ServeDNS implements the Handler interface. It is the
// tail of the chain: every admitted question is answered here.
func (r *Resolver) ServeDNS(ctx context.Context, ch *middleware.Chain) {
	w, req := ch.Writer, ch.Request

	if len(req.Question) == 0 {
		ch.Cancel()
		return
	}

	q := req.Question[0]

	ctx, cancel := context.WithTimeout(ctx, queryBudget)
	defer cancel()

	answers, err := r.Resolve(ctx, q.Name, q.Qtype, w.RemoteIP())
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			zlog.Debug("Resolution failed", "query", dnsutil.FormatQuestion(q), "error", err.Error())
		}

		_ = w.WriteMsg(dnsutil.SetRcode(req, rcodeFor(err)))
		return
	}

	msg := new(dns.Msg)
	msg.SetReply(req)
	msg.RecursionAvailable = true
	msg.Authoritative = false
	msg.Answer = answers

	if w.Proto() == "udp" {
		msg.Truncate(dnsutil.DefaultMsgSize)
	}

	_ = w.WriteMsg(msg)
}
