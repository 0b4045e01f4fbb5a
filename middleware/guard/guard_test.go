package guard

import (
	"context"
	"testing"

	"github.com/miekg/dns"
	"github.com/semihalev/pkdns/config"
	"github.com/semihalev/pkdns/middleware"
	"github.com/semihalev/pkdns/mock"
	"github.com/stretchr/testify/assert"
)

type answering struct{}

func (answering) Name() string { return "answering" }

func (answering) ServeDNS(ctx context.Context, ch *middleware.Chain) {
	m := new(dns.Msg)
	m.SetReply(ch.Request)
	_ = ch.Writer.WriteMsg(m)
}

func serve(g *Guard, qname string, qtype uint16) *mock.Writer {
	req := new(dns.Msg)
	req.SetQuestion(dns.Fqdn(qname), qtype)

	mw := mock.NewWriter("udp", "192.0.2.1:5353")

	ch := middleware.NewChain([]middleware.Handler{g, answering{}})
	ch.Reset(mw, req)
	ch.Next(context.Background())

	return mw
}

func Test_AnySuppression(t *testing.T) {
	cfg := new(config.Config)
	cfg.DisableAnyQueries = true

	g := New(cfg)
	assert.Equal(t, "guard", g.Name())

	// no outbound datagram at all
	mw := serve(g, "anything.com.", dns.TypeANY)
	assert.False(t, mw.Written())
}

func Test_AnyAllowedWhenEnabled(t *testing.T) {
	g := New(new(config.Config))

	mw := serve(g, "anything.com.", dns.TypeANY)
	assert.True(t, mw.Written())
	assert.Equal(t, dns.RcodeSuccess, mw.Rcode())
}

func Test_UnsupportedType(t *testing.T) {
	g := New(new(config.Config))

	mw := serve(g, "4.3.2.1.in-addr.arpa.", dns.TypePTR)
	assert.True(t, mw.Written())
	assert.Equal(t, dns.RcodeNotImplemented, mw.Rcode())
}

func Test_SupportedTypesPass(t *testing.T) {
	g := New(new(config.Config))

	for _, qtype := range []uint16{
		dns.TypeA, dns.TypeAAAA, dns.TypeCNAME, dns.TypeNS, dns.TypeTXT,
		dns.TypeMX, dns.TypeSOA, dns.TypeSRV, dns.TypeSVCB, dns.TypeHTTPS,
	} {
		mw := serve(g, "example.com.", qtype)
		assert.True(t, mw.Written(), dns.TypeToString[qtype])
		assert.Equal(t, dns.RcodeSuccess, mw.Rcode())
	}
}

func Test_NoQuestionDropped(t *testing.T) {
	g := New(new(config.Config))

	mw := mock.NewWriter("udp", "192.0.2.1:5353")

	ch := middleware.NewChain([]middleware.Handler{g, answering{}})
	ch.Reset(mw, new(dns.Msg))
	ch.Next(context.Background())

	assert.False(t, mw.Written())
}
