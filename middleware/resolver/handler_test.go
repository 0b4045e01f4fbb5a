package resolver

import (
	"context"
	"testing"

	"github.com/miekg/dns"
	"github.com/semihalev/pkdns/mainline"
	"github.com/semihalev/pkdns/middleware"
	"github.com/semihalev/pkdns/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(r *Resolver, qname string, qtype uint16) *mock.Writer {
	req := new(dns.Msg)
	req.SetQuestion(qname, qtype)
	req.Id = 0x1dea

	mw := mock.NewWriter("udp", "192.0.2.1:5353")

	ch := middleware.NewChain([]middleware.Handler{r})
	ch.Reset(mw, req)
	ch.Next(context.Background())

	return mw
}

func Test_HandlerAnswer(t *testing.T) {
	key, dht := testZone(t, func(zone string) []dns.RR {
		return []dns.RR{rr(t, ". 300 IN A 1.2.3.4")}
	})

	r := New(testConfig())
	r.pkarr.dht = dht
	assert.Equal(t, "resolver", r.Name())

	mw := serve(r, key.String()+".", dns.TypeA)

	require.True(t, mw.Written())
	msg := mw.Msg()

	// the response carries the inbound id and question
	assert.Equal(t, uint16(0x1dea), msg.Id)
	require.Len(t, msg.Question, 1)
	assert.Equal(t, key.String()+".", msg.Question[0].Name)

	assert.Equal(t, dns.RcodeSuccess, msg.Rcode)
	assert.True(t, msg.RecursionAvailable)
	assert.False(t, msg.Authoritative)
	assert.Len(t, msg.Answer, 1)
}

func Test_HandlerNXDomain(t *testing.T) {
	key, dht := testZone(t, func(zone string) []dns.RR { return nil })
	dht.set(nil, mainline.ErrNotFound)

	r := New(testConfig())
	r.pkarr.dht = dht

	mw := serve(r, key.String()+".", dns.TypeA)

	require.True(t, mw.Written())
	assert.Equal(t, dns.RcodeNameError, mw.Rcode())
	assert.Empty(t, mw.Msg().Answer)
}

func Test_HandlerServfailOnLoop(t *testing.T) {
	key, dht := testZone(t, func(zone string) []dns.RR {
		return []dns.RR{
			rr(t, "a 300 IN CNAME b."+zone+"."),
			rr(t, "b 300 IN CNAME a."+zone+"."),
		}
	})

	r := New(testConfig())
	r.pkarr.dht = dht

	mw := serve(r, "a."+key.String()+".", dns.TypeA)

	require.True(t, mw.Written())
	assert.Equal(t, dns.RcodeServerFailure, mw.Rcode())
}

func Test_HandlerNoData(t *testing.T) {
	key, dht := testZone(t, func(zone string) []dns.RR {
		return []dns.RR{rr(t, ". 300 IN A 1.2.3.4")}
	})

	r := New(testConfig())
	r.pkarr.dht = dht

	mw := serve(r, key.String()+".", dns.TypeMX)

	require.True(t, mw.Written())
	assert.Equal(t, dns.RcodeSuccess, mw.Rcode())
	assert.Empty(t, mw.Msg().Answer)
}

func Test_HandlerNoQuestion(t *testing.T) {
	r := New(testConfig())

	mw := mock.NewWriter("udp", "192.0.2.1:5353")

	ch := middleware.NewChain([]middleware.Handler{r})
	ch.Reset(mw, new(dns.Msg))
	ch.Next(context.Background())

	assert.False(t, mw.Written())
}
