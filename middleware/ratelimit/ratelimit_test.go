package ratelimit

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

func serve(r *RateLimit, addr string) *mock.Writer {
	req := new(dns.Msg)
	req.SetQuestion("example.com.", dns.TypeA)

	mw := mock.NewWriter("udp", addr)

	ch := middleware.NewChain([]middleware.Handler{r, answering{}})
	ch.Reset(mw, req)
	ch.Next(context.Background())

	return mw
}

func Test_SecondQueryDropped(t *testing.T) {
	cfg := new(config.Config)
	cfg.QueryRateLimit = 1
	cfg.QueryRateLimitBurst = 1

	r := New(cfg)
	assert.Equal(t, "ratelimit", r.Name())

	// two queries from one source back to back: first answered,
	// second dropped without a response
	assert.True(t, serve(r, "192.0.2.1:5353").Written())
	assert.False(t, serve(r, "192.0.2.1:5353").Written())

	// an unrelated source has its own bucket
	assert.True(t, serve(r, "192.0.2.2:5353").Written())
}

func Test_DisabledLimiter(t *testing.T) {
	r := New(new(config.Config))

	for i := 0; i < 10; i++ {
		assert.True(t, serve(r, "192.0.2.1:5353").Written())
	}
}

func Test_LoopbackNeverLimited(t *testing.T) {
	cfg := new(config.Config)
	cfg.QueryRateLimit = 1
	cfg.QueryRateLimitBurst = 1

	r := New(cfg)

	for i := 0; i < 10; i++ {
		assert.True(t, serve(r, "127.0.0.1:5353").Written())
	}
}
