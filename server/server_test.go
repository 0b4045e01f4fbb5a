package server

import (
	"context"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/semihalev/pkdns/config"
	"github.com/semihalev/pkdns/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type answering struct{}

func (answering) Name() string { return "answering" }

func (answering) ServeDNS(ctx context.Context, ch *middleware.Chain) {
	m := new(dns.Msg)
	m.SetReply(ch.Request)
	m.RecursionAvailable = true
	_ = ch.Writer.WriteMsg(m)
}

func testServer(t *testing.T) *Server {
	t.Helper()

	middleware.Register("answering", func(cfg *config.Config) middleware.Handler { return answering{} })

	cfg := new(config.Config)
	cfg.Socket = "127.0.0.1:0"
	cfg.Threads = 2

	middleware.Setup(cfg)

	s := New(cfg)
	require.NoError(t, s.Run())

	return s
}

func Test_UDPDispatcher(t *testing.T) {
	s := testServer(t)

	req := new(dns.Msg)
	req.SetQuestion("example.com.", dns.TypeA)
	req.Id = 0xbeef

	resp, err := dns.Exchange(req, s.Addr().String())
	require.NoError(t, err)

	// exactly one response carrying the inbound id and question
	assert.Equal(t, req.Id, resp.Id)
	require.Len(t, resp.Question, 1)
	assert.Equal(t, req.Question[0], resp.Question[0])
	assert.True(t, resp.Response)
}

func Test_BindFailure(t *testing.T) {
	cfg := new(config.Config)
	cfg.Socket = "256.0.0.1:0"
	cfg.Threads = 1

	s := New(cfg)
	assert.Error(t, s.Run())
}

func Test_MalformedDatagramDropped(t *testing.T) {
	s := testServer(t)

	conn, err := dns.Dial("udp", s.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not a dns message"))
	require.NoError(t, err)

	// no response: reading must time out
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))

	_, err = conn.ReadMsg()
	assert.Error(t, err)
}
