package middleware

import (
	"context"

	"github.com/miekg/dns"
)

// Chain walks a request through the handler chain.
type Chain struct {
	Writer  ResponseWriter
	Request *dns.Msg

	handlers []Handler
	head     int
	count    int
}

// NewChain return new fresh chain.
func NewChain(handlers []Handler) *Chain {
	return &Chain{
		Writer:   &responseWriter{},
		handlers: handlers,
		count:    len(handlers),
	}
}

// (*Chain).Next call next dns handler in the chain.
func (ch *Chain) Next(ctx context.Context) {
	if ch.count == 0 {
		return
	}

	handler := ch.handlers[ch.head]
	ch.head = (ch.head + 1) % len(ch.handlers)
	ch.count--

	handler.ServeDNS(ctx, ch)
}

// (*Chain).Cancel cancel next calls. Nothing is written: the client
// gets no response at all.
func (ch *Chain) Cancel() {
	ch.count = 0
}

// (*Chain).CancelWithRcode cancel next calls replying rcode.
func (ch *Chain) CancelWithRcode(rcode int) {
	m := new(dns.Msg)
	m.SetRcode(ch.Request, rcode)
	m.RecursionAvailable = true

	_ = ch.Writer.WriteMsg(m)

	ch.count = 0
}

// (*Chain).Reset reset the chain variables.
func (ch *Chain) Reset(w dns.ResponseWriter, r *dns.Msg) {
	ch.Writer.Reset(w)
	ch.Request = r
	ch.count = len(ch.handlers)
	ch.head = 0
}
