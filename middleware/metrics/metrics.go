// Package metrics counts served queries by qtype and rcode.
package metrics

import (
	"context"

	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/semihalev/pkdns/config"
	"github.com/semihalev/pkdns/middleware"
)

// Metrics type
type Metrics struct {
	queries *prometheus.CounterVec
}

func init() {
	middleware.Register(name, func(cfg *config.Config) middleware.Handler {
		return New(cfg)
	})
}

// New return new metrics
func New(cfg *config.Config) *Metrics {
	m := &Metrics{
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pkdns_queries_total",
				Help: "How many DNS queries processed",
			},
			[]string{"qtype", "rcode"},
		),
	}

	_ = prometheus.Register(m.queries)

	return m
}

// (*Metrics).Name return middleware name
func (m *Metrics) Name() string { return name }

// (*Metrics).ServeDNS implements the Handler interface.
func (m *Metrics) ServeDNS(ctx context.Context, ch *middleware.Chain) {
	ch.Next(ctx)

	if !ch.Writer.Written() || len(ch.Request.Question) == 0 {
		return
	}

	m.queries.With(prometheus.Labels{
		"qtype": dns.TypeToString[ch.Request.Question[0].Qtype],
		"rcode": dns.RcodeToString[ch.Writer.Rcode()],
	}).Inc()
}

const name = "metrics"
