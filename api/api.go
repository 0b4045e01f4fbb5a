// Package api serves the operational HTTP endpoints: prometheus
// metrics and ICANN cache purging.
package api

import (
	"net/http"
	"time"

	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/semihalev/pkdns/config"
	"github.com/semihalev/pkdns/middleware"
	"github.com/semihalev/pkdns/middleware/resolver"
	"github.com/semihalev/zlog/v2"
)

// API type
type API struct {
	addr string
}

// New return api
func New(cfg *config.Config) *API {
	return &API{addr: cfg.API}
}

// (*API).Run starts the API server when an address is configured.
func (a *API) Run() {
	if a.addr == "" {
		return
	}

	srv := &http.Server{
		Addr:         a.addr,
		Handler:      a.handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	zlog.Info("API server listening...", "addr", a.addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			zlog.Error("API listener failed", "addr", a.addr, "error", err.Error())
		}
	}()
}

func (a *API) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/v1/purge/{qname}/{qtype}", purge)

	return mux
}

func purge(w http.ResponseWriter, r *http.Request) {
	qtype, ok := dns.StringToType[r.PathValue("qtype")]
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	res, ok := middleware.Get("resolver").(*resolver.Resolver)
	if !ok {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	res.Purge(r.PathValue("qname"), qtype)

	w.WriteHeader(http.StatusOK)
}
