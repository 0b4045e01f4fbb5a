// Package server runs the pkdns transports: the UDP dispatcher with
// its fixed worker pool and the optional DNS-over-HTTP endpoint.
package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/miekg/dns"
	"github.com/semihalev/pkdns/config"
	"github.com/semihalev/pkdns/middleware"
	"github.com/semihalev/pkdns/mock"
	"github.com/semihalev/pkdns/server/doh"
	"github.com/semihalev/zlog/v2"
)

// Server type
type Server struct {
	addr    string
	dohAddr string
	threads int

	conn *net.UDPConn

	chainPool sync.Pool
}

// New return new server
func New(cfg *config.Config) *Server {
	s := &Server{
		addr:    cfg.Socket,
		dohAddr: cfg.DNSOverHTTPSocket,
		threads: cfg.Threads,
	}

	s.chainPool.New = func() any {
		return middleware.NewChain(middleware.Handlers())
	}

	return s
}

type job struct {
	raw   []byte
	raddr *net.UDPAddr
}

// (*Server).Run binds the sockets and starts serving. A bind failure
// is fatal and returned to the caller.
func (s *Server) Run() error {
	laddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return err
	}

	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return err
	}
	s.conn = conn

	zlog.Info("DNS server listening...", "net", "udp", "addr", s.addr, "threads", s.threads)

	jobs := make(chan job, s.threads*4)

	for i := 0; i < s.threads; i++ {
		go s.worker(conn, jobs)
	}

	go s.read(conn, jobs)

	if s.dohAddr != "" {
		go s.listenAndServeDOH()
	}

	return nil
}

// read is the single producer: it never blocks on resolution, only on
// the socket and the job queue.
func (s *Server) read(conn *net.UDPConn, jobs chan<- job) {
	for {
		buf := make([]byte, maxDatagramSize)

		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				continue
			}

			zlog.Error("DNS listener failed", "net", "udp", "addr", s.addr, "error", err.Error())
			close(jobs)
			return
		}

		jobs <- job{raw: buf[:n], raddr: raddr}
	}
}

func (s *Server) worker(conn *net.UDPConn, jobs <-chan job) {
	for j := range jobs {
		req := new(dns.Msg)
		if err := req.Unpack(j.raw); err != nil {
			// malformed datagram, drop silently
			continue
		}

		s.serve(&udpWriter{conn: conn, raddr: j.raddr}, req)
	}
}

// serve implements the dns Handler contract over the middleware
// chain.
func (s *Server) serve(w dns.ResponseWriter, r *dns.Msg) {
	ch := s.chainPool.Get().(*middleware.Chain)

	ch.Reset(w, r)
	ch.Next(context.Background())

	s.chainPool.Put(ch)
}

// ServeHTTP hands DoH requests to the same chain through an
// in-memory writer.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handle := func(req *dns.Msg) *dns.Msg {
		mw := mock.NewWriter("tcp", r.RemoteAddr)
		s.serve(mw, req)

		if !mw.Written() {
			return nil
		}

		return mw.Msg()
	}

	var handlerFn func(http.ResponseWriter, *http.Request)
	if r.Method == http.MethodGet && r.URL.Query().Get("dns") == "" {
		handlerFn = doh.HandleJSON(handle)
	} else {
		handlerFn = doh.HandleWireFormat(handle)
	}

	handlerFn(w, r)
}

func (s *Server) listenAndServeDOH() {
	zlog.Info("DNS server listening...", "net", "http", "addr", s.dohAddr)

	srv := &http.Server{
		Addr:         s.dohAddr,
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil {
		zlog.Error("DoH listener failed", "net", "http", "addr", s.dohAddr, "error", err.Error())
	}
}

// (*Server).Addr returns the bound UDP address after Run.
func (s *Server) Addr() net.Addr {
	if s.conn == nil {
		return nil
	}

	return s.conn.LocalAddr()
}

// maxDatagramSize bounds inbound datagrams; queries never legitimately
// exceed it.
const maxDatagramSize = 4096
