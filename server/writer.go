package server

import (
	"net"

	"github.com/miekg/dns"
)

// udpWriter sends one response datagram back to the query source.
type udpWriter struct {
	conn  *net.UDPConn
	raddr *net.UDPAddr
}

var _ dns.ResponseWriter = &udpWriter{}

func (w *udpWriter) WriteMsg(m *dns.Msg) error {
	packed, err := m.Pack()
	if err != nil {
		return err
	}

	_, err = w.Write(packed)
	return err
}

func (w *udpWriter) Write(b []byte) (int, error) {
	return w.conn.WriteToUDP(b, w.raddr)
}

func (w *udpWriter) LocalAddr() net.Addr { return w.conn.LocalAddr() }

func (w *udpWriter) RemoteAddr() net.Addr { return w.raddr }

func (w *udpWriter) Close() error { return nil }

func (w *udpWriter) TsigStatus() error { return nil }

func (w *udpWriter) TsigTimersOnly(bool) {}

func (w *udpWriter) Hijack() {}
