// Package mock provides a dns.ResponseWriter for tests and for
// transports that carry wire messages out of band (DoH).
package mock

import (
	"net"

	"github.com/miekg/dns"
)

// Writer is an in-memory dns.ResponseWriter that records the last
// written message.
type Writer struct {
	msg *dns.Msg

	proto string

	localAddr  net.Addr
	remoteAddr net.Addr

	remoteip net.IP
}

// NewWriter returns a writer pretending to serve proto ("udp" or
// "tcp") for a client at addr.
func NewWriter(proto, addr string) *Writer {
	w := &Writer{}

	switch proto {
	case "tcp":
		w.localAddr = &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 53}
		w.remoteAddr, _ = net.ResolveTCPAddr("tcp", addr)
		w.remoteip = w.remoteAddr.(*net.TCPAddr).IP
		w.proto = "tcp"

	case "udp":
		w.localAddr = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 53}
		w.remoteAddr, _ = net.ResolveUDPAddr("udp", addr)
		w.remoteip = w.remoteAddr.(*net.UDPAddr).IP
		w.proto = "udp"
	}

	return w
}

// Rcode returns the rcode of the written message, SERVFAIL if none.
func (w *Writer) Rcode() int {
	if w.msg == nil {
		return dns.RcodeServerFailure
	}

	return w.msg.Rcode
}

// Msg returns the written message.
func (w *Writer) Msg() *dns.Msg { return w.msg }

func (w *Writer) Write(b []byte) (int, error) {
	w.msg = new(dns.Msg)
	if err := w.msg.Unpack(b); err != nil {
		return 0, err
	}

	return len(b), nil
}

func (w *Writer) WriteMsg(msg *dns.Msg) error {
	w.msg = msg
	return nil
}

// Written reports whether a message was written.
func (w *Writer) Written() bool { return w.msg != nil }

// RemoteIP returns the client IP.
func (w *Writer) RemoteIP() net.IP { return w.remoteip }

// Proto returns the transport name.
func (w *Writer) Proto() string { return w.proto }

func (w *Writer) Reset(rw dns.ResponseWriter) {}

func (w *Writer) Close() error { return nil }

func (w *Writer) Hijack() {}

func (w *Writer) LocalAddr() net.Addr { return w.localAddr }

func (w *Writer) RemoteAddr() net.Addr { return w.remoteAddr }

func (w *Writer) TsigStatus() error { return nil }

func (w *Writer) TsigTimersOnly(ok bool) {}
