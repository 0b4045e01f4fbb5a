package mainline

import (
	"net"
	"strconv"
	"time"

	"github.com/miekg/dns"
	"github.com/semihalev/zlog/v2"
)

// Well known DHT routers. Their addresses are resolved through the
// configured forward server so pkdns never needs a system resolver;
// the literals are a fallback when the forward server is unreachable.
var routers = []string{
	"router.bittorrent.com:6881",
	"router.utorrent.com:6881",
	"dht.transmissionbt.com:6881",
	"dht.libtorrent.org:25401",
}

var fallbackRouters = []string{
	"67.215.246.10:6881",
	"87.98.162.88:6881",
	"82.221.103.244:6881",
}

// ResolveBootstrap resolves the DHT router addresses with the forward
// server.
func ResolveBootstrap(forward string, timeout time.Duration) []*net.UDPAddr {
	client := &dns.Client{Net: "udp", Timeout: timeout}

	var addrs []*net.UDPAddr

	for _, router := range routers {
		host, portstr, err := net.SplitHostPort(router)
		if err != nil {
			continue
		}
		port, _ := strconv.Atoi(portstr)

		req := new(dns.Msg)
		req.SetQuestion(dns.Fqdn(host), dns.TypeA)

		resp, _, err := client.Exchange(req, forward)
		if err != nil {
			zlog.Debug("Bootstrap router resolution failed", "router", host, "error", err.Error())
			continue
		}

		for _, rr := range resp.Answer {
			if a, ok := rr.(*dns.A); ok {
				addrs = append(addrs, &net.UDPAddr{IP: a.A, Port: port})
			}
		}
	}

	if len(addrs) == 0 {
		zlog.Warn("No DHT bootstrap nodes resolved via forward server, using fallback routers", "forward", forward)

		for _, router := range fallbackRouters {
			if addr, err := net.ResolveUDPAddr("udp", router); err == nil {
				addrs = append(addrs, addr)
			}
		}
	}

	return addrs
}
