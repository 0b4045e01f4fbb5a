package cache

import (
	"github.com/cespare/xxhash/v2"
	"github.com/miekg/dns"
)

// Key generates the cache key for a DNS question:
// xxhash over [qclass:2][qtype:2][lowercased qname].
func Key(q dns.Question) uint64 {
	return KeyString(q.Name, q.Qtype, q.Qclass)
}

// KeyString is the cache key for a question given by its parts.
func KeyString(qname string, qtype, qclass uint16) uint64 {
	buf := make([]byte, 0, 4+len(qname))

	buf = append(buf, byte(qclass>>8), byte(qclass))
	buf = append(buf, byte(qtype>>8), byte(qtype))

	for i := 0; i < len(qname); i++ {
		c := qname[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		buf = append(buf, c)
	}

	return xxhash.Sum64(buf)
}
