// Package dnsutil provides DNS protocol helpers shared by pkdns
// packages.
package dnsutil

import (
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	// DefaultMsgSize is the EDNS0 message size advertised and the
	// truncation bound for UDP responses.
	DefaultMsgSize = 1232
)

// SetRcode returns a response message for req with the given rcode.
func SetRcode(req *dns.Msg, rcode int) *dns.Msg {
	m := new(dns.Msg)
	m.SetRcode(req, rcode)
	m.RecursionAvailable = true
	m.Authoritative = false

	return m
}

// FormatQuestion returns a loggable form of a question.
func FormatQuestion(q dns.Question) string {
	return strings.ToLower(q.Name) + " " + dns.ClassToString[q.Qclass] + " " + dns.TypeToString[q.Qtype]
}

// MinimalTTL returns the smallest TTL across the answer section, or
// def when the section is empty.
func MinimalTTL(msg *dns.Msg, def time.Duration) time.Duration {
	if len(msg.Answer) == 0 {
		return def
	}

	min := msg.Answer[0].Header().Ttl
	for _, rr := range msg.Answer[1:] {
		if ttl := rr.Header().Ttl; ttl < min {
			min = ttl
		}
	}

	return time.Duration(min) * time.Second
}

// ClampTTL bounds ttl into [min, max].
func ClampTTL(ttl, min, max time.Duration) time.Duration {
	if ttl < min {
		ttl = min
	}
	if ttl > max {
		ttl = max
	}

	return ttl
}
