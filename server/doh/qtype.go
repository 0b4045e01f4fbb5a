package doh

import (
	"strconv"
	"strings"

	"github.com/miekg/dns"
)

// ParseQTYPE maps the JSON API "type" parameter to a qtype. Accepts
// mnemonics and numeric values; empty means A.
func ParseQTYPE(s string) uint16 {
	if s == "" {
		return dns.TypeA
	}

	if t, ok := dns.StringToType[strings.ToUpper(s)]; ok {
		return t
	}

	if v, err := strconv.ParseUint(s, 10, 16); err == nil && v > 0 {
		return uint16(v)
	}

	return dns.TypeNone
}
