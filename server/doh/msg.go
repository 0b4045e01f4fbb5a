package doh

import (
	"strings"

	"github.com/miekg/dns"
)

// Msg is the JSON form of a response. pkdns answers carry no DNSSEC
// posture and never fill the authority section, so the shape is the
// query state, the question and the answers, nothing more.
type Msg struct {
	Status   int  `json:"Status"`
	TC       bool `json:"TC"`
	RD       bool `json:"RD"`
	RA       bool `json:"RA"`
	Question []Question
	Answer   []RR `json:",omitempty"`
}

// Question struct
type Question struct {
	Name  string `json:"name"`
	Qtype uint16 `json:"type"`
}

// RR struct
type RR struct {
	Name string `json:"name"`
	Type uint16 `json:"type"`
	TTL  uint32 `json:"TTL"`
	Data string `json:"data"`
}

// NewMsg function
func NewMsg(m *dns.Msg) *Msg {
	if m == nil {
		return nil
	}

	msg := &Msg{
		Status: m.Rcode,
		TC:     m.Truncated,
		RD:     m.RecursionDesired,
		RA:     m.RecursionAvailable,
	}

	for _, q := range m.Question {
		msg.Question = append(msg.Question, Question{Name: q.Name, Qtype: q.Qtype})
	}

	for _, a := range m.Answer {
		msg.Answer = append(msg.Answer, newRR(a))
	}

	return msg
}

func newRR(a dns.RR) RR {
	hdr := a.Header()

	return RR{
		Name: hdr.Name,
		Type: hdr.Rrtype,
		TTL:  hdr.Ttl,
		Data: strings.TrimPrefix(a.String(), hdr.String()),
	}
}
