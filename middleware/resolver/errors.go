package resolver

import (
	"errors"

	"github.com/miekg/dns"
)

// Resolution outcomes. None of these escape the middleware: ServeDNS
// maps them to rcodes before replying.
var (
	// ErrNotFound means the name provably does not exist: the DHT holds
	// no packet for the pubkey, the zone has no such sub-name, or the
	// upstream said NXDOMAIN.
	ErrNotFound = errors.New("name does not exist")

	// ErrTimeout means a backend exchange did not complete in time.
	ErrTimeout = errors.New("backend timed out")

	// ErrLoopDetected means a CNAME or NS chain revisited a question.
	ErrLoopDetected = errors.New("resolution loop detected")

	// ErrBudgetExhausted means the cross-zone hop budget ran out.
	ErrBudgetExhausted = errors.New("recursion budget exhausted")

	// ErrRateLimited means the client exceeded its DHT query budget
	// and no cached packet could stand in.
	ErrRateLimited = errors.New("dht queries rate limited")
)

// rcodeFor maps a resolution error to the response code.
func rcodeFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return dns.RcodeNameError
	case errors.Is(err, ErrRateLimited):
		return dns.RcodeRefused
	default:
		return dns.RcodeServerFailure
	}
}
