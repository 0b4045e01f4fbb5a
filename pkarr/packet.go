package pkarr

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/miekg/dns"
)

var (
	// ErrBadSignature means the packet does not verify under its key.
	ErrBadSignature = errors.New("pkarr: signature verification failed")
	// ErrFutureTimestamp means the packet claims a timestamp further in
	// the future than the allowed clock skew.
	ErrFutureTimestamp = errors.New("pkarr: timestamp too far in the future")
	// ErrPacketTooLarge means the encoded record set exceeds the DHT
	// value limit.
	ErrPacketTooLarge = errors.New("pkarr: encoded packet exceeds 1000 bytes")
)

const (
	// MaxPacketSize is the BEP44 value limit for a signed packet.
	MaxPacketSize = 1000

	// maximum tolerated forward clock skew on packet timestamps
	maxSkew = 10 * time.Minute
)

// SignedPacket is a pkarr record set: a DNS reply encoded by the key
// owner, signed together with a microsecond timestamp. Packets with
// the same key are ordered by timestamp, newest wins.
type SignedPacket struct {
	Key       PublicKey
	Timestamp uint64 // microseconds since the UNIX epoch
	Signature [64]byte

	payload []byte
	records []dns.RR
}

// NewSignedPacket validates a packet received from the DHT. The
// signature must verify over the BEP44 signable and the timestamp must
// not be further than the allowed skew in the future.
func NewSignedPacket(key PublicKey, seq uint64, sig, payload []byte) (*SignedPacket, error) {
	if len(sig) != ed25519.SignatureSize {
		return nil, ErrBadSignature
	}
	if len(payload) > MaxPacketSize {
		return nil, ErrPacketTooLarge
	}

	if !ed25519.Verify(key[:], signable(seq, payload), sig) {
		return nil, ErrBadSignature
	}

	if seq > uint64(time.Now().Add(maxSkew).UnixMicro()) {
		return nil, ErrFutureTimestamp
	}

	records, err := decodeRecords(payload)
	if err != nil {
		return nil, err
	}

	p := &SignedPacket{
		Key:       key,
		Timestamp: seq,
		payload:   payload,
		records:   records,
	}
	copy(p.Signature[:], sig)

	return p, nil
}

// Sign builds and signs a packet from a record set. The record owner
// names are relative to the zone apex ("." or empty for the apex).
func Sign(priv ed25519.PrivateKey, ts time.Time, records []dns.RR) (*SignedPacket, error) {
	msg := new(dns.Msg)
	msg.Response = true
	msg.Answer = records
	msg.Compress = false

	payload, err := msg.Pack()
	if err != nil {
		return nil, err
	}
	if len(payload) > MaxPacketSize {
		return nil, ErrPacketTooLarge
	}

	seq := uint64(ts.UnixMicro())
	sig := ed25519.Sign(priv, signable(seq, payload))

	p := &SignedPacket{
		Timestamp: seq,
		payload:   payload,
		records:   records,
	}
	copy(p.Key[:], priv.Public().(ed25519.PublicKey))
	copy(p.Signature[:], sig)

	return p, nil
}

// (*SignedPacket).Records returns the packet record set. Owner names
// are as encoded by the publisher, relative to the zone apex. Callers
// must not mutate the returned records.
func (p *SignedPacket) Records() []dns.RR {
	return p.records
}

// (*SignedPacket).Payload returns the encoded record set, the DHT
// value the signature covers.
func (p *SignedPacket) Payload() []byte {
	return p.payload
}

// (*SignedPacket).Size returns the cache weight of the packet in bytes.
func (p *SignedPacket) Size() int {
	return len(p.payload) + len(p.Signature) + len(p.Key) + 8
}

// (*SignedPacket).Age returns how long ago the packet was signed.
func (p *SignedPacket) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMicro(int64(p.Timestamp)))
}

// signable is the BEP44 mutable-item form the signature covers.
func signable(seq uint64, v []byte) []byte {
	return fmt.Appendf(nil, "3:seqi%de1:v%d:%s", seq, len(v), v)
}

func decodeRecords(payload []byte) ([]dns.RR, error) {
	msg := new(dns.Msg)
	if err := msg.Unpack(payload); err != nil {
		return nil, err
	}

	return msg.Answer, nil
}
