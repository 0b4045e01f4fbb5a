// Package pkarr implements the pkarr conventions for publishing DNS
// record sets under an Ed25519 public key: the z-base-32 key label
// codec and the signed packet format carried over the Mainline DHT.
package pkarr

import (
	"errors"
	"strings"

	"filippo.io/edwards25519"
	"github.com/miekg/dns"
	"github.com/tv42/zbase32"
)

// PublicKey is a raw Ed25519 public key.
type PublicKey [32]byte

var (
	// ErrInvalidKey means the label is not a pkarr public key at all.
	ErrInvalidKey = errors.New("pkarr: label is not a public key")
	// ErrBadKeyBits means the label decodes to 32 bytes but is not a
	// valid Ed25519 point. The name shape is pkarr, the key is bogus.
	ErrBadKeyBits = errors.New("pkarr: key is not a valid ed25519 point")
)

const keyLabelSize = 52

// ParsePublicKey decodes a single DNS label as a z-base-32 public key.
func ParsePublicKey(label string) (PublicKey, error) {
	var key PublicKey

	if len(label) != keyLabelSize {
		return key, ErrInvalidKey
	}

	raw, err := zbase32.DecodeString(strings.ToLower(label))
	if err != nil || len(raw) < len(key) {
		return key, ErrInvalidKey
	}

	copy(key[:], raw)

	if _, err := new(edwards25519.Point).SetBytes(key[:]); err != nil {
		return key, ErrBadKeyBits
	}

	return key, nil
}

// (PublicKey).String returns the z-base-32 form of the key.
func (k PublicKey) String() string {
	return zbase32.EncodeToString(k[:])
}

// SplitName splits a query name into the zone public key and the
// sub-name below the zone apex. With an empty tld the rightmost label
// must be a key; with a tld configured the rightmost label must equal
// the tld and the second-from-right label must be a key. The returned
// sub is lowercase without a trailing dot, empty at the apex.
func SplitName(qname, tld string) (PublicKey, string, error) {
	labels := dns.SplitDomainName(qname)

	if tld != "" {
		if len(labels) < 2 || !strings.EqualFold(labels[len(labels)-1], tld) {
			return PublicKey{}, "", ErrInvalidKey
		}
		labels = labels[:len(labels)-1]
	}

	if len(labels) == 0 {
		return PublicKey{}, "", ErrInvalidKey
	}

	key, err := ParsePublicKey(labels[len(labels)-1])
	if err != nil {
		return PublicKey{}, "", err
	}

	sub := strings.ToLower(strings.Join(labels[:len(labels)-1], "."))

	return key, sub, nil
}

// IsPkarrName reports whether qname is rooted in a pkarr zone under
// the given optional tld. Names with a key-shaped but bogus label
// still count as pkarr rooted, they just can never resolve.
func IsPkarrName(qname, tld string) bool {
	_, _, err := SplitName(qname, tld)
	return err == nil || errors.Is(err, ErrBadKeyBits)
}
