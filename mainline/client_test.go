package mainline

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"net"
	"testing"
	"time"

	bencode "github.com/jackpal/bencode-go"
	"github.com/miekg/dns"
	"github.com/semihalev/pkdns/pkarr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testNode runs a fake DHT node answering every get query with reply.
func testNode(t *testing.T, body func(txid string) map[string]any) *net.UDPAddr {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	go func() {
		buf := make([]byte, 2048)
		for {
			n, raddr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}

			v, err := bencode.Decode(bytes.NewReader(buf[:n]))
			if err != nil {
				continue
			}
			txid, _ := v.(map[string]any)["t"].(string)

			var out bytes.Buffer
			if err := bencode.Marshal(&out, body(txid)); err != nil {
				continue
			}

			_, _ = conn.WriteToUDP(out.Bytes(), raddr)
		}
	}()

	return conn.LocalAddr().(*net.UDPAddr)
}

// bootstrapped returns a client pinned to the given nodes, skipping
// router resolution.
func bootstrapped(nodes ...*net.UDPAddr) *Client {
	c := New("127.0.0.1:1", 100*time.Millisecond)
	c.once.Do(func() { c.bootstrap = nodes })

	return c
}

func signedZone(t *testing.T) (pkarr.PublicKey, *pkarr.SignedPacket) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	rr, err := dns.NewRR(". 300 IN A 1.2.3.4")
	require.NoError(t, err)

	packet, err := pkarr.Sign(priv, time.Now(), []dns.RR{rr})
	require.NoError(t, err)

	var key pkarr.PublicKey
	copy(key[:], pub)

	return key, packet
}

func Test_LookupFindsValue(t *testing.T) {
	key, packet := signedZone(t)

	addr := testNode(t, func(txid string) map[string]any {
		return map[string]any{
			"t": txid,
			"y": "r",
			"r": map[string]any{
				"id":  string(make([]byte, 20)),
				"seq": int64(packet.Timestamp),
				"sig": string(packet.Signature[:]),
				"v":   string(packet.Payload()),
				"k":   string(key[:]),
			},
		}
	})

	c := bootstrapped(addr)

	got, err := c.Lookup(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, packet.Timestamp, got.Timestamp)
	assert.Len(t, got.Records(), 1)
}

func Test_LookupNotFound(t *testing.T) {
	key, _ := signedZone(t)

	addr := testNode(t, func(txid string) map[string]any {
		return map[string]any{
			"t": txid,
			"y": "r",
			"r": map[string]any{"id": string(make([]byte, 20)), "nodes": ""},
		}
	})

	c := bootstrapped(addr)

	_, err := c.Lookup(context.Background(), key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func Test_LookupNoReachableNodes(t *testing.T) {
	key, _ := signedZone(t)

	// nobody listens here
	c := bootstrapped(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9})

	_, err := c.Lookup(context.Background(), key)
	assert.ErrorIs(t, err, ErrNoNodes)
}

func Test_LookupRejectsForgedValue(t *testing.T) {
	key, packet := signedZone(t)

	forged := append([]byte(nil), packet.Payload()...)
	forged[len(forged)-1] ^= 0xff

	addr := testNode(t, func(txid string) map[string]any {
		return map[string]any{
			"t": txid,
			"y": "r",
			"r": map[string]any{
				"id":  string(make([]byte, 20)),
				"seq": int64(packet.Timestamp),
				"sig": string(packet.Signature[:]),
				"v":   string(forged),
			},
		}
	})

	c := bootstrapped(addr)

	_, err := c.Lookup(context.Background(), key)
	assert.ErrorIs(t, err, ErrNotFound)
}
