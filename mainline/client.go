// Package mainline is a minimal Mainline DHT client: it walks the
// network with iterative KRPC get queries and returns the newest
// valid BEP44 mutable item published under an Ed25519 key.
package mainline

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha1"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/semihalev/pkdns/pkarr"
	"github.com/semihalev/zlog/v2"
)

var (
	// ErrNotFound means the walk completed without finding a value.
	ErrNotFound = errors.New("mainline: nothing published under key")
	// ErrNoNodes means not a single node answered, the network is
	// unreachable.
	ErrNoNodes = errors.New("mainline: no reachable dht nodes")
)

const (
	// per node exchange deadline
	nodeTimeout = 500 * time.Millisecond

	// walk bounds
	maxQueries  = 32
	valueQuorum = 8
)

// Client issues BEP44 mutable get lookups. Bootstrap addresses are
// resolved through the forward server on first use.
type Client struct {
	forward string
	timeout time.Duration

	once      sync.Once
	bootstrap []*net.UDPAddr

	id [20]byte
}

// New returns a client that bootstraps through the given forward
// server.
func New(forward string, timeout time.Duration) *Client {
	c := &Client{forward: forward, timeout: timeout}
	_, _ = rand.Read(c.id[:])

	return c
}

// (*Client).Lookup walks the DHT towards sha1(key) collecting mutable
// items published under key. Among valid items the newest sequence
// wins. Signature and timestamp checks happen in pkarr; invalid items
// from single nodes are skipped, not surfaced.
func (c *Client) Lookup(ctx context.Context, key pkarr.PublicKey) (*pkarr.SignedPacket, error) {
	c.once.Do(func() {
		c.bootstrap = ResolveBootstrap(c.forward, c.timeout)
	})

	target := sha1.Sum(key[:])

	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	pending := make([]node, 0, 64)
	for _, addr := range c.bootstrap {
		pending = append(pending, node{addr: addr})
	}

	var (
		best      *pkarr.SignedPacket
		queried   = make(map[string]struct{}, maxQueries)
		responses int
	)

	for sent := 0; sent < maxQueries && len(pending) > 0; sent++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sortByDistance(pending, target)

		next := pending[0]
		pending = pending[1:]

		if _, ok := queried[next.addr.String()]; ok {
			continue
		}
		queried[next.addr.String()] = struct{}{}

		r, err := c.get(ctx, conn, next.addr, target)
		if err != nil {
			continue
		}
		responses++

		if r.R.V != "" && r.R.Sig != "" {
			p, err := pkarr.NewSignedPacket(key, uint64(r.R.Seq), []byte(r.R.Sig), []byte(r.R.V))
			if err != nil {
				zlog.Debug("Rejected dht item", "key", key.String(), "node", next.addr.String(), "error", err.Error())
			} else if best == nil || p.Timestamp > best.Timestamp {
				best = p
			}
		}

		for _, n := range compactNodes(r.R.Nodes) {
			if _, ok := queried[n.addr.String()]; !ok {
				pending = append(pending, n)
			}
		}

		if best != nil && responses >= valueQuorum {
			break
		}
	}

	if best != nil {
		return best, nil
	}

	if responses == 0 {
		return nil, ErrNoNodes
	}

	return nil, ErrNotFound
}

// get exchanges a single KRPC get query with one node.
func (c *Client) get(ctx context.Context, conn *net.UDPConn, addr *net.UDPAddr, target [20]byte) (*reply, error) {
	txid := make([]byte, 2)
	_, _ = rand.Read(txid)

	q := &query{
		T: string(txid),
		Y: "q",
		Q: "get",
		A: queryArgs{ID: string(c.id[:]), Target: string(target[:])},
	}

	raw, err := q.encode()
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(nodeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	if _, err := conn.WriteToUDP(raw, addr); err != nil {
		return nil, err
	}

	buf := make([]byte, 2048)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			return nil, err
		}

		// late datagrams from earlier rounds share the socket
		if !from.IP.Equal(addr.IP) || from.Port != addr.Port {
			continue
		}

		r, err := decodeReply(buf[:n])
		if err != nil || r.Y != "r" {
			return nil, fmt.Errorf("mainline: bad reply from %s", addr)
		}
		if !bytes.Equal([]byte(r.T), txid) {
			continue
		}

		return r, nil
	}
}

func sortByDistance(nodes []node, target [20]byte) {
	sort.Slice(nodes, func(i, j int) bool {
		return closer(nodes[i].id, nodes[j].id, target)
	})
}

// closer reports whether a is XOR-closer to target than b. Bootstrap
// entries carry a zero id, so their distance is the target itself.
func closer(a, b, target [20]byte) bool {
	for i := range target {
		da := a[i] ^ target[i]
		db := b[i] ^ target[i]
		if da != db {
			return da < db
		}
	}

	return false
}
