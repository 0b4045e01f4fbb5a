package mainline

import (
	"bytes"
	"encoding/binary"
	"net"

	bencode "github.com/jackpal/bencode-go"
)

// KRPC message shapes for the BEP44 mutable get query. Error replies
// carry an "e" key instead of "r"; they decode to a zero body and the
// client treats them as a failed exchange with that node.

type query struct {
	T string    `bencode:"t"`
	Y string    `bencode:"y"`
	Q string    `bencode:"q"`
	A queryArgs `bencode:"a"`
}

type queryArgs struct {
	ID     string `bencode:"id"`
	Target string `bencode:"target"`
}

type reply struct {
	T string    `bencode:"t"`
	Y string    `bencode:"y"`
	R replyBody `bencode:"r"`
}

type replyBody struct {
	ID    string `bencode:"id"`
	Nodes string `bencode:"nodes"`
	Token string `bencode:"token"`

	// BEP44 mutable item
	V   string `bencode:"v"`
	Sig string `bencode:"sig"`
	Seq int64  `bencode:"seq"`
	K   string `bencode:"k"`
}

func (q *query) encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := bencode.Marshal(&buf, *q); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeReply(b []byte) (*reply, error) {
	r := new(reply)
	if err := bencode.Unmarshal(bytes.NewReader(b), r); err != nil {
		return nil, err
	}

	return r, nil
}

// compactNodes parses a BEP5 "nodes" value: 26 bytes per node,
// 20 byte id followed by 4 byte IPv4 and 2 byte port.
func compactNodes(nodes string) []node {
	const stride = 26

	var out []node
	for off := 0; off+stride <= len(nodes); off += stride {
		var n node
		copy(n.id[:], nodes[off:off+20])

		ip := net.IPv4(nodes[off+20], nodes[off+21], nodes[off+22], nodes[off+23])
		port := binary.BigEndian.Uint16([]byte(nodes[off+24 : off+26]))
		if port == 0 {
			continue
		}

		n.addr = &net.UDPAddr{IP: ip, Port: int(port)}
		out = append(out, n)
	}

	return out
}

type node struct {
	id   [20]byte
	addr *net.UDPAddr
}
