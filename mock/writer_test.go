package mock

import (
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Writer(t *testing.T) {
	w := NewWriter("udp", "192.0.2.1:5353")

	assert.Equal(t, "udp", w.Proto())
	assert.Equal(t, "192.0.2.1", w.RemoteIP().String())
	assert.False(t, w.Written())
	assert.Equal(t, dns.RcodeServerFailure, w.Rcode())

	msg := new(dns.Msg)
	msg.SetQuestion("example.com.", dns.TypeA)
	msg.Response = true

	require.NoError(t, w.WriteMsg(msg))
	assert.True(t, w.Written())
	assert.Equal(t, dns.RcodeSuccess, w.Rcode())
	assert.Equal(t, msg, w.Msg())
}

func Test_WriterPacked(t *testing.T) {
	w := NewWriter("tcp", "192.0.2.1:5353")
	assert.Equal(t, "tcp", w.Proto())

	msg := new(dns.Msg)
	msg.SetQuestion("example.com.", dns.TypeA)

	packed, err := msg.Pack()
	require.NoError(t, err)

	n, err := w.Write(packed)
	require.NoError(t, err)
	assert.Equal(t, len(packed), n)
	assert.True(t, w.Written())

	_, err = w.Write([]byte("junk"))
	assert.Error(t, err)
}
