package cache

import (
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
)

func Test_CacheAddGet(t *testing.T) {
	c := New(1024)

	c.Add(1, "a", 100)

	v, ok := c.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "a", v)

	_, ok = c.Get(2)
	assert.False(t, ok)

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(100), c.Bytes())
}

func Test_CacheReplace(t *testing.T) {
	c := New(1024)

	c.Add(1, "a", 100)
	c.Add(1, "b", 300)

	v, _ := c.Get(1)
	assert.Equal(t, "b", v)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(300), c.Bytes())
}

func Test_CacheEvictsOldest(t *testing.T) {
	c := New(300)

	c.Add(1, "a", 100)
	c.Add(2, "b", 100)
	c.Add(3, "c", 100)
	c.Add(4, "d", 100)

	_, ok := c.Get(1)
	assert.False(t, ok)

	_, ok = c.Get(4)
	assert.True(t, ok)

	assert.LessOrEqual(t, c.Bytes(), int64(300))
}

func Test_CacheReadRefreshesRecency(t *testing.T) {
	c := New(200)

	c.Add(1, "a", 100)
	c.Add(2, "b", 100)

	// touching 1 makes 2 the eviction candidate
	_, _ = c.Get(1)

	c.Add(3, "c", 100)

	_, ok := c.Get(1)
	assert.True(t, ok)

	_, ok = c.Get(2)
	assert.False(t, ok)
}

func Test_CacheOversizedEntry(t *testing.T) {
	c := New(100)

	// a single entry may exceed the bound, the next insert evicts it
	c.Add(1, "a", 500)

	_, ok := c.Get(1)
	assert.True(t, ok)

	c.Add(2, "b", 50)

	_, ok = c.Get(1)
	assert.False(t, ok)
}

func Test_Key(t *testing.T) {
	q := dns.Question{Name: "example.com.", Qtype: dns.TypeA, Qclass: dns.ClassINET}

	assert.Equal(t, Key(q), KeyString("example.com.", dns.TypeA, dns.ClassINET))

	// qname matching is case insensitive
	assert.Equal(t,
		KeyString("EXAMPLE.com.", dns.TypeA, dns.ClassINET),
		KeyString("example.com.", dns.TypeA, dns.ClassINET))

	assert.NotEqual(t,
		KeyString("example.com.", dns.TypeA, dns.ClassINET),
		KeyString("example.com.", dns.TypeAAAA, dns.ClassINET))
}
