package pknames

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/semihalev/pkdns/pkarr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDir(t *testing.T) (string, pkarr.PublicKey) {
	t.Helper()

	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var key pkarr.PublicKey
	copy(key[:], pub)

	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "myname"), []byte(key.String()+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken"), []byte("not a key"), 0o644))

	return dir, key
}

func Test_Load(t *testing.T) {
	dir, _ := testDir(t)

	table, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
}

func Test_LoadDisabled(t *testing.T) {
	table, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
}

func Test_LoadMissingDir(t *testing.T) {
	_, err := Load("/nonexistent/pknames")
	assert.Error(t, err)
}

func Test_Rewrite(t *testing.T) {
	dir, key := testDir(t)

	table, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, key.String()+".", table.Rewrite("myname.", ""))
	assert.Equal(t, "www."+key.String()+".", table.Rewrite("www.MyName.", ""))

	// unknown aliases pass through
	assert.Equal(t, "example.com.", table.Rewrite("example.com.", ""))
}

func Test_RewriteWithTLD(t *testing.T) {
	dir, key := testDir(t)

	table, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, key.String()+".key.", table.Rewrite("myname.key.", "key"))

	// without the tld the alias label is not in zone position
	assert.Equal(t, "myname.", table.Rewrite("myname.", "key"))
}
