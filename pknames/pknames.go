// Package pknames loads a local alias directory: each file maps its
// name to a pkarr public key, letting clients query friendly labels
// instead of 52-character keys.
package pknames

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/miekg/dns"
	"github.com/semihalev/pkdns/pkarr"
	"github.com/semihalev/zlog/v2"
)

// Table maps alias labels to z-base-32 public keys.
type Table struct {
	aliases map[string]string
}

// Load reads every regular file in dir as an alias. The file name is
// the alias label, the first line is the public key. Bad entries are
// logged and skipped.
func Load(dir string) (*Table, error) {
	t := &Table{aliases: make(map[string]string)}

	if dir == "" {
		return t, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			zlog.Warn("Pkname file unreadable", "file", e.Name(), "error", err.Error())
			continue
		}

		keystr := strings.TrimSpace(strings.SplitN(string(raw), "\n", 2)[0])
		key, err := pkarr.ParsePublicKey(keystr)
		if err != nil {
			zlog.Warn("Pkname file holds no public key", "file", e.Name())
			continue
		}

		t.aliases[strings.ToLower(e.Name())] = key.String()
	}

	zlog.Info("Pknames loaded", "dir", dir, "aliases", len(t.aliases))

	return t, nil
}

// (*Table).Len returns the number of aliases.
func (t *Table) Len() int { return len(t.aliases) }

// (*Table).Rewrite replaces an alias zone label with its public key.
// With a tld configured the label left of the tld is the candidate,
// otherwise the rightmost label is. Names without an alias pass
// through unchanged.
func (t *Table) Rewrite(qname, tld string) string {
	if len(t.aliases) == 0 {
		return qname
	}

	labels := dns.SplitDomainName(qname)

	idx := len(labels) - 1
	if tld != "" {
		if idx < 1 || !strings.EqualFold(labels[idx], tld) {
			return qname
		}
		idx--
	}

	if idx < 0 {
		return qname
	}

	key, ok := t.aliases[strings.ToLower(labels[idx])]
	if !ok {
		return qname
	}

	labels[idx] = key

	return dns.Fqdn(strings.Join(labels, "."))
}
