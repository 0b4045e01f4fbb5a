// Package config loads the pkdns TOML configuration, generating a
// default file on first run.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/semihalev/zlog/v2"
)

const configver = "1.0.0"

// Config type
type Config struct {
	Version string

	// Socket is the UDP bind address for the DNS server.
	Socket string
	// Forward is the upstream resolver for ICANN names.
	Forward string
	// DNSOverHTTPSocket enables the DoH transport when set.
	DNSOverHTTPSocket string `toml:"dns_over_http_socket"`
	// API is the bind address of the HTTP API, blank for disabled.
	API string

	Verbose bool

	// MinTTL is the floor for cached TTLs in seconds. Pkarr packets
	// younger than this are never refreshed.
	MinTTL uint32 `toml:"min_ttl"`
	// MaxTTL is the ceiling for cached TTLs in seconds. Zero disables
	// the ICANN response cache entirely.
	MaxTTL uint32 `toml:"max_ttl"`

	QueryRateLimit      int `toml:"query_rate_limit"`
	QueryRateLimitBurst int `toml:"query_rate_limit_burst"`

	DHTQueryRateLimit      int `toml:"dht_query_rate_limit"`
	DHTQueryRateLimitBurst int `toml:"dht_query_rate_limit_burst"`

	DisableAnyQueries bool `toml:"disable_any_queries"`

	ICANNCacheMB int64 `toml:"icann_cache_mb"`
	DHTCacheMB   int64 `toml:"dht_cache_mb"`

	MaxRecursionDepth int `toml:"max_recursion_depth"`

	// TopLevelDomain qualifies pkarr names as <sub>.<key>.<tld>;
	// empty means the key itself is the rightmost label.
	TopLevelDomain string `toml:"top_level_domain"`

	// Directory holds local pknames alias files, blank for disabled.
	Directory string

	Threads int

	AccessList []string

	// Timeout bounds each backend exchange.
	Timeout Duration

	sVersion string
}

// ServerVersion return current server version
func (c *Config) ServerVersion() string {
	return c.sVersion
}

// Duration type
type Duration struct {
	time.Duration
}

// UnmarshalText for duration type
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

var defaultConfig = `
# Config version, config and build versions can be different.
version = "%s"

# Address to bind to for the DNS server
socket = "0.0.0.0:53"

# Upstream resolver for conventional ICANN names
forward = "8.8.8.8:53"

# Address to bind to for the DNS-over-HTTP server, left blank for disabled
# dns_over_http_socket = "127.0.0.1:3000"

# Address to bind to for the http API server, left blank for disabled
# api = "127.0.0.1:8080"

# Increase log detail
verbose = false

# Floor for cached TTLs in seconds, pkarr packets younger than this are served from cache
min_ttl = 60

# Ceiling for cached TTLs in seconds, 0 disables the ICANN response cache
max_ttl = 86400

# DNS queries one source ip can make per second, 0 for disabled
query_rate_limit = 100

# Burst size of the DNS query limiter, 0 defaults to the rate
query_rate_limit_burst = 0

# DHT lookups one source ip can trigger per second, 0 for disabled
dht_query_rate_limit = 5

# Burst size of the DHT query limiter, 0 defaults to the rate
dht_query_rate_limit_burst = 25

# Drop ANY queries silently (amplification defense)
disable_any_queries = false

# Size ceiling of the ICANN response cache in megabytes
icann_cache_mb = 100

# Size ceiling of the pkarr packet cache in megabytes
dht_cache_mb = 100

# Maximum cross-zone hops (CNAME chases and NS delegations) for a query
max_recursion_depth = 15

# Top level domain for pkarr names like <name>.<pubkey>.key, left blank for disabled
top_level_domain = ""

# Directory with local pkname alias files, left blank for disabled
directory = ""

# Worker pool size, 0 for the number of cpus
threads = 0

# Which clients are allowed to make queries
accesslist = [
"0.0.0.0/0",
"::0/0"
]

# Network timeout for each backend exchange
timeout = "2s"
`

// Load loads the given config file
func Load(cfgfile, version string) (*Config, error) {
	config := new(Config)

	if _, err := os.Stat(cfgfile); os.IsNotExist(err) {
		if err := generateConfig(cfgfile); err != nil {
			return nil, err
		}
	}

	zlog.Info("Loading config file", "path", cfgfile)

	if _, err := toml.DecodeFile(cfgfile, config); err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}

	if config.Version != configver {
		zlog.Warn("Config file is out of version, you can generate new one and check the changes.")
	}

	config.sVersion = version

	if config.Socket == "" {
		config.Socket = "0.0.0.0:53"
	}

	if config.Forward == "" {
		config.Forward = "8.8.8.8:53"
	}

	if config.MaxRecursionDepth <= 0 {
		config.MaxRecursionDepth = 15
	}

	if config.Threads <= 0 {
		config.Threads = runtime.NumCPU()
	}

	if config.Timeout.Duration <= 0 {
		config.Timeout.Duration = 2 * time.Second
	}

	config.TopLevelDomain = strings.Trim(strings.ToLower(config.TopLevelDomain), ".")

	return config, nil
}

func generateConfig(path string) error {
	output, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not generate config: %w", err)
	}

	defer func() {
		if err := output.Close(); err != nil {
			zlog.Warn("Config generation failed while file closing", "error", err.Error())
		}
	}()

	r := strings.NewReader(fmt.Sprintf(defaultConfig, configver))
	if _, err := io.Copy(output, r); err != nil {
		return fmt.Errorf("could not copy default config: %w", err)
	}

	if abs, err := filepath.Abs(path); err == nil {
		zlog.Info("Default config file generated", "config", abs)
	}

	return nil
}
