package proxy

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultListenAddr matches the port the edge service has always used.
	DefaultListenAddr = ":8000"

	// DefaultVersionCacheTTL is how long the release JSON is served from cache.
	DefaultVersionCacheTTL = 10 * time.Minute

	// DefaultUpstreamTimeout bounds a single forwarded request. LLM requests
	// can be slow, especially when streamed.
	DefaultUpstreamTimeout = 5 * time.Minute

	// DefaultReleaseTimeout bounds each of the two release metadata fetches.
	DefaultReleaseTimeout = 30 * time.Second

	// DefaultMaxBodySize is the largest request body accepted for forwarding.
	// Chat requests carrying base64 images routinely exceed a few megabytes.
	DefaultMaxBodySize = 64 << 20

	DefaultReleaseAPIURL    = "https://api.github.com/repos/lhlyu/tauri-chatgpt/releases/latest"
	DefaultReleaseAssetName = "latest.json"
)

// Environment variables read once at startup.
const (
	EnvUpstreamHost   = "API_HOST"
	EnvUpstreamKey    = "API_KEY"
	EnvAllowedCodes   = "CODES"
	EnvUpstreamScheme = "API_SCHEME"
)

// Config is the proxy server configuration. It is read once at startup and
// never modified afterwards.
type Config struct {
	// Address to listen on (e.g., ":8000")
	ListenAddr string `toml:"listen"`

	// MetricsAddr serves Prometheus metrics when non-empty.
	MetricsAddr string `toml:"metrics_listen"`

	// UpstreamHost replaces the inbound request's host when set.
	UpstreamHost string `toml:"upstream_host"`

	// UpstreamScheme is the scheme used to reach the upstream ("https" by default).
	UpstreamScheme string `toml:"upstream_scheme"`

	// UpstreamKey is injected as "Authorization: Bearer <key>" for requests
	// that present an allowed access code.
	UpstreamKey string `toml:"upstream_key"`

	// AllowedCodes is the allowlist. A code is allowed when it is a substring
	// of this string.
	AllowedCodes string `toml:"allowed_codes"`

	// MaxBodySize is the request body limit in bytes.
	MaxBodySize int `toml:"max_body_size"`

	UpstreamTimeout Duration `toml:"upstream_timeout"`
	ReleaseTimeout  Duration `toml:"release_timeout"`
	VersionCacheTTL Duration `toml:"version_cache_ttl"`

	ReleaseAPIURL    string `toml:"release_api_url"`
	ReleaseAssetName string `toml:"release_asset_name"`
}

// Duration lets TOML files spell durations as "10m" or "30s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(v)
	return nil
}

// Duration returns d as a time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DefaultConfig returns a Config populated with defaults only.
func DefaultConfig() Config {
	return Config{
		ListenAddr:       DefaultListenAddr,
		UpstreamScheme:   "https",
		MaxBodySize:      DefaultMaxBodySize,
		UpstreamTimeout:  Duration(DefaultUpstreamTimeout),
		ReleaseTimeout:   Duration(DefaultReleaseTimeout),
		VersionCacheTTL:  Duration(DefaultVersionCacheTTL),
		ReleaseAPIURL:    DefaultReleaseAPIURL,
		ReleaseAssetName: DefaultReleaseAssetName,
	}
}

// LoadConfig builds the configuration from defaults, the optional TOML file at
// path, and finally the environment.
func LoadConfig(path string) (Config, error) {
	return loadConfig(path, os.LookupEnv)
}

func loadConfig(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("could not decode config file %s: %w", path, err)
		}
	}

	if v, ok := lookup(EnvUpstreamHost); ok {
		cfg.UpstreamHost = v
	}
	if v, ok := lookup(EnvUpstreamKey); ok {
		cfg.UpstreamKey = v
	}
	if v, ok := lookup(EnvAllowedCodes); ok {
		cfg.AllowedCodes = v
	}
	if v, ok := lookup(EnvUpstreamScheme); ok && v != "" {
		cfg.UpstreamScheme = v
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	if c.UpstreamScheme != "http" && c.UpstreamScheme != "https" {
		return fmt.Errorf("unsupported upstream scheme %q", c.UpstreamScheme)
	}
	if c.MaxBodySize <= 0 {
		return fmt.Errorf("max body size must be positive")
	}
	if c.VersionCacheTTL <= 0 {
		return fmt.Errorf("version cache ttl must be positive")
	}
	return nil
}
