// Package config provides YAML configuration file loading and validation
// for the bundled follower. It handles environment variable expansion and
// ensures all required fields are present before a connection is
// attempted.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure loaded from YAML, naming the
// provider endpoint and the override knobs §6 lists under Qapi.connect.
type Config struct {
	Provider  Provider  `yaml:"provider"`
	Overrides Overrides `yaml:"overrides"`
}

// Provider is a WebSocket transport bound to a specific endpoint URL.
type Provider struct {
	Name    string        `yaml:"name"`
	URL     string        `yaml:"url"` // supports ${VAR} env expansion
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Overrides mirrors the Qapi.connect configuration table: advertised
// signature scheme, ss58 prefix override, and metadata decode knobs.
// CustomParser and Tables are populated programmatically (by a library
// caller), never from YAML — IgnoreParseErrors is the only metadata knob
// exposed on disk and on the CLI.
type Overrides struct {
	SS58Prefix *uint32        `yaml:"ss58Prefix,omitempty"`
	Signature  SignatureScheme `yaml:"signature,omitempty"`
	Metadata   MetadataOverrides `yaml:"metadata,omitempty"`
}

// SignatureScheme is the advertised signature scheme/variant; the core
// does not parse signatures itself, it only carries this for higher
// layers outside the core (per §1's scope boundary).
type SignatureScheme struct {
	Scheme  string `yaml:"scheme,omitempty"`
	Variant string `yaml:"variant,omitempty"`
}

// MetadataOverrides holds the decode-time knobs from §6's configuration
// table. CustomParser and Tables are set via the library API, not YAML.
type MetadataOverrides struct {
	IgnoreParseErrors bool `yaml:"ignoreParseErrors,omitempty"`
}

// Validate checks required fields and applies the same style of
// stderr-only soft warnings for suspicious timeouts that the ambient
// config layer uses elsewhere in this codebase's lineage.
func (c *Config) Validate() error {
	if c.Provider.URL == "" {
		return fmt.Errorf("provider.url is required")
	}

	u, err := url.Parse(c.Provider.URL)
	if err != nil {
		return fmt.Errorf("provider.url: invalid url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("provider.url: invalid url (missing scheme or host)")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("provider.url: invalid url scheme %q (expected ws or wss)", u.Scheme)
	}

	const low = 500 * time.Millisecond
	const high = 2 * time.Minute
	if d := c.Provider.Timeout; d > 0 {
		if d < low {
			fmt.Fprintf(os.Stderr, "Warning: provider timeout is very low (%s); requests may fail under normal network jitter\n", d)
		}
		if d > high {
			fmt.Fprintf(os.Stderr, "Warning: provider timeout is very high (%s); failures may take a long time to surface\n", d)
		}
	}

	return nil
}

// Load reads and parses a YAML configuration file, expanding ${VAR}
// references against the process environment before parsing, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Debug reports whether QAPI_DEBUG is set to any non-empty value, per
// §6's environment variable contract for verbose decode diagnostics.
func Debug() bool {
	return os.Getenv("QAPI_DEBUG") != ""
}
