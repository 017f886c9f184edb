// Package config holds the runtime configuration for heartroom.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultLinkBase       = "https://1ureka.net/heart/"
	DefaultHandshakeTTL   = 10 * time.Minute
	DefaultGatherTimeout  = 12 * time.Second
	DefaultSampleInterval = 5 * time.Second
	DefaultStatsInterval  = 10 * time.Second
)

// STUN servers for ICE candidate gathering. No TURN: relay fallback is out of
// scope, connectivity is direct P2P only.
var DefaultICEServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// Config is the resolved configuration used by every component.
type Config struct {
	ICEServers []string
	LinkBase   string // origin+path that handshake links are built on

	DisplayName string // overrides the stored name when non-empty
	NameFile    string // display-name store location
	FeedAddr    string // loopback feed listen address; empty disables the feed

	HandshakeTTL   time.Duration
	GatherTimeout  time.Duration
	SampleInterval time.Duration
	StatsInterval  time.Duration

	Debug bool
}

// Options carries CLI flag values. Zero values mean "not set".
type Options struct {
	ConfigPath  string
	ICEServers  []string
	LinkBase    string
	DisplayName string
	NameFile    string
	FeedAddr    string
	Debug       bool
}

// fileConfig mirrors the optional YAML file.
type fileConfig struct {
	ICEServers     []string `yaml:"ice_servers"`
	LinkBase       string   `yaml:"link_base"`
	DisplayName    string   `yaml:"display_name"`
	NameFile       string   `yaml:"name_file"`
	FeedAddr       string   `yaml:"feed_addr"`
	HandshakeTTL   string   `yaml:"handshake_ttl"`
	GatherTimeout  string   `yaml:"gather_timeout"`
	SampleInterval string   `yaml:"sample_interval"`
	StatsInterval  string   `yaml:"stats_interval"`
	Debug          bool     `yaml:"debug"`
}

// Load resolves configuration with the following priority:
//  1. CLI flags (passed via Options) - highest priority
//  2. Environment variables (HEARTROOM_*)
//  3. YAML file (Options.ConfigPath or HEARTROOM_CONFIG)
//  4. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	var file fileConfig

	path := firstNonEmpty(opts.ConfigPath, os.Getenv("HEARTROOM_CONFIG"))
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg := &Config{
		LinkBase:       firstNonEmpty(opts.LinkBase, os.Getenv("HEARTROOM_LINK_BASE"), file.LinkBase, DefaultLinkBase),
		DisplayName:    firstNonEmpty(opts.DisplayName, os.Getenv("HEARTROOM_NAME"), file.DisplayName),
		NameFile:       firstNonEmpty(opts.NameFile, os.Getenv("HEARTROOM_NAME_FILE"), file.NameFile, defaultNameFile()),
		FeedAddr:       firstNonEmpty(opts.FeedAddr, os.Getenv("HEARTROOM_FEED_ADDR"), file.FeedAddr),
		HandshakeTTL:   parseDurationOr(DefaultHandshakeTTL, file.HandshakeTTL),
		GatherTimeout:  parseDurationOr(DefaultGatherTimeout, file.GatherTimeout),
		SampleInterval: parseDurationOr(DefaultSampleInterval, file.SampleInterval),
		StatsInterval:  parseDurationOr(DefaultStatsInterval, file.StatsInterval),
		Debug:          opts.Debug || file.Debug || os.Getenv("HEARTROOM_DEBUG") == "1",
	}

	switch {
	case len(opts.ICEServers) > 0:
		cfg.ICEServers = opts.ICEServers
	case os.Getenv("HEARTROOM_ICE_SERVERS") != "":
		cfg.ICEServers = splitList(os.Getenv("HEARTROOM_ICE_SERVERS"))
	case file.ICEServers != nil:
		cfg.ICEServers = file.ICEServers
	default:
		cfg.ICEServers = append([]string(nil), DefaultICEServers...)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	for _, s := range c.ICEServers {
		if !strings.HasPrefix(s, "stun:") && !strings.HasPrefix(s, "stuns:") {
			return fmt.Errorf("ice server %q: only stun: and stuns: URLs are supported", s)
		}
	}
	u, err := url.Parse(c.LinkBase)
	if err != nil || u.Scheme == "" {
		return fmt.Errorf("invalid link base %q", c.LinkBase)
	}
	if u.Fragment != "" {
		return errors.New("link base must not carry a fragment")
	}
	if c.HandshakeTTL <= 0 || c.GatherTimeout <= 0 || c.SampleInterval <= 0 || c.StatsInterval <= 0 {
		return errors.New("durations must be positive")
	}
	return nil
}

// parseDurationOr returns def unless s is a valid positive duration.
func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultNameFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "heartroom", "profile.yaml")
}
