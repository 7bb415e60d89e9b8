// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable read by Load.
const EnvVar = "ROUTER_PEER_CONFIG"

// DefaultRouterAddress is the fixed address written into a new
// configuration file.
const DefaultRouterAddress = "localhost:1930"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Compression algorithms accepted by router.compression.
const (
	CompressionNone   = "none"
	CompressionLZ4    = "lz4"
	CompressionZstd   = "zstd"
	CompressionSnappy = "snappy"
)

// Log formats accepted by log.format.
const (
	LogFormatAuto = "auto"
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config is the master configuration for router-peer.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Router configures how the peer reaches its router.
	Router RouterConfig `yaml:"router"`

	// Identity configures the peer's key material and display name.
	Identity IdentityConfig `yaml:"identity"`

	// Relay configures the relay state machine.
	Relay RelayConfig `yaml:"relay"`

	// Log configures the process logger.
	Log LogConfig `yaml:"log"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
// Unset fields keep the base value.
type ConfigOverrides struct {
	Router   *RouterOverrides `yaml:"router,omitempty"`
	Identity *IdentityConfig  `yaml:"identity,omitempty"`
	Relay    *RelayConfig     `yaml:"relay,omitempty"`
	Log      *LogConfig       `yaml:"log,omitempty"`
}

// RouterConfig configures the router connection.
type RouterConfig struct {
	// FixedAddresses are tried in order on every connection round.
	// Each is host:port (TCP) or a ws:// or wss:// URL.
	FixedAddresses []string `yaml:"fixed_addresses"`

	// UseFixedAddresses enables FixedAddresses. It is the only
	// address source; disabling it requires --address on the command
	// line.
	UseFixedAddresses bool `yaml:"use_fixed_addresses"`

	// DialTimeout bounds one connection attempt including the
	// handshake.
	DialTimeout Duration `yaml:"dial_timeout"`

	// Reconnect keeps the session alive across disconnects. When
	// false the first disconnect ends the process.
	Reconnect bool `yaml:"reconnect"`

	// InitialBackoff is the wait after the first failed round through
	// the addresses; it doubles up to MaxBackoff.
	InitialBackoff Duration `yaml:"initial_backoff"`
	MaxBackoff     Duration `yaml:"max_backoff"`

	// Compression is none, lz4, zstd or snappy.
	Compression string `yaml:"compression"`

	// CompressionThreshold is the smallest payload, in bytes, that is
	// compressed.
	CompressionThreshold int `yaml:"compression_threshold"`
}

// RouterOverrides mirrors RouterConfig with optional fields.
type RouterOverrides struct {
	FixedAddresses       []string  `yaml:"fixed_addresses,omitempty"`
	UseFixedAddresses    *bool     `yaml:"use_fixed_addresses,omitempty"`
	DialTimeout          *Duration `yaml:"dial_timeout,omitempty"`
	Reconnect            *bool     `yaml:"reconnect,omitempty"`
	InitialBackoff       *Duration `yaml:"initial_backoff,omitempty"`
	MaxBackoff           *Duration `yaml:"max_backoff,omitempty"`
	Compression          string    `yaml:"compression,omitempty"`
	CompressionThreshold *int      `yaml:"compression_threshold,omitempty"`
}

// IdentityConfig configures the peer identity.
type IdentityConfig struct {
	// Keyfile is the JSONC keyfile path. A missing file is generated
	// on first start.
	Keyfile string `yaml:"keyfile,omitempty"`

	// DisplayName is published as the "name" identity property.
	DisplayName string `yaml:"display_name,omitempty"`
}

// RelayConfig configures the relay.
type RelayConfig struct {
	// HistoryLimit is the message count above which the oldest
	// message is deleted.
	HistoryLimit int `yaml:"history_limit,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level,omitempty"`

	// Format is auto (text on a terminal, JSON otherwise), text or json.
	Format string `yaml:"format,omitempty"`

	// File, when set, receives a JSON copy of every record. It is
	// rotated at MaxSizeMB, keeping MaxBackups old files.
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
}

// SlogLevel returns the slog level for Level. Unknown levels map to
// Info; Validate reports them.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Duration is a time.Duration written as a Go duration string in YAML.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// String formats d like time.Duration.
func (d Duration) String() string { return time.Duration(d).String() }

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var text string
	if err := node.Decode(&text); err != nil {
		return fmt.Errorf("line %d: duration must be a string like \"10s\": %w", node.Line, err)
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file and
// are the content written by LoadOrCreate.
func Default() *Config {
	return &Config{
		Environment: Development,
		Router: RouterConfig{
			FixedAddresses:       []string{DefaultRouterAddress},
			UseFixedAddresses:    true,
			DialTimeout:          Duration(10 * time.Second),
			Reconnect:            true,
			InitialBackoff:       Duration(time.Second),
			MaxBackoff:           Duration(30 * time.Second),
			Compression:          CompressionZstd,
			CompressionThreshold: 1024,
		},
		Identity: IdentityConfig{
			Keyfile:     "${HOME}/.config/router-peer/keyfile.jsonc",
			DisplayName: "Test Router",
		},
		Relay: RelayConfig{
			HistoryLimit: 10,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     LogFormatAuto,
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load loads configuration from the ROUTER_PEER_CONFIG environment
// variable. There are no fallbacks: if it is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your router-peer config file, or use --config flag", EnvVar)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.finish()
	return cfg, nil
}

// LoadOrCreate loads the file at path, or creates it when it does not
// exist. A new file starts from Default, is passed to initialize (which
// may be nil) and is written before being returned. created reports
// whether the file was written.
//
// Any error other than the file not existing is returned unchanged; a
// corrupt file is never overwritten.
func LoadOrCreate(path string, initialize func(*Config)) (cfg *Config, created bool, err error) {
	cfg, err = LoadFile(path)
	if err == nil {
		return cfg, false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, err
	}

	cfg = Default()
	if initialize != nil {
		initialize(cfg)
	}
	if err := cfg.Save(path); err != nil {
		return nil, false, err
	}

	cfg.finish()
	return cfg, true, nil
}

// Save writes the configuration to path as YAML. The write is atomic:
// readers see either the old file or the new one.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", directory, err)
	}

	temp, err := os.CreateTemp(directory, ".router-peer-config-*")
	if err != nil {
		return fmt.Errorf("creating temporary config file: %w", err)
	}
	tempPath := temp.Name()
	defer os.Remove(tempPath)

	if _, err := temp.Write(data); err != nil {
		temp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := temp.Chmod(0644); err != nil {
		temp.Close()
		return fmt.Errorf("setting config permissions: %w", err)
	}
	if err := temp.Close(); err != nil {
		return fmt.Errorf("closing config: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) finish() {
	c.applyEnvironmentOverrides()
	c.expandVariables()
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: machine-readable logs.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Log: &LogConfig{Format: LogFormatJSON},
			}
		}
	}

	if overrides == nil {
		return
	}

	if router := overrides.Router; router != nil {
		if len(router.FixedAddresses) > 0 {
			c.Router.FixedAddresses = slices.Clone(router.FixedAddresses)
		}
		if router.UseFixedAddresses != nil {
			c.Router.UseFixedAddresses = *router.UseFixedAddresses
		}
		if router.DialTimeout != nil {
			c.Router.DialTimeout = *router.DialTimeout
		}
		if router.Reconnect != nil {
			c.Router.Reconnect = *router.Reconnect
		}
		if router.InitialBackoff != nil {
			c.Router.InitialBackoff = *router.InitialBackoff
		}
		if router.MaxBackoff != nil {
			c.Router.MaxBackoff = *router.MaxBackoff
		}
		if router.Compression != "" {
			c.Router.Compression = router.Compression
		}
		if router.CompressionThreshold != nil {
			c.Router.CompressionThreshold = *router.CompressionThreshold
		}
	}

	if overrides.Identity != nil {
		if overrides.Identity.Keyfile != "" {
			c.Identity.Keyfile = overrides.Identity.Keyfile
		}
		if overrides.Identity.DisplayName != "" {
			c.Identity.DisplayName = overrides.Identity.DisplayName
		}
	}

	if overrides.Relay != nil && overrides.Relay.HistoryLimit != 0 {
		c.Relay.HistoryLimit = overrides.Relay.HistoryLimit
	}

	if overrides.Log != nil {
		if overrides.Log.Level != "" {
			c.Log.Level = overrides.Log.Level
		}
		if overrides.Log.Format != "" {
			c.Log.Format = overrides.Log.Format
		}
		if overrides.Log.File != "" {
			c.Log.File = overrides.Log.File
		}
		if overrides.Log.MaxSizeMB != 0 {
			c.Log.MaxSizeMB = overrides.Log.MaxSizeMB
		}
		if overrides.Log.MaxBackups != 0 {
			c.Log.MaxBackups = overrides.Log.MaxBackups
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Identity.Keyfile = expandVars(c.Identity.Keyfile, vars)
	c.Log.File = expandVars(c.Log.File, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Addresses returns the router addresses to dial: the fixed addresses
// when enabled, otherwise none.
func (c *Config) Addresses() []string {
	if !c.Router.UseFixedAddresses {
		return nil
	}
	return slices.Clone(c.Router.FixedAddresses)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Router.UseFixedAddresses && len(c.Router.FixedAddresses) == 0 {
		errs = append(errs, fmt.Errorf("router.fixed_addresses is empty but router.use_fixed_addresses is true"))
	}
	for _, address := range c.Router.FixedAddresses {
		if err := ValidateAddress(address); err != nil {
			errs = append(errs, fmt.Errorf("router.fixed_addresses: %w", err))
		}
	}

	if c.Router.DialTimeout <= 0 {
		errs = append(errs, fmt.Errorf("router.dial_timeout must be positive, got %s", c.Router.DialTimeout))
	}
	if c.Router.InitialBackoff <= 0 {
		errs = append(errs, fmt.Errorf("router.initial_backoff must be positive, got %s", c.Router.InitialBackoff))
	}
	if c.Router.MaxBackoff < c.Router.InitialBackoff {
		errs = append(errs, fmt.Errorf("router.max_backoff (%s) is less than router.initial_backoff (%s)",
			c.Router.MaxBackoff, c.Router.InitialBackoff))
	}

	compressionValues := []string{CompressionNone, CompressionLZ4, CompressionZstd, CompressionSnappy}
	if !slices.Contains(compressionValues, c.Router.Compression) {
		errs = append(errs, fmt.Errorf("router.compression must be one of: %v", compressionValues))
	}
	if c.Router.CompressionThreshold < 0 {
		errs = append(errs, fmt.Errorf("router.compression_threshold must not be negative"))
	}

	if strings.TrimSpace(c.Identity.DisplayName) == "" {
		errs = append(errs, fmt.Errorf("identity.display_name is required"))
	}

	if c.Relay.HistoryLimit < 1 {
		errs = append(errs, fmt.Errorf("relay.history_limit must be at least 1, got %d", c.Relay.HistoryLimit))
	}

	levelValues := []string{"debug", "info", "warn", "warning", "error"}
	if !slices.Contains(levelValues, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", levelValues))
	}
	formatValues := []string{LogFormatAuto, LogFormatText, LogFormatJSON}
	if !slices.Contains(formatValues, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", formatValues))
	}

	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 {
		errs = append(errs, fmt.Errorf("log.max_size_mb and log.max_backups must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ValidateAddress checks that address is host:port or a ws:// or
// wss:// URL with a host.
func ValidateAddress(address string) error {
	if strings.Contains(address, "://") {
		parsed, err := url.Parse(address)
		if err != nil {
			return fmt.Errorf("address %q: %w", address, err)
		}
		if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
			return fmt.Errorf("address %q: unsupported scheme %q (want ws or wss)", address, parsed.Scheme)
		}
		if parsed.Host == "" {
			return fmt.Errorf("address %q: missing host", address)
		}
		return nil
	}

	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("address %q: %w", address, err)
	}
	if host == "" || port == "" {
		return fmt.Errorf("address %q: host and port are required", address)
	}
	return nil
}
