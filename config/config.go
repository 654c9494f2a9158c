package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/ledgerlight/ledgerlight/libs/log"
	"github.com/ledgerlight/ledgerlight/types"
)

const (
	// LogFormatPlain is a format for colored text
	LogFormatPlain = log.LogFormatPlain
	// LogFormatJSON is a format for json output
	LogFormatJSON = log.LogFormatJSON

	// DBBackendFile keeps the trusted state in a plain file. Any other
	// backend is a tm-db backend type.
	DBBackendFile = "file"
)

// NOTE: Most of the structs & relevant comments + the
// default configuration options are written out by WriteConfigFile.
// NOTE: libs/cli must know to look in the config dir!
var (
	DefaultLedgerLightDir = ".ledgerlight"
	defaultConfigDir      = "config"
	defaultDataDir        = "data"

	defaultConfigFileName = "config.toml"
	defaultConfigFilePath = filepath.Join(defaultConfigDir, defaultConfigFileName)
)

// Config defines the top level configuration for a light client.
type Config struct {
	// Top level options use an anonymous struct
	BaseConfig `mapstructure:",squash"`

	// Options for services
	RPC             *RPCConfig             `mapstructure:"rpc" toml:"rpc"`
	Light           *LightConfig           `mapstructure:"light" toml:"light"`
	Instrumentation *InstrumentationConfig `mapstructure:"instrumentation" toml:"instrumentation"`
}

// DefaultConfig returns a default configuration for a light client.
func DefaultConfig() *Config {
	return &Config{
		BaseConfig:      DefaultBaseConfig(),
		RPC:             DefaultRPCConfig(),
		Light:           DefaultLightConfig(),
		Instrumentation: DefaultInstrumentationConfig(),
	}
}

// TestConfig returns a configuration that can be used for testing
func TestConfig() *Config {
	return &Config{
		BaseConfig:      TestBaseConfig(),
		RPC:             TestRPCConfig(),
		Light:           TestLightConfig(),
		Instrumentation: TestInstrumentationConfig(),
	}
}

// SetRoot sets the RootDir for all Config structs
func (cfg *Config) SetRoot(root string) *Config {
	cfg.BaseConfig.RootDir = root
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *Config) ValidateBasic() error {
	if err := cfg.BaseConfig.ValidateBasic(); err != nil {
		return err
	}
	if err := cfg.RPC.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [rpc] section: %w", err)
	}
	if err := cfg.Light.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [light] section: %w", err)
	}
	if err := cfg.Instrumentation.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [instrumentation] section: %w", err)
	}
	return nil
}

//-----------------------------------------------------------------------------
// BaseConfig

// BaseConfig defines the base configuration for a light client.
type BaseConfig struct {
	// The root directory for all data.
	// This should be set in viper so it can unmarshal into this struct
	RootDir string `mapstructure:"home" toml:"-"`

	// Database backend for the trusted state: file | goleveldb | memdb | ...
	// * file
	//   - one file per key, replaced atomically
	// * any tm-db backend
	//   - shares a database with other tools; the state lives under a
	//     per-chain prefix
	DBBackend string `mapstructure:"db-backend" toml:"db-backend"`

	// Database directory
	DBPath string `mapstructure:"db-dir" toml:"db-dir"`

	// Output level for logging
	LogLevel string `mapstructure:"log-level" toml:"log-level"`

	// Output format: 'plain' (colored text) or 'json'
	LogFormat string `mapstructure:"log-format" toml:"log-format"`
}

// DefaultBaseConfig returns a default base configuration for a light client.
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		LogLevel:  log.LogLevelInfo,
		LogFormat: LogFormatPlain,
		DBBackend: DBBackendFile,
		DBPath:    defaultDataDir,
	}
}

// TestBaseConfig returns a base configuration for testing a light client.
func TestBaseConfig() BaseConfig {
	cfg := DefaultBaseConfig()
	cfg.DBBackend = "memdb"
	cfg.LogLevel = log.LogLevelDebug
	return cfg
}

// DBDir returns the full path to the database directory
func (cfg BaseConfig) DBDir() string {
	return rootify(cfg.DBPath, cfg.RootDir)
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg BaseConfig) ValidateBasic() error {
	switch cfg.LogFormat {
	case LogFormatPlain, LogFormatJSON:
	default:
		return errors.New("unknown log-format (must be 'plain' or 'json')")
	}
	if cfg.DBBackend == "" {
		return errors.New("db-backend can't be empty")
	}
	return nil
}

//-----------------------------------------------------------------------------
// RPCConfig

// RPCConfig defines the full node the light client talks to.
type RPCConfig struct {
	// JSON-RPC endpoint of the full node
	Remote string `mapstructure:"remote" toml:"remote"`

	// Timeout of a single batch, including reading the response.
	// 0 - no timeout.
	Timeout time.Duration `mapstructure:"timeout" toml:"timeout"`
}

// DefaultRPCConfig returns a default configuration for the RPC client
func DefaultRPCConfig() *RPCConfig {
	return &RPCConfig{
		Remote:  "http://127.0.0.1:8080",
		Timeout: 10 * time.Second,
	}
}

// TestRPCConfig returns a configuration for testing the RPC client
func TestRPCConfig() *RPCConfig {
	cfg := DefaultRPCConfig()
	cfg.Timeout = time.Second
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *RPCConfig) ValidateBasic() error {
	u, err := url.Parse(cfg.Remote)
	if err != nil {
		return fmt.Errorf("invalid remote: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("remote must be an http(s) URL, got %q", cfg.Remote)
	}
	if cfg.Timeout < 0 {
		return errors.New("timeout can't be negative")
	}
	return nil
}

//-----------------------------------------------------------------------------
// LightConfig

// LightConfig defines how the light client verifies and syncs.
type LightConfig struct {
	// Waypoint to start from when no trusted state is stored yet, formatted
	// as version:epoch:digest. It must be obtained from a trusted source.
	Waypoint string `mapstructure:"waypoint" toml:"waypoint"`

	// Chain id the server must report. 0 - not checked.
	ChainID uint8 `mapstructure:"chain-id" toml:"chain-id"`

	// Sync and retry instead of failing a request with a needs-sync error.
	AutoSyncWhenBehind bool `mapstructure:"auto-sync-when-behind" toml:"auto-sync-when-behind"`

	// Number of goroutines verifying the requests of a batch.
	// 0 or 1 - verify sequentially.
	ParallelVerification int `mapstructure:"parallel-verification" toml:"parallel-verification"`

	// How often `start` syncs with the server.
	UpdatePeriod time.Duration `mapstructure:"update-period" toml:"update-period"`
}

// DefaultLightConfig returns a default configuration for the light client
func DefaultLightConfig() *LightConfig {
	return &LightConfig{
		UpdatePeriod: 5 * time.Second,
	}
}

// TestLightConfig returns a configuration for testing the light client
func TestLightConfig() *LightConfig {
	cfg := DefaultLightConfig()
	cfg.UpdatePeriod = 10 * time.Millisecond
	return cfg
}

// ParseWaypoint returns the configured waypoint.
func (cfg *LightConfig) ParseWaypoint() (types.Waypoint, error) {
	return types.ParseWaypoint(cfg.Waypoint)
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *LightConfig) ValidateBasic() error {
	if cfg.Waypoint != "" {
		if _, err := cfg.ParseWaypoint(); err != nil {
			return err
		}
	}
	if cfg.ParallelVerification < 0 {
		return errors.New("parallel-verification can't be negative")
	}
	if cfg.UpdatePeriod <= 0 {
		return errors.New("update-period must be positive")
	}
	return nil
}

//-----------------------------------------------------------------------------
// InstrumentationConfig

// InstrumentationConfig defines the configuration for metrics reporting.
type InstrumentationConfig struct {
	// When true, Prometheus metrics are served under /metrics on
	// PrometheusListenAddr.
	// Check out the documentation for the list of available metrics.
	Prometheus bool `mapstructure:"prometheus" toml:"prometheus"`

	// Address to listen for Prometheus collector(s) connections.
	PrometheusListenAddr string `mapstructure:"prometheus-listen-addr" toml:"prometheus-listen-addr"`

	// Maximum number of simultaneous connections.
	// If you want to accept a larger number than the default, make sure
	// you increase your OS limits.
	// 0 - unlimited.
	MaxOpenConnections int `mapstructure:"max-open-connections" toml:"max-open-connections"`

	// Instrumentation namespace.
	Namespace string `mapstructure:"namespace" toml:"namespace"`
}

// DefaultInstrumentationConfig returns a default configuration for metrics
// reporting.
func DefaultInstrumentationConfig() *InstrumentationConfig {
	return &InstrumentationConfig{
		Prometheus:           false,
		PrometheusListenAddr: ":26660",
		MaxOpenConnections:   3,
		Namespace:            "ledgerlight",
	}
}

// TestInstrumentationConfig returns a default configuration for metrics
// reporting.
func TestInstrumentationConfig() *InstrumentationConfig {
	return DefaultInstrumentationConfig()
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *InstrumentationConfig) ValidateBasic() error {
	if cfg.MaxOpenConnections < 0 {
		return errors.New("max-open-connections can't be negative")
	}
	return nil
}

//-----------------------------------------------------------------------------
// Utils

// helper function to make config creation independent of root dir
func rootify(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
