package config

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/creachadair/atomicfile"

	tmos "github.com/ledgerlight/ledgerlight/libs/os"
)

// defaultDirPerm is the default permissions used when creating directories.
const defaultDirPerm = 0700

const configHeader = `# This is a TOML config file.
# For more information, see https://github.com/toml-lang/toml

# NOTE: Any path below can be absolute (e.g. "/var/ledgerlight/data") or
# relative to the home directory (e.g. "data"). The home directory is
# "$HOME/.ledgerlight" by default, but could be changed via $LLHOME env
# variable or --home cmd flag.

`

/****** these are for production settings ***********/

// EnsureRoot creates the root, config, and data directories if they don't exist.
func EnsureRoot(rootDir string) error {
	for _, dir := range []string{
		rootDir,
		filepath.Join(rootDir, defaultConfigDir),
		filepath.Join(rootDir, defaultDataDir),
	} {
		if err := tmos.EnsureDir(dir, defaultDirPerm); err != nil {
			return err
		}
	}
	return nil
}

// ConfigFile returns the path of the config file under rootDir.
func ConfigFile(rootDir string) string {
	return filepath.Join(rootDir, defaultConfigFilePath)
}

// WriteConfigFile writes config as TOML to the config file under rootDir.
// This function is called by cmd/ledgerlight/commands/init.go
func WriteConfigFile(rootDir string, config *Config) error {
	return config.WriteTo(ConfigFile(rootDir))
}

// WriteTo writes the config to the exact file specified by path.
func (cfg *Config) WriteTo(path string) error {
	var buffer bytes.Buffer
	buffer.WriteString(configHeader)
	if err := toml.NewEncoder(&buffer).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	_, err := atomicfile.WriteAll(path, &buffer, 0644)
	return err
}

// WriteDefaultConfigFileIfNone writes the default config unless a config
// file already exists under rootDir.
func WriteDefaultConfigFileIfNone(rootDir string) error {
	if !tmos.FileExists(ConfigFile(rootDir)) {
		return WriteConfigFile(rootDir, DefaultConfig())
	}
	return nil
}
