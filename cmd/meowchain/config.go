package main

import (
	"fmt"
	"io"
	"os"

	"github.com/naoina/toml"

	"github.com/meowchain/go-meowchain/params"
)

// Config is the top-level node configuration, loadable from TOML.
type Config struct {
	DataDir string
	ChainID uint64
	Period  uint64
	Epoch   uint64

	// Dev relaxes the consensus checks for local single-node development.
	Dev bool

	// Vanity is the hex-encoded 32-byte extra-data prefix of produced
	// blocks.
	Vanity string

	// Signers are hex addresses of the genesis signer set; empty means the
	// built-in dev signers.
	Signers []string

	// CacheEntries sizes the hot governance-state cache.
	CacheEntries int
}

// DefaultConfig returns the development defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:      "meowchain-data",
		ChainID:      params.DefaultChainID,
		Period:       params.DefaultPeriod,
		Epoch:        params.DefaultEpoch,
		Dev:          false,
		CacheEntries: 1024,
	}
}

// LoadConfig reads a TOML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	if err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes the configuration as TOML to a file.
func SaveConfig(cfg Config, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	return SaveConfigTo(cfg, f)
}

// SaveConfigTo writes the configuration as TOML.
func SaveConfigTo(cfg Config, w io.Writer) error {
	return toml.NewEncoder(w).Encode(cfg)
}
