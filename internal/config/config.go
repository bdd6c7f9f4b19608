// Package config loads and saves the pathoram command configuration as TOML.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	pathoram "github.com/etclab/pathoram-client"
	"github.com/etclab/pathoram-client/internal/logging"
	"go.uber.org/zap"
)

// DefaultBucketSize is the slot count per bucket written by "pathoram init".
// Zero in a config file derives ceil(log2 num_blocks) instead.
const DefaultBucketSize = 16

// Storage backends.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
)

// ORAM holds the tree parameters.
type ORAM struct {
	NumBlocks    int    `toml:"num_blocks"`
	BlockSize    int    `toml:"block_size"`
	BucketSize   int    `toml:"bucket_size"`
	Cipher       string `toml:"cipher"`
	ConstantTime bool   `toml:"constant_time"`
}

// Storage selects where sealed buckets live.
type Storage struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path,omitempty"`
	Sync    bool   `toml:"sync,omitempty"`
}

// Config is the full command configuration.
type Config struct {
	ORAM    ORAM           `toml:"oram"`
	Storage Storage        `toml:"storage"`
	Logger  logging.Config `toml:"logger"`
}

// Default returns the configuration written by "pathoram init": capacity
// 100 blocks of 4 bytes in memory, DefaultBucketSize slots per bucket.
func Default() *Config {
	return &Config{
		ORAM: ORAM{
			NumBlocks:  100,
			BlockSize:  4,
			BucketSize: DefaultBucketSize,
			Cipher:     pathoram.AESGCM.String(),
		},
		Storage: Storage{
			Backend: BackendMemory,
		},
		Logger: logging.Config{
			Environment: "production",
		},
	}
}

// Load reads a configuration from the given toml-encoded file.
func Load(path string) (*Config, error) {
	conf := Default()
	if _, err := toml.DecodeFile(path, conf); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Save writes conf to path in toml encoding.
func (conf *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(conf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// Validate checks fields the library does not see.
func (conf *Config) Validate() error {
	if _, err := pathoram.ParseCipherSuite(conf.ORAM.Cipher); err != nil {
		return err
	}
	switch conf.Storage.Backend {
	case BackendMemory:
	case BackendLevelDB:
		if conf.Storage.Path == "" {
			return fmt.Errorf("config: storage.path is required for the %s backend", BackendLevelDB)
		}
	default:
		return fmt.Errorf("config: unknown storage backend %q", conf.Storage.Backend)
	}
	_, err := conf.PathORAM(nil)
	return err
}

// PathORAM converts the file configuration into a library Config.
func (conf *Config) PathORAM(logger *zap.Logger) (pathoram.Config, error) {
	suite, err := pathoram.ParseCipherSuite(conf.ORAM.Cipher)
	if err != nil {
		return pathoram.Config{}, err
	}
	return pathoram.Config{
		NumBlocks:    conf.ORAM.NumBlocks,
		BlockSize:    conf.ORAM.BlockSize,
		BucketSize:   conf.ORAM.BucketSize,
		Cipher:       suite,
		ConstantTime: conf.ORAM.ConstantTime,
		Logger:       logger,
	}.Validate()
}
