package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v2"

	"github.com/outofforest/diskvideo"
	"github.com/outofforest/diskvideo/blockstore"
)

// Config is the file-level configuration of disk video sessions.
type Config struct {
	Medium           string `yaml:"medium" json:"medium"`
	CacheKiB         int64  `yaml:"cacheKiB" json:"cacheKiB"`
	TempDir          string `yaml:"tempDir" json:"tempDir"`
	KVDir            string `yaml:"kvDir" json:"kvDir"`
	StatusInterval   string `yaml:"statusInterval" json:"statusInterval"`
	LogLevel         string `yaml:"logLevel" json:"logLevel"`
	MemoryReserveMiB uint64 `yaml:"memoryReserveMiB" json:"memoryReserveMiB"`
}

// Default returns default configuration.
func Default() Config {
	return Config{
		Medium:           blockstore.MediumMemory.String(),
		CacheKiB:         diskvideo.DefaultCacheSize / 1024,
		StatusInterval:   diskvideo.DefaultStatusInterval.String(),
		LogLevel:         logrus.InfoLevel.String(),
		MemoryReserveMiB: 64,
	}
}

// Load reads configuration from YAML or JSON-with-comments file. Fields missing in the file are taken
// from Default().
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.WithStack(err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parsing %s", path)
		}
	case ".json", ".jsonc", ".hujson":
		standardized, err := hujson.Standardize(data)
		if err != nil {
			return Config{}, errors.Wrapf(err, "parsing %s", path)
		}
		decoder := json.NewDecoder(bytes.NewReader(standardized))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parsing %s", path)
		}
	default:
		return Config{}, errors.Errorf("unsupported config file extension %q", ext)
	}

	cfg = withDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrapf(err, "validating %s", path)
	}
	return cfg, nil
}

func withDefaults(cfg Config) Config {
	def := Default()
	if cfg.Medium == "" {
		cfg.Medium = def.Medium
	}
	if cfg.CacheKiB == 0 {
		cfg.CacheKiB = def.CacheKiB
	}
	if cfg.StatusInterval == "" {
		cfg.StatusInterval = def.StatusInterval
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.MemoryReserveMiB == 0 {
		cfg.MemoryReserveMiB = def.MemoryReserveMiB
	}
	return cfg
}

// Validate verifies that configuration is usable.
func (c Config) Validate() error {
	if _, err := blockstore.ParseMedium(c.Medium); err != nil {
		return err
	}
	if c.CacheKiB*1024 < diskvideo.MinCacheSize {
		return errors.Errorf("cache size must be at least %d KiB, %d requested", diskvideo.MinCacheSize/1024, c.CacheKiB)
	}
	interval, err := time.ParseDuration(c.StatusInterval)
	if err != nil {
		return errors.WithStack(err)
	}
	if interval <= 0 {
		return errors.Errorf("status interval must be positive, %s provided", c.StatusInterval)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Logger returns logger configured with the log level.
func (c Config) Logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	log := logrus.New()
	log.SetLevel(level)
	return log, nil
}

// Options converts configuration to session options. Image geometry is left for the caller to set.
func (c Config) Options(log *logrus.Logger) (diskvideo.Options, error) {
	if err := c.Validate(); err != nil {
		return diskvideo.Options{}, err
	}
	medium, err := blockstore.ParseMedium(c.Medium)
	if err != nil {
		return diskvideo.Options{}, err
	}
	interval, err := time.ParseDuration(c.StatusInterval)
	if err != nil {
		return diskvideo.Options{}, errors.WithStack(err)
	}
	return diskvideo.Options{
		Medium:         medium,
		CacheSize:      c.CacheKiB * 1024,
		TempDir:        c.TempDir,
		KVDir:          c.KVDir,
		MemoryReserve:  c.MemoryReserveMiB * 1024 * 1024,
		Logger:         log,
		StatusInterval: interval,
	}, nil
}
