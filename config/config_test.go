package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/diskvideo"
	"github.com/outofforest/diskvideo/blockstore"
)

func writeFile(requireT *require.Assertions, dir, name, content string) string {
	path := filepath.Join(dir, name)
	requireT.NoError(os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	requireT := require.New(t)

	cfg := Default()
	requireT.NoError(cfg.Validate())

	opts, err := cfg.Options(logrus.New())
	requireT.NoError(err)
	requireT.Equal(blockstore.MediumMemory, opts.Medium)
	requireT.EqualValues(diskvideo.DefaultCacheSize, opts.CacheSize)
	requireT.Equal(diskvideo.DefaultStatusInterval, opts.StatusInterval)
}

func TestLoadYAML(t *testing.T) {
	requireT := require.New(t)

	path := writeFile(requireT, t.TempDir(), "diskvideo.yaml", `
medium: kv
cacheKiB: 256
kvDir: /var/tmp/kv
statusInterval: 1s
`)

	cfg, err := Load(path)
	requireT.NoError(err)
	requireT.Equal(Config{
		Medium:           "kv",
		CacheKiB:         256,
		KVDir:            "/var/tmp/kv",
		StatusInterval:   "1s",
		LogLevel:         "info",
		MemoryReserveMiB: 64,
	}, cfg)

	opts, err := cfg.Options(nil)
	requireT.NoError(err)
	requireT.Equal(blockstore.MediumKV, opts.Medium)
	requireT.EqualValues(256*1024, opts.CacheSize)
	requireT.Equal("/var/tmp/kv", opts.KVDir)
	requireT.Equal(time.Second, opts.StatusInterval)
	requireT.EqualValues(64*1024*1024, opts.MemoryReserve)
}

func TestLoadJSONWithComments(t *testing.T) {
	requireT := require.New(t)

	path := writeFile(requireT, t.TempDir(), "diskvideo.jsonc", `{
	// keep the image on disk
	"medium": "disk",
	"tempDir": "/scratch",
	"logLevel": "debug", // trailing comma is fine
}`)

	cfg, err := Load(path)
	requireT.NoError(err)
	requireT.Equal("disk", cfg.Medium)
	requireT.Equal("/scratch", cfg.TempDir)
	requireT.Equal("debug", cfg.LogLevel)
	requireT.EqualValues(64, cfg.CacheKiB)

	log, err := cfg.Logger()
	requireT.NoError(err)
	requireT.Equal(logrus.DebugLevel, log.GetLevel())
}

func TestLoadRejectsInvalidFiles(t *testing.T) {
	requireT := require.New(t)
	dir := t.TempDir()

	for name, content := range map[string]string{
		"unknown.yaml":  "colour: red\n",
		"medium.yaml":   "medium: floppy\n",
		"cache.yaml":    "cacheKiB: 1\n",
		"interval.json": `{"statusInterval": "soon"}`,
		"level.json":    `{"logLevel": "loud"}`,
		"unknown.json":  `{"colour": "red"}`,
		"config.toml":   "medium = \"disk\"\n",
	} {
		_, err := Load(writeFile(requireT, dir, name, content))
		requireT.Error(err, name)
	}

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	requireT.Error(err)
}
