// Package config holds the way update engine's tuning knobs — store cache
// sizes, partial-merge fan-out thresholds, bucket bunch size — never
// business logic. It follows imposm3's cache/config.go pattern (a baked-in
// default, unmarshaled and then optionally overridden from a file), adapted
// from JSON to YAML.
package config

import (
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// StoreOptions mirrors imposm3's cacheOptions: the handful of knobs that
// matter for an embedded KV store opened once per run.
type StoreOptions struct {
	CacheSizeM           int `yaml:"cache_size_m"`
	MaxOpenFiles         int `yaml:"max_open_files"`
	BlockRestartInterval int `yaml:"block_restart_interval"`
	WriteBufferSizeM     int `yaml:"write_buffer_size_m"`
	BlockSizeK           int `yaml:"block_size_k"`
}

// Config is the engine's full tuning surface.
type Config struct {
	Backend string `yaml:"backend"` // "badger" or "leveldb"

	Current StoreOptions `yaml:"current"`
	Attic   StoreOptions `yaml:"attic"`
	Meta    StoreOptions `yaml:"meta"`
	Nodes   StoreOptions `yaml:"nodes"`

	// BucketBunchSize is loaded and overridable like the other knobs, but no
	// store reads it: cache.Store writes one KV entry per bucket key and does
	// no bunching.
	BucketBunchSize int `yaml:"bucket_bunch_size"`

	// PartialMergeStage0Threshold/Stage1Threshold are the fan-out
	// thresholds of the partial-batch staged merge (§4.8, §6); see
	// wayupdate.PlanPartialMerge.
	PartialMergeStage0Threshold int `yaml:"partial_merge_stage0_threshold"`
	PartialMergeStage1Threshold int `yaml:"partial_merge_stage1_threshold"`

	// SpatialMaxZoom is the quadtile depth package spatial buckets node
	// positions at.
	SpatialMaxZoom int `yaml:"spatial_max_zoom"`
}

const defaultConfig = `
backend: badger
current:
  cache_size_m: 16
  write_buffer_size_m: 64
  max_open_files: 64
  block_restart_interval: 128
attic:
  cache_size_m: 32
  write_buffer_size_m: 128
  max_open_files: 256
  block_restart_interval: 256
meta:
  cache_size_m: 16
  write_buffer_size_m: 64
  max_open_files: 64
  block_restart_interval: 128
nodes:
  cache_size_m: 16
  write_buffer_size_m: 64
  max_open_files: 64
  block_restart_interval: 128
bucket_bunch_size: 32
partial_merge_stage0_threshold: 16
partial_merge_stage1_threshold: 256
spatial_max_zoom: 16
`

// EnvConfigFile names the environment variable carrying an override
// config's path, mirroring imposm3's GOPOSM_CACHE_CONFIG.
const EnvConfigFile = "OSMDELTA_CONFIG"

// Load builds a Config from the baked-in default, overridden by the file
// named in OSMDELTA_CONFIG, if set.
func Load() (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(defaultConfig), &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parsing default config")
	}

	path := os.Getenv(EnvConfigFile)
	if path == "" {
		return cfg, nil
	}
	if err := mergeFile(&cfg, path); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(err, "parsing config %s", path)
	}
	return nil
}
