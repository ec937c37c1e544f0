package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWithoutEnvOverride(t *testing.T) {
	os.Unsetenv(EnvConfigFile)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != "badger" {
		t.Fatalf("Backend = %q, want badger", cfg.Backend)
	}
	if cfg.BucketBunchSize != 32 {
		t.Fatalf("BucketBunchSize = %d, want 32", cfg.BucketBunchSize)
	}
	if cfg.PartialMergeStage0Threshold != 16 || cfg.PartialMergeStage1Threshold != 256 {
		t.Fatalf("partial merge thresholds = %d, %d, want 16, 256", cfg.PartialMergeStage0Threshold, cfg.PartialMergeStage1Threshold)
	}
	if cfg.Attic.CacheSizeM != 32 {
		t.Fatalf("Attic.CacheSizeM = %d, want 32", cfg.Attic.CacheSizeM)
	}
}

func TestLoadMergesOverrideFileOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "osmdelta.yaml")
	if err := os.WriteFile(path, []byte("backend: leveldb\nspatial_max_zoom: 18\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfigFile, path)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != "leveldb" {
		t.Fatalf("Backend = %q, want leveldb (overridden)", cfg.Backend)
	}
	if cfg.SpatialMaxZoom != 18 {
		t.Fatalf("SpatialMaxZoom = %d, want 18 (overridden)", cfg.SpatialMaxZoom)
	}
	// Fields the override file never mentions keep their baked-in default.
	if cfg.BucketBunchSize != 32 {
		t.Fatalf("BucketBunchSize = %d, want the untouched default 32", cfg.BucketBunchSize)
	}
	if cfg.Current.CacheSizeM != 16 {
		t.Fatalf("Current.CacheSizeM = %d, want the untouched default 16", cfg.Current.CacheSizeM)
	}
}

func TestLoadReturnsErrorForMissingOverrideFile(t *testing.T) {
	t.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected an error when the override file does not exist")
	}
}
