package config

import "testing"

func TestDefaultConfigReadsEnv(t *testing.T) {
	t.Setenv(envStoreDir, "/tmp/mystore")
	t.Setenv(envStateDir, "/tmp/mystate")

	cfg := DefaultConfig()
	if cfg.StoreDir != "/tmp/mystore" || cfg.StateDir != "/tmp/mystate" {
		t.Errorf("got %+v", cfg)
	}
}

func TestDefaultConfigFallsBackWithoutEnv(t *testing.T) {
	t.Setenv(envStoreDir, "")
	t.Setenv(envStateDir, "")

	cfg := DefaultConfig()
	if cfg.StoreDir != defaultStoreDir || cfg.StateDir != defaultStateDir {
		t.Errorf("got %+v", cfg)
	}
}

func TestMergeOnlyOverridesNonEmpty(t *testing.T) {
	dst := &Config{StoreDir: "/a/store", StateDir: "/a/state"}
	merge(dst, &Config{StoreDir: "/b/store"})
	if dst.StoreDir != "/b/store" {
		t.Errorf("StoreDir = %s, want /b/store", dst.StoreDir)
	}
	if dst.StateDir != "/a/state" {
		t.Errorf("StateDir = %s, want unchanged /a/state", dst.StateDir)
	}
}
