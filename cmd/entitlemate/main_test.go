package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/entitlemate/entitlements"
)

func TestResolveConfig_FlagsWin(t *testing.T) {
	// WHAT: Flags override both the file and the environment.
	// WHY: Operators reach for flags when debugging a deployed config.
	path := filepath.Join(t.TempDir(), "entitlemate.yaml")
	if err := os.WriteFile(path, []byte("variant: relay\naddr: \":7000\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ENTITLEMATE_VARIANT", "relay")

	cfg, err := resolveConfig(path, "upload", "127.0.0.1:9999")
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Prepare(); err != nil {
		t.Fatal(err)
	}
	if cfg.Variant != entitlements.VariantUpload {
		t.Errorf("variant: got %q", cfg.Variant)
	}
	if cfg.ListenAddr() != "127.0.0.1:9999" {
		t.Errorf("addr: got %q", cfg.ListenAddr())
	}
}

func TestResolveConfig_EnvPort(t *testing.T) {
	t.Setenv("PORT", "8123")
	cfg, err := resolveConfig("", "upload", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Prepare(); err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr() != ":8123" {
		t.Errorf("addr: got %q", cfg.ListenAddr())
	}
}

func TestResolveConfig_MissingFile(t *testing.T) {
	if _, err := resolveConfig(filepath.Join(t.TempDir(), "nope.yaml"), "", ""); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
