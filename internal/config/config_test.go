package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.IDLength != 12 {
		t.Errorf("IDLength = %d, want 12", cfg.IDLength)
	}
	if cfg.LogLevel != "INFO" {
		t.Errorf("LogLevel = %q, want INFO", cfg.LogLevel)
	}
	if cfg.SourceLang != "en-US" || cfg.TargetLang != "de-DE" {
		t.Errorf("language pair = %s/%s", cfg.SourceLang, cfg.TargetLang)
	}
	for _, tag := range []string{"b", "i", "ph", "xref", "code"} {
		if !cfg.IsInline(tag) {
			t.Errorf("IsInline(%q) = false, want true", tag)
		}
	}
	if cfg.IsInline("p") {
		t.Error("IsInline(p) = true, want false")
	}
	if cfg.IsProtected("codeblock") {
		t.Error("IsProtected(codeblock) = true with empty DNT config")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
INLINE_TAGS = ["b", "i", "keyword"]
DO_NOT_TRANSLATE = ["codeblock", "msgnum"]
ID_LENGTH = 8
LOG_LEVEL = "DEBUG"
SOURCE_LANG = "en-GB"
TARGET_LANG = "fr-FR"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.IsInline("keyword") {
		t.Error("IsInline(keyword) = false, want true")
	}
	if cfg.IsInline("ph") {
		t.Error("IsInline(ph) = true; config should replace the default set")
	}
	if !cfg.IsProtected("codeblock") || !cfg.IsProtected("msgnum") {
		t.Error("DNT tags not loaded")
	}
	if cfg.IDLength != 8 {
		t.Errorf("IDLength = %d, want 8", cfg.IDLength)
	}
	if cfg.LogLevel != "DEBUG" {
		t.Errorf("LogLevel = %q, want DEBUG", cfg.LogLevel)
	}
	if cfg.SourceLang != "en-GB" || cfg.TargetLang != "fr-FR" {
		t.Errorf("language pair = %s/%s", cfg.SourceLang, cfg.TargetLang)
	}
}

func TestLoad_PartialFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`DO_NOT_TRANSLATE = ["codeblock"]`), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.IsInline("b") {
		t.Error("default inline tags should survive a partial config")
	}
	if cfg.IDLength != 12 {
		t.Errorf("IDLength = %d, want default 12", cfg.IDLength)
	}
	if !cfg.IsProtected("codeblock") {
		t.Error("IsProtected(codeblock) = false, want true")
	}
}

func TestLoad_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`INLINE_TAGS = [unclosed`), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed TOML")
	}
}

func TestDiscover_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	if err := os.WriteFile(path, []byte(`ID_LENGTH = 16`), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv(EnvConfigPath, path)

	cfg, err := Discover()
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if cfg.IDLength != 16 {
		t.Errorf("IDLength = %d, want 16", cfg.IDLength)
	}
}

func TestDiscover_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, filepath.Join(t.TempDir(), "absent.toml"))
	cfg, err := Discover()
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if cfg.IDLength != 12 {
		t.Errorf("IDLength = %d, want default", cfg.IDLength)
	}
}
