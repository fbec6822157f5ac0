// Package config loads pipeline configuration from TOML.
//
// Settings can be customized via a TOML file. If the SEGLATE_CONFIG
// environment variable points to an existing file, values are read from
// there; otherwise config.toml in the working directory is used when
// present. Defaults match the historical hard-coded behavior so the tool
// works without any configuration.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/seglate/seglate/internal/ident"
)

// EnvConfigPath is the environment variable naming an alternate config file.
const EnvConfigPath = "SEGLATE_CONFIG"

// defaultInlineTags are tag names treated as inline (folded into a segment)
// rather than starting a segment of their own.
var defaultInlineTags = []string{
	"b", "i", "u", "cite", "sub", "sup", "ph", "span", "xref", "tt", "code",
}

// Config holds the recognized pipeline options.
type Config struct {
	// InlineTags are tag names folded into the enclosing segment.
	InlineTags []string `toml:"INLINE_TAGS"`
	// DoNotTranslate are tag names whose content passes through translation
	// untouched.
	DoNotTranslate []string `toml:"DO_NOT_TRANSLATE"`
	// IDLength is the number of hex characters in a segment ID.
	IDLength int `toml:"ID_LENGTH"`
	// LogLevel is the logging verbosity ("DEBUG", "INFO", "WARN", "ERROR").
	LogLevel string `toml:"LOG_LEVEL"`
	// SourceLang and TargetLang tag the segment artifacts.
	SourceLang string `toml:"SOURCE_LANG"`
	TargetLang string `toml:"TARGET_LANG"`

	inline    map[string]bool
	protected map[string]bool
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		InlineTags: append([]string(nil), defaultInlineTags...),
		IDLength:   ident.DefaultLength,
		LogLevel:   "INFO",
		SourceLang: "en-US",
		TargetLang: "de-DE",
	}
	cfg.index()
	return cfg
}

// Load reads configuration from the given TOML file, filling unset fields
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	cfg.index()
	return cfg, nil
}

// Discover loads configuration from SEGLATE_CONFIG or ./config.toml when
// either exists, or returns the defaults.
func Discover() (*Config, error) {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		path = "config.toml"
	}
	if _, err := os.Stat(path); err != nil {
		return Default(), nil
	}
	return Load(path)
}

func (c *Config) applyDefaults() {
	if c.InlineTags == nil {
		c.InlineTags = append([]string(nil), defaultInlineTags...)
	}
	if c.IDLength == 0 {
		c.IDLength = ident.DefaultLength
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.SourceLang == "" {
		c.SourceLang = "en-US"
	}
	if c.TargetLang == "" {
		c.TargetLang = "de-DE"
	}
}

func (c *Config) index() {
	c.inline = make(map[string]bool, len(c.InlineTags))
	for _, tag := range c.InlineTags {
		c.inline[tag] = true
	}
	c.protected = make(map[string]bool, len(c.DoNotTranslate))
	for _, tag := range c.DoNotTranslate {
		c.protected[tag] = true
	}
}

// IsInline reports whether the tag name is configured as inline.
func (c *Config) IsInline(tag string) bool {
	return c.inline[tag]
}

// IsProtected reports whether the tag name is configured as do-not-translate.
func (c *Config) IsProtected(tag string) bool {
	return c.protected[tag]
}
