package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the optional adbwire configuration file.
type Config struct {
	Log  LogConfig  `toml:"log"`
	Tap  TapConfig  `toml:"tap"`
	Dump DumpConfig `toml:"dump"`
}

// LogConfig holds logging defaults.
type LogConfig struct {
	Level *string `toml:"level"`
}

// TapConfig holds defaults for the tap command.
type TapConfig struct {
	Listen    *string `toml:"listen"`
	Upstream  *string `toml:"upstream"`
	BWLimit   *string `toml:"bwlimit"`
	RecordDir *string `toml:"record_dir"`
}

// DumpConfig holds defaults for frame rendering.
type DumpConfig struct {
	Digest  *bool `toml:"digest"`
	Preview *int  `toml:"preview"`
}

// ConfigPath returns the resolved path to the config file.
//
//nolint:revive // exported: name kept for symmetry with Load
func ConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "adbwire", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. Config is always optional.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return Config{}, nil
	}
	return LoadFile(path)
}

// LoadFile reads the config file at path. A missing file yields a zero Config.
func LoadFile(path string) (Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
}

// StringOr returns *p, or def when p is nil.
func StringOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

// ParseBandwidth parses a byte rate such as "10MB", "512k" or "1G" into
// bytes per second. Units are powers of 1024. An empty string or "0"
// means unlimited and returns 0.
func ParseBandwidth(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0, nil
	}
	s = strings.TrimSuffix(strings.TrimSuffix(s, "/S"), "B")

	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "K"):
		mult = 1 << 10
	case strings.HasSuffix(s, "M"):
		mult = 1 << 20
	case strings.HasSuffix(s, "G"):
		mult = 1 << 30
	}
	if mult > 1 {
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid bandwidth %q", s)
	}
	return int64(n * float64(mult)), nil
}
