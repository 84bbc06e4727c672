// Package config loads and saves this assembler's run configuration,
// generalizing the teacher's config/config.go TOML layout from an ARM
// emulator's execution/debugger/display/trace sections to this
// assembler's pass/listing/output/paths sections.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config is the full set of user-tunable assembler settings.
type Config struct {
	Assembler struct {
		MaxPasses      int    `toml:"max_passes"`
		CaseSensitive  bool   `toml:"case_sensitive"`
		FillByte       int    `toml:"fill_byte"`
		Protect        bool   `toml:"protect"`
		DefaultDialect string `toml:"default_dialect"`
	} `toml:"assembler"`

	Listing struct {
		BytesPerLine int    `toml:"bytes_per_line"`
		NumberFormat string `toml:"number_format"` // hex, dec, both
		SymbolFormat string `toml:"symbol_format"` // basm, winape
	} `toml:"listing"`

	Output struct {
		DefaultFormat string `toml:"default_format"` // raw, amsdos_bin, amsdos_bas, ascii, sna
		SnaVersion    int    `toml:"sna_version"`
	} `toml:"output"`

	Paths struct {
		IncludeRoots []string `toml:"include_roots"`
	} `toml:"paths"`
}

// DefaultConfig returns the configuration a fresh run starts from.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Assembler.MaxPasses = 64
	cfg.Assembler.CaseSensitive = false
	cfg.Assembler.FillByte = 0xFF
	cfg.Assembler.Protect = true
	cfg.Assembler.DefaultDialect = "rasm"

	cfg.Listing.BytesPerLine = 8
	cfg.Listing.NumberFormat = "hex"
	cfg.Listing.SymbolFormat = "basm"

	cfg.Output.DefaultFormat = "amsdos_bin"
	cfg.Output.SnaVersion = 3

	cfg.Paths.IncludeRoots = nil

	return cfg
}

// GetConfigPath returns the platform-specific config file path.
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "basm")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "basm")

	default:
		return "config.toml"
	}

	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "config.toml"
	}

	return filepath.Join(configDir, "config.toml")
}

// GetLogPath returns the platform-specific log directory path.
func GetLogPath() string {
	var logDir string

	switch runtime.GOOS {
	case "windows":
		logDir = os.Getenv("APPDATA")
		if logDir == "" {
			logDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		logDir = filepath.Join(logDir, "basm", "logs")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "logs"
		}
		logDir = filepath.Join(homeDir, ".local", "share", "basm", "logs")

	default:
		return "logs"
	}

	if err := os.MkdirAll(logDir, 0750); err != nil {
		return "logs"
	}

	return logDir
}

// Load reads configuration from the default config file, falling back to
// defaults if it does not exist yet.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom reads configuration from path, falling back to defaults if it
// does not exist.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save writes c to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo writes c to path, creating its parent directory if necessary.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}
