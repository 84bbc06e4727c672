package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Assembler.MaxPasses != 64 {
		t.Errorf("Expected MaxPasses=64, got %d", cfg.Assembler.MaxPasses)
	}
	if cfg.Assembler.CaseSensitive {
		t.Error("Expected CaseSensitive=false")
	}
	if cfg.Assembler.FillByte != 0xFF {
		t.Errorf("Expected FillByte=0xFF, got %#x", cfg.Assembler.FillByte)
	}

	if cfg.Listing.BytesPerLine != 8 {
		t.Errorf("Expected BytesPerLine=8, got %d", cfg.Listing.BytesPerLine)
	}
	if cfg.Listing.NumberFormat != "hex" {
		t.Errorf("Expected NumberFormat=hex, got %s", cfg.Listing.NumberFormat)
	}

	if cfg.Output.DefaultFormat != "amsdos_bin" {
		t.Errorf("Expected DefaultFormat=amsdos_bin, got %s", cfg.Output.DefaultFormat)
	}
}

func TestGetConfigPath(t *testing.T) {
	path := GetConfigPath()

	if path == "" {
		t.Error("GetConfigPath returned empty string")
	}
	if filepath.Base(path) != "config.toml" {
		t.Errorf("Expected path to end with config.toml, got %s", path)
	}

	switch runtime.GOOS {
	case "darwin", "linux":
		dir := filepath.Dir(path)
		if filepath.Base(dir) != "basm" && path != "config.toml" {
			t.Errorf("Expected path in basm directory or fallback, got %s", path)
		}
	}
}

func TestSaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "test_config.toml")

	cfg := DefaultConfig()
	cfg.Assembler.MaxPasses = 10
	cfg.Assembler.CaseSensitive = true
	cfg.Listing.BytesPerLine = 16
	cfg.Paths.IncludeRoots = []string{"lib", "include"}

	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("Config file was not created")
	}

	loaded, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.Assembler.MaxPasses != 10 {
		t.Errorf("Expected MaxPasses=10, got %d", loaded.Assembler.MaxPasses)
	}
	if !loaded.Assembler.CaseSensitive {
		t.Error("Expected CaseSensitive=true")
	}
	if loaded.Listing.BytesPerLine != 16 {
		t.Errorf("Expected BytesPerLine=16, got %d", loaded.Listing.BytesPerLine)
	}
	if len(loaded.Paths.IncludeRoots) != 2 || loaded.Paths.IncludeRoots[0] != "lib" {
		t.Errorf("Expected IncludeRoots=[lib include], got %v", loaded.Paths.IncludeRoots)
	}
}

func TestLoadNonExistent(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "nonexistent.toml")

	cfg, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("LoadFrom should not error on non-existent file: %v", err)
	}
	if cfg.Assembler.MaxPasses != 64 {
		t.Error("Expected default config when file doesn't exist")
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "invalid.toml")

	invalidTOML := `
[assembler]
max_passes = "not a number"
`
	if err := os.WriteFile(configPath, []byte(invalidTOML), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if _, err := LoadFrom(configPath); err == nil {
		t.Error("Expected error when loading invalid TOML")
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "subdir1", "subdir2", "config.toml")

	cfg := DefaultConfig()
	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}
}
