package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the runtime configuration for myz. It tunes the pipeline and
// locates side artifacts; container format constants are never
// configurable, since both sides of the wire must agree without a config
// file.
type Config struct {
	BaseDir  string         `toml:"base_dir"`
	LogDir   string         `toml:"log_dir"`
	Oracle   OracleConfig   `toml:"oracle"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Journal  JournalConfig  `toml:"journal"`
	Seed     SeedConfig     `toml:"seed"`
}

// OracleConfig selects the keystream device backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type OracleConfig struct {
	Type        string `toml:"type"` // "subqg" (built-in software device) or "opencl"
	DeviceIndex int    `toml:"device_index"`
}

// PipelineConfig bounds the block pipeline. Zero values select the
// built-in defaults.
type PipelineConfig struct {
	Depth   int `toml:"depth"`   // in-flight block bound
	Workers int `toml:"workers"` // transform worker count
}

// JournalConfig locates the operation journal database.
type JournalConfig struct {
	Path string `toml:"path"`
}

// SeedConfig tunes oracle-backed seed derivation.
type SeedConfig struct {
	TimeoutMS int `toml:"timeout_ms"` // deadline before OS randomness is substituted
}

// NewConfig creates a Config with the default layout under baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Oracle:  OracleConfig{Type: "subqg"},
		Journal: JournalConfig{Path: filepath.Join(baseDir, "journal.db")},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
