package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid config")

// PortsConfig names the MIDI ports to connect (substring match)
type PortsConfig struct {
	Input  string `json:"input,omitempty"`
	Output string `json:"output,omitempty"`
}

// EngineConfig sets the block clock
type EngineConfig struct {
	SampleRate int `json:"sampleRate"`
	BlockSize  int `json:"blockSize"`
}

// HumanizeConfig sets the delay behaviour
type HumanizeConfig struct {
	VarianceMs    float64 `json:"varianceMs"`
	MaxVarianceMs float64 `json:"maxVarianceMs"`
	MaxPending    int     `json:"maxPending"`           // 0 = unbounded
	AnyChannel    bool    `json:"anyChannel,omitempty"` // delay note-ons on all 16 channels
}

// UIConfig stores UI preferences
type UIConfig struct {
	Palette string `json:"palette,omitempty"` // path to a GIMP .gpl palette
}

// Config is the main configuration structure
type Config struct {
	Ports    PortsConfig    `json:"ports"`
	Engine   EngineConfig   `json:"engine"`
	Humanize HumanizeConfig `json:"humanize"`
	UI       UIConfig       `json:"ui,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			SampleRate: 48000,
			BlockSize:  64,
		},
		Humanize: HumanizeConfig{
			VarianceMs:    5,
			MaxVarianceMs: 100,
			MaxPending:    1024,
		},
	}
}

// Store reads and writes the config file on a filesystem
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore uses path on fs. An empty path means DefaultPath().
func NewStore(fs afero.Fs, path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return &Store{fs: fs, path: path}, nil
}

// OSStore is the store for ~/.config/go-sloth/config.json on disk
func OSStore() (*Store, error) {
	return NewStore(afero.NewOsFs(), "")
}

// Path returns the config file location
func (s *Store) Path() string {
	return s.path
}

// Dir returns the config directory path
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-sloth"), nil
}

// DefaultPath returns the full path to config.json
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config, or returns defaults if the file does not exist.
// Fields missing from the file keep their default values.
func (s *Store) Load() (*Config, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", s.path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config, creating the directory if needed
func (s *Store) Save(c *Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(s.fs, s.path, data, 0644)
}

// Validate checks ranges the engine depends on
func (c *Config) Validate() error {
	switch {
	case c.Engine.SampleRate <= 0:
		return fmt.Errorf("%w: sampleRate %d must be positive", ErrInvalid, c.Engine.SampleRate)
	case c.Engine.BlockSize <= 0:
		return fmt.Errorf("%w: blockSize %d must be positive", ErrInvalid, c.Engine.BlockSize)
	case !(c.Humanize.MaxVarianceMs > 0) || math.IsInf(c.Humanize.MaxVarianceMs, 0):
		return fmt.Errorf("%w: maxVarianceMs %g must be positive and finite", ErrInvalid, c.Humanize.MaxVarianceMs)
	case !(c.Humanize.VarianceMs >= 0):
		return fmt.Errorf("%w: varianceMs %g must be a non-negative number", ErrInvalid, c.Humanize.VarianceMs)
	case c.Humanize.VarianceMs > c.Humanize.MaxVarianceMs:
		return fmt.Errorf("%w: varianceMs %g is above maxVarianceMs %g", ErrInvalid, c.Humanize.VarianceMs, c.Humanize.MaxVarianceMs)
	case c.Humanize.MaxPending < 0:
		return fmt.Errorf("%w: maxPending %d is negative", ErrInvalid, c.Humanize.MaxPending)
	}
	return nil
}
