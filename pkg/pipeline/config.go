package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cascadelabs/evlake/pkg/ev"
)

// FileConfig is the optional YAML pipeline configuration.
type FileConfig struct {
	Source    string `yaml:"source"`
	OutputDir string `yaml:"output_dir"`

	// Database is the engine location. Empty means in-memory.
	Database string `yaml:"database"`

	// NoSpatial skips the spatial extension and stores locations as text.
	NoSpatial bool `yaml:"no_spatial"`

	// EnumColumns overrides the default column typing policy. Omitted, the
	// default policy applies; an explicit empty list disables dictionary
	// encoding entirely.
	EnumColumns *[]ev.EnumColumn `yaml:"enum_columns"`
}

// LoadFileConfig loads configuration from a YAML file.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// Policy returns the typing policy selected by the file, or the default.
func (c *FileConfig) Policy() ev.TypingPolicy {
	if c.EnumColumns == nil {
		return ev.DefaultTypingPolicy()
	}
	return ev.TypingPolicy{EnumColumns: *c.EnumColumns}
}
