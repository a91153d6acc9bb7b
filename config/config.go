// Package config loads .agentdeck.yaml settings for the CLI.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds settings from .agentdeck.yaml.
type Config struct {
	// BufferLimit caps each session's envelope buffer in bytes.
	BufferLimit int `yaml:"buffer_limit"`
	// RenderStyle selects the markdown style ("dark", "light", "notty").
	RenderStyle string `yaml:"render_style"`
	// RenderWidth wraps rendered output at this column.
	RenderWidth int `yaml:"render_width"`
	// Agents maps agent names to display labels.
	Agents map[string]string `yaml:"agents"`
}

// Load reads .agentdeck.yaml from dir.
// Returns a default config if the file doesn't exist.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ".agentdeck.yaml")

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return defaults(), nil
	}
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.RenderStyle == "" {
		cfg.RenderStyle = "dark"
	}
	if cfg.RenderWidth <= 0 {
		cfg.RenderWidth = 100
	}
	return &cfg, nil
}

func defaults() *Config {
	return &Config{
		RenderStyle: "dark",
		RenderWidth: 100,
	}
}

// AgentLabel returns the display label for an agent name, falling back to
// the name itself.
func (c *Config) AgentLabel(name string) string {
	if c == nil {
		return name
	}
	if label, ok := c.Agents[name]; ok {
		return label
	}
	return name
}
