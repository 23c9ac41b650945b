package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models droneops.yml.
type Config struct {
	Desk struct {
		ID string `yaml:"id"`
	} `yaml:"desk"`
	// Locations is the closed catalog of location tags. Every pilot, drone,
	// and mission location must come from this set.
	Locations []string `yaml:"locations"`
	Data      struct {
		Pilots   string `yaml:"pilots"`
		Drones   string `yaml:"drones"`
		Missions string `yaml:"missions"`
	} `yaml:"data"`
	LLM struct {
		Model string `yaml:"model"`
	} `yaml:"llm"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with droneops init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Desk.ID == "" {
		return fmt.Errorf("config.desk.id is required")
	}
	if len(c.Locations) == 0 {
		return fmt.Errorf("config.locations is required")
	}
	seen := map[string]struct{}{}
	for _, loc := range c.Locations {
		if loc == "" {
			return fmt.Errorf("config.locations contains empty tag")
		}
		if _, dup := seen[loc]; dup {
			return fmt.Errorf("config.locations contains duplicate tag %s", loc)
		}
		seen[loc] = struct{}{}
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("webhook %d has negative timeout", i)
		}
	}
	return nil
}

// KnownLocation reports whether the tag belongs to the catalog.
func (c *Config) KnownLocation(tag string) bool {
	for _, loc := range c.Locations {
		if loc == tag {
			return true
		}
	}
	return false
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "droneops.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(deskID string) string {
	return fmt.Sprintf(defaultTemplate, deskID)
}

// Default returns the default Config struct for a desk.
func Default(deskID string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, deskID))).Decode(&cfg)
	cfg.Desk.ID = deskID
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `desk:
  id: %s

locations:
  - bangalore
  - mumbai
  - delhi
  - pune

data:
  pilots: data/pilots.csv
  drones: data/drones.csv
  missions: data/missions.csv

llm:
  model: gpt-4o-mini
`
