package board

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults used when the config file omits a section
const (
	DefaultFallbackTeam  = "(no team)"
	DefaultFallbackTopic = "(no topic)"
	DefaultPublishPrefix = "stickymesh"
	DefaultNoteRadius    = 40.0
	DefaultPadding       = 200.0
	DefaultResolution    = 0.5
)

// DefaultColors is the color map of the standard mural palette
func DefaultColors() map[string]string {
	return map[string]string{
		"#459C5B": "DarkGreen",
		"#AAED92": "LightGreen",
		"#FCF281": "Yellow",
		"#FFC061": "Orange",
		"#E95E5E": "Red",
		"#86E6D9": "TeamLabel",
		"#FFFFFF": "TopicLabel",
	}
}

// DefaultColumns returns the column names of a mural sticky note export
func DefaultColumns() ColumnConfig {
	return ColumnConfig{
		ID:    "ID",
		Text:  "Text",
		Color: "BG Color",
		X:     "Position X",
		Y:     "Position Y",
	}
}

// DefaultConfig returns a configuration usable without any config file
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills every unset field with its default
func (c *Config) applyDefaults() {
	if len(c.Colors) == 0 {
		c.Colors = DefaultColors()
	}

	cols := DefaultColumns()
	if c.Columns.ID == "" {
		c.Columns.ID = cols.ID
	}
	if c.Columns.Text == "" {
		c.Columns.Text = cols.Text
	}
	if c.Columns.Color == "" {
		c.Columns.Color = cols.Color
	}
	if c.Columns.X == "" {
		c.Columns.X = cols.X
	}
	if c.Columns.Y == "" {
		c.Columns.Y = cols.Y
	}

	if c.Labels.FallbackTeam == "" {
		c.Labels.FallbackTeam = DefaultFallbackTeam
	}
	if c.Labels.FallbackTopic == "" {
		c.Labels.FallbackTopic = DefaultFallbackTopic
	}

	if c.MQTT.PublishPrefix == "" {
		c.MQTT.PublishPrefix = DefaultPublishPrefix
	}

	if c.Render.NoteRadius <= 0 {
		c.Render.NoteRadius = DefaultNoteRadius
	}
	if c.Render.Padding <= 0 {
		c.Render.Padding = DefaultPadding
	}
	if c.Render.Resolution <= 0 {
		c.Render.Resolution = DefaultResolution
	}
}

// Validate checks the configuration for errors that must stop a run before
// any export is processed
func (c *Config) Validate() error {
	if _, err := NewColorClassifier(c.Colors); err != nil {
		return fmt.Errorf("colors: %w", err)
	}

	seen := make(map[string]bool, len(c.Boards))
	for i, b := range c.Boards {
		if b.ID == "" {
			return fmt.Errorf("boards[%d].id is required", i)
		}
		if b.Topic == "" && b.URL == "" {
			return fmt.Errorf("boards[%d] (%s) needs a topic or a url", i, b.ID)
		}
		if seen[b.ID] {
			return fmt.Errorf("boards[%d]: duplicate board id %s", i, b.ID)
		}
		seen[b.ID] = true
	}

	return nil
}

// LoadConfig loads the configuration from a YAML file. Sections missing from
// the file take their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
