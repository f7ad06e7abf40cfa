package board

import "fmt"

// Category is the structural role an item plays on the board, derived from
// its background color.
type Category int

const (
	CategoryNote Category = iota
	CategoryTeamLabel
	CategoryTopicLabel
)

// String returns the category name used in config files and reports
func (c Category) String() string {
	switch c {
	case CategoryNote:
		return "Note"
	case CategoryTeamLabel:
		return "TeamLabel"
	case CategoryTopicLabel:
		return "TopicLabel"
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// IsLabel reports whether the category marks a team or topic label
func (c Category) IsLabel() bool {
	return c == CategoryTeamLabel || c == CategoryTopicLabel
}

// MarshalText encodes the category by name
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a category name
func (c *Category) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Note":
		*c = CategoryNote
	case "TeamLabel":
		*c = CategoryTeamLabel
	case "TopicLabel":
		*c = CategoryTopicLabel
	default:
		return fmt.Errorf("unknown category %q", string(text))
	}
	return nil
}

// ColorRank is the ordinal score weight of a note color.
type ColorRank int

const (
	// RankNone is carried by labels, which take no part in scoring.
	RankNone       ColorRank = -1
	RankRed        ColorRank = 0
	RankOrange     ColorRank = 25
	RankYellow     ColorRank = 50
	RankLightGreen ColorRank = 75
	RankDarkGreen  ColorRank = 100
)

// Ranks lists the five note ranks in ascending order
var Ranks = [...]ColorRank{RankRed, RankOrange, RankYellow, RankLightGreen, RankDarkGreen}

// String returns the color name of the rank
func (r ColorRank) String() string {
	switch r {
	case RankRed:
		return "Red"
	case RankOrange:
		return "Orange"
	case RankYellow:
		return "Yellow"
	case RankLightGreen:
		return "LightGreen"
	case RankDarkGreen:
		return "DarkGreen"
	case RankNone:
		return "None"
	}
	return fmt.Sprintf("ColorRank(%d)", int(r))
}

// Point represents a 2D board coordinate
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Item is one sticky note or label from a board export.
type Item struct {
	ID       string    `json:"id"`
	Text     string    `json:"text,omitempty"`
	Category Category  `json:"category"`
	Rank     ColorRank `json:"rank"`
	Color    string    `json:"color,omitempty"` // normalized raw color code
	Position Point     `json:"position"`
}

// IsLabel reports whether the item is a team or topic label
func (it Item) IsLabel() bool {
	return it.Category.IsLabel()
}

// ColorRank returns the scoring rank of a note. Labels report ok=false.
func (it Item) ColorRank() (ColorRank, bool) {
	if it.Category != CategoryNote || it.Rank == RankNone {
		return RankNone, false
	}
	return it.Rank, true
}

// Config represents the full configuration file
type Config struct {
	Colors    map[string]string `yaml:"colors" json:"colors"` // raw color code -> category name
	Columns   ColumnConfig      `yaml:"columns" json:"columns"`
	Labels    LabelConfig       `yaml:"labels" json:"labels"`
	Sentiment SentimentConfig   `yaml:"sentiment,omitempty" json:"sentiment,omitempty"`
	MQTT      MQTTConfig        `yaml:"mqtt,omitempty" json:"mqtt,omitempty"`
	Boards    []BoardConfig     `yaml:"boards,omitempty" json:"boards,omitempty"`
	Render    RenderConfig      `yaml:"render,omitempty" json:"render,omitempty"`
	Database  string            `yaml:"database,omitempty" json:"database,omitempty"` // SQLite history path; empty disables
}

// ColumnConfig names the export columns that carry item fields.
// Every other column of the export is ignored.
type ColumnConfig struct {
	ID    string `yaml:"id" json:"id"`
	Text  string `yaml:"text" json:"text"`
	Color string `yaml:"color" json:"color"`
	X     string `yaml:"x" json:"x"`
	Y     string `yaml:"y" json:"y"`
}

// LabelConfig holds the sentinels used when a group lacks a label
type LabelConfig struct {
	FallbackTeam  string `yaml:"fallbackTeam" json:"fallbackTeam"`
	FallbackTopic string `yaml:"fallbackTopic" json:"fallbackTopic"`
}

// SentimentConfig extends the built-in polarity lexicon
type SentimentConfig struct {
	Positive []string `yaml:"positive,omitempty" json:"positive,omitempty"`
	Negative []string `yaml:"negative,omitempty" json:"negative,omitempty"`
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// BoardConfig defines a board whose exports arrive over MQTT or HTTP
type BoardConfig struct {
	ID    string `yaml:"id" json:"id"`
	Topic string `yaml:"topic" json:"topic"`
	URL   string `yaml:"url,omitempty" json:"url,omitempty"` // Optional export URL fetched at service start
}

// RenderConfig controls board rendering
type RenderConfig struct {
	NoteRadius float64 `yaml:"noteRadius,omitempty" json:"noteRadius,omitempty"` // board units
	Padding    float64 `yaml:"padding,omitempty" json:"padding,omitempty"`       // board units
	Resolution float64 `yaml:"resolution,omitempty" json:"resolution,omitempty"` // PNG dots per board unit
}

// GetBoardByID returns the board config for the given ID
func (c *Config) GetBoardByID(id string) *BoardConfig {
	for i := range c.Boards {
		if c.Boards[i].ID == id {
			return &c.Boards[i]
		}
	}
	return nil
}

// GetBoardByTopic returns the board ID subscribed to the given topic
func (c *Config) GetBoardByTopic(topic string) (string, bool) {
	for _, b := range c.Boards {
		if b.Topic == topic {
			return b.ID, true
		}
	}
	return "", false
}
