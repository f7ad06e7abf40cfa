package board

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnmappedColor is returned when an export uses a color code that has no
// category in the configured color map.
var ErrUnmappedColor = errors.New("unmapped color code")

// Classification is the category (and, for notes, the rank) a color maps to
type Classification struct {
	Category Category
	Rank     ColorRank
}

// categoryNames maps the category names accepted in the color map
var categoryNames = map[string]Classification{
	"DarkGreen":  {Category: CategoryNote, Rank: RankDarkGreen},
	"LightGreen": {Category: CategoryNote, Rank: RankLightGreen},
	"Yellow":     {Category: CategoryNote, Rank: RankYellow},
	"Orange":     {Category: CategoryNote, Rank: RankOrange},
	"Red":        {Category: CategoryNote, Rank: RankRed},
	"TeamLabel":  {Category: CategoryTeamLabel, Rank: RankNone},
	"TopicLabel": {Category: CategoryTopicLabel, Rank: RankNone},
}

// CategoryNames returns the accepted category names in sorted order
func CategoryNames() []string {
	names := make([]string, 0, len(categoryNames))
	for name := range categoryNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Classifier maps a raw color code to a classification.
type Classifier interface {
	Classify(color string) (Classification, error)
}

// ColorClassifier is a Classifier backed by a fixed color map. It is built
// once at startup and is safe for concurrent use.
type ColorClassifier struct {
	mapping map[string]Classification
}

// NewColorClassifier builds a classifier from a color code -> category name
// map. The map must be non-empty, use known category names, and be injective.
func NewColorClassifier(colors map[string]string) (*ColorClassifier, error) {
	if len(colors) == 0 {
		return nil, fmt.Errorf("color map is empty")
	}

	mapping := make(map[string]Classification, len(colors))
	usedBy := make(map[string]string, len(colors))

	// Sorted iteration keeps error messages stable
	codes := make([]string, 0, len(colors))
	for code := range colors {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		name := strings.TrimSpace(colors[code])
		class, ok := categoryNames[name]
		if !ok {
			return nil, fmt.Errorf("color %s: unknown category %q (want one of %s)",
				code, name, strings.Join(CategoryNames(), ", "))
		}

		key := NormalizeColor(code)
		if key == "" {
			return nil, fmt.Errorf("color map contains an empty color code")
		}
		if _, dup := mapping[key]; dup {
			return nil, fmt.Errorf("color %s is listed more than once", key)
		}
		if prev, dup := usedBy[name]; dup {
			return nil, fmt.Errorf("category %s is mapped from both %s and %s", name, prev, key)
		}

		mapping[key] = class
		usedBy[name] = key
	}

	return &ColorClassifier{mapping: mapping}, nil
}

// Classify returns the classification of a raw color code
func (c *ColorClassifier) Classify(color string) (Classification, error) {
	key := NormalizeColor(color)
	class, ok := c.mapping[key]
	if !ok {
		return Classification{}, fmt.Errorf("%w: %q", ErrUnmappedColor, color)
	}
	return class, nil
}

// NormalizeColor canonicalizes a color code: whitespace is trimmed, hex
// digits are upper-cased and a bare six digit hex code gains a '#' prefix.
func NormalizeColor(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if len(s) == 6 && isHex(s) {
		return "#" + s
	}
	return s
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// ClassifyRows converts export rows into items. Every unmapped color code is
// collected so that one error reports all of them; no items are returned in
// that case.
func ClassifyRows(c Classifier, rows []Row) ([]Item, error) {
	items := make([]Item, 0, len(rows))
	unmapped := make(map[string]bool)

	for _, row := range rows {
		class, err := c.Classify(row.Color)
		if err != nil {
			if !errors.Is(err, ErrUnmappedColor) {
				return nil, fmt.Errorf("row %s: %w", row.ID, err)
			}
			unmapped[row.Color] = true
			continue
		}
		items = append(items, Item{
			ID:       row.ID,
			Text:     row.Text,
			Category: class.Category,
			Rank:     class.Rank,
			Color:    NormalizeColor(row.Color),
			Position: Point{X: row.X, Y: row.Y},
		})
	}

	if len(unmapped) > 0 {
		codes := make([]string, 0, len(unmapped))
		for code := range unmapped {
			codes = append(codes, fmt.Sprintf("%q", code))
		}
		sort.Strings(codes)
		return nil, fmt.Errorf("%w: %s", ErrUnmappedColor, strings.Join(codes, ", "))
	}

	return items, nil
}
