package board

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

// AnomalyKind classifies a non-fatal problem found while summarizing a group
type AnomalyKind string

const (
	AnomalyMissingTeam  AnomalyKind = "missing-team-label"
	AnomalyMissingTopic AnomalyKind = "missing-topic-label"
	AnomalyExcessTeam   AnomalyKind = "excess-team-labels"
	AnomalyExcessTopic  AnomalyKind = "excess-topic-labels"
	AnomalyDegenerate   AnomalyKind = "degenerate-group"
)

// Anomaly is a diagnostic attached to one group
type Anomaly struct {
	Kind    AnomalyKind `json:"kind"`
	Group   int         `json:"group"`
	Message string      `json:"message"`
	ItemIDs []string    `json:"itemIds,omitempty"`
}

func (a Anomaly) String() string {
	return fmt.Sprintf("group %d: %s: %s", a.Group, a.Kind, a.Message)
}

// Score is a group score in [0, 100]. Groups without notes carry an invalid
// score instead of a number.
type Score struct {
	Value int
	Valid bool
}

// String returns the score, or "no score"
func (s Score) String() string {
	if !s.Valid {
		return "no score"
	}
	return strconv.Itoa(s.Value)
}

// MarshalJSON encodes an invalid score as null
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

// UnmarshalJSON decodes a number or null
func (s *Score) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = Score{}
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("score: %w", err)
	}
	*s = Score{Value: v, Valid: true}
	return nil
}

// Polarity buckets of note colors
type Polarity string

const (
	PolarityPositive Polarity = "positive"
	PolarityNeutral  Polarity = "neutral"
	PolarityNegative Polarity = "negative"
)

// Bucket returns the text bucket of a note rank
func Bucket(r ColorRank) (Polarity, bool) {
	switch r {
	case RankLightGreen, RankDarkGreen:
		return PolarityPositive, true
	case RankYellow:
		return PolarityNeutral, true
	case RankRed, RankOrange:
		return PolarityNegative, true
	}
	return "", false
}

// Discussion is the assembled text of one bucket and its analysis
type Discussion struct {
	Text     string   `json:"text"`
	Phrases  []string `json:"phrases"`
	Polarity float64  `json:"polarity"`
}

// Analysis is the summary of one group
type Analysis struct {
	Group         int            `json:"group"`
	TeamName      string         `json:"teamName"`
	Topic         string         `json:"topic"`
	TeamResolved  bool           `json:"teamResolved"`
	TopicResolved bool           `json:"topicResolved"`
	Population    int            `json:"population"`
	Score         Score          `json:"score"`
	Histogram     map[string]int `json:"histogram"`
	Positive      Discussion     `json:"positive"`
	Neutral       Discussion     `json:"neutral"`
	Negative      Discussion     `json:"negative"`
	Notes         []Item         `json:"notes"`
	Labels        []Item         `json:"labels,omitempty"`
	Center        Point          `json:"center"`
	Anomalies     []Anomaly      `json:"anomalies,omitempty"`
}

// GroupID names the group "<team>-<topic>" when both labels were found and
// "Group #<n>" otherwise
func (a Analysis) GroupID() string {
	if a.TeamResolved && a.TopicResolved {
		return a.TeamName + "-" + a.Topic
	}
	return fmt.Sprintf("Group #%d", a.Group)
}

// Summarizer turns groups into analyses
type Summarizer struct {
	Analyzer      TextAnalyzer
	FallbackTeam  string
	FallbackTopic string
	Logger        *log.Logger
}

// NewSummarizer returns a summarizer with the configured fallbacks. A nil
// analyzer uses NewNLPAnalyzer; a nil logger logs to stderr.
func NewSummarizer(cfg *Config, analyzer TextAnalyzer, logger *log.Logger) *Summarizer {
	if analyzer == nil {
		analyzer = NewNLPAnalyzer(cfg.Sentiment)
	}
	if logger == nil {
		logger = log.New(os.Stderr)
	}
	return &Summarizer{
		Analyzer:      analyzer,
		FallbackTeam:  cfg.Labels.FallbackTeam,
		FallbackTopic: cfg.Labels.FallbackTopic,
		Logger:        logger,
	}
}

// SummarizeAll summarizes every group. Anomalies in one group never stop the
// others.
func (s *Summarizer) SummarizeAll(groups []Group) []Analysis {
	out := make([]Analysis, len(groups))
	for i, g := range groups {
		out[i] = s.Summarize(g)
	}
	return out
}

// Summarize produces the analysis of one group
func (s *Summarizer) Summarize(g Group) Analysis {
	a := Analysis{
		Group:     g.Index,
		Histogram: make(map[string]int, len(Ranks)),
		Notes:     g.Notes(),
		Labels:    g.Labels(),
		Center:    Center(g.Items),
	}
	for _, r := range Ranks {
		a.Histogram[r.String()] = 0
	}

	a.TeamName, a.TeamResolved = s.resolveLabel(&a, g, CategoryTeamLabel)
	a.Topic, a.TopicResolved = s.resolveLabel(&a, g, CategoryTopicLabel)

	a.Population = len(a.Notes)
	for _, n := range a.Notes {
		if r, ok := n.ColorRank(); ok {
			a.Histogram[r.String()]++
		}
	}

	score, ok := ScoreNotes(a.Notes)
	a.Score = score
	if !ok {
		s.anomaly(&a, Anomaly{
			Kind:    AnomalyDegenerate,
			Group:   g.Index,
			Message: "group has no notes, score is undefined",
			ItemIDs: g.IDs(),
		})
	}

	texts := map[Polarity][]string{}
	for _, n := range a.Notes {
		r, ok := n.ColorRank()
		if !ok {
			continue
		}
		if p, ok := Bucket(r); ok {
			texts[p] = append(texts[p], n.Text)
		}
	}
	a.Positive = s.discuss(texts[PolarityPositive])
	a.Neutral = s.discuss(texts[PolarityNeutral])
	a.Negative = s.discuss(texts[PolarityNegative])

	return a
}

// resolveLabel picks the text of the group's label of the given category
func (s *Summarizer) resolveLabel(a *Analysis, g Group, cat Category) (string, bool) {
	labels := g.Labels(cat)
	missingKind, excessKind, fallback := AnomalyMissingTeam, AnomalyExcessTeam, s.FallbackTeam
	if cat == CategoryTopicLabel {
		missingKind, excessKind, fallback = AnomalyMissingTopic, AnomalyExcessTopic, s.FallbackTopic
	}

	switch len(labels) {
	case 0:
		s.anomaly(a, Anomaly{
			Kind:    missingKind,
			Group:   g.Index,
			Message: fmt.Sprintf("no %s, using %q", cat, fallback),
		})
		return fallback, false
	case 1:
		return labels[0].Text, true
	}

	extras := labels[1:]
	ids := make([]string, len(extras))
	texts := make([]string, len(extras))
	for i, l := range extras {
		ids[i] = l.ID
		texts[i] = strconv.Quote(l.Text)
	}
	s.anomaly(a, Anomaly{
		Kind:    excessKind,
		Group:   g.Index,
		Message: fmt.Sprintf("%d %ss, using %q and discarding %s", len(labels), cat, labels[0].Text, strings.Join(texts, ", ")),
		ItemIDs: ids,
	})
	return labels[0].Text, true
}

func (s *Summarizer) anomaly(a *Analysis, an Anomaly) {
	a.Anomalies = append(a.Anomalies, an)
	if s.Logger != nil {
		s.Logger.Warn(an.Message, "group", an.Group, "kind", string(an.Kind))
	}
}

func (s *Summarizer) discuss(texts []string) Discussion {
	d := Discussion{Text: JoinTexts(texts)}
	var res TextAnalysis
	if s.Analyzer != nil {
		res = s.Analyzer.Analyze(d.Text)
	}
	d.Phrases = res.Phrases
	if d.Phrases == nil {
		d.Phrases = []string{}
	}
	d.Polarity = res.Polarity
	return d
}

// ScoreNotes returns floor(sum of ranks / population) over the notes. It
// reports false, with an invalid score, when there are no notes.
func ScoreNotes(notes []Item) (Score, bool) {
	sum, pop := 0, 0
	for _, n := range notes {
		r, ok := n.ColorRank()
		if !ok {
			continue
		}
		sum += int(r)
		pop++
	}
	if pop == 0 {
		return Score{}, false
	}
	// ranks are non-negative so integer division floors
	return Score{Value: sum / pop, Valid: true}, true
}

// JoinTexts strips trailing periods from each text, drops empty texts and
// joins the rest with ". "
func JoinTexts(texts []string) string {
	parts := make([]string, 0, len(texts))
	for _, t := range texts {
		t = strings.TrimRight(t, ".")
		if t == "" {
			continue
		}
		parts = append(parts, t)
	}
	return strings.Join(parts, ". ")
}
