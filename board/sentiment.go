package board

import (
	"strings"
	"sync"

	"github.com/jdkato/prose/v2"
	"github.com/jonreiter/govader"
)

// TextAnalysis is what a TextAnalyzer extracts from one block of text
type TextAnalysis struct {
	Phrases  []string `json:"phrases"`
	Polarity float64  `json:"polarity"` // -1 (negative) to 1 (positive)
}

// TextAnalyzer extracts key phrases and a polarity from free text.
// Empty input must yield no phrases and zero polarity.
type TextAnalyzer interface {
	Analyze(text string) TextAnalysis
}

// TextAnalyzerFunc adapts a function to the TextAnalyzer interface
type TextAnalyzerFunc func(text string) TextAnalysis

// Analyze calls f(text)
func (f TextAnalyzerFunc) Analyze(text string) TextAnalysis {
	return f(text)
}

// Valence given to configured words, on the VADER -4..4 scale
const configuredValence = 2.0

var (
	taggerOnce  sync.Once
	taggerModel *prose.Model
)

// sharedModel loads the part-of-speech model once. The tagger only reads it.
func sharedModel() *prose.Model {
	taggerOnce.Do(func() {
		taggerModel = prose.ModelFromData("stickymesh")
	})
	return taggerModel
}

// NLPAnalyzer scores polarity with VADER and extracts noun phrases from
// part-of-speech tags.
type NLPAnalyzer struct {
	vader *govader.SentimentIntensityAnalyzer
	model *prose.Model
}

// NewNLPAnalyzer returns an analyzer whose lexicon is extended with the
// configured positive and negative words.
func NewNLPAnalyzer(cfg SentimentConfig) *NLPAnalyzer {
	sia := govader.NewSentimentIntensityAnalyzer()
	for _, w := range cfg.Positive {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			sia.Lexicon[w] = configuredValence
		}
	}
	for _, w := range cfg.Negative {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			sia.Lexicon[w] = -configuredValence
		}
	}
	return &NLPAnalyzer{vader: sia, model: sharedModel()}
}

// Analyze implements TextAnalyzer
func (a *NLPAnalyzer) Analyze(text string) TextAnalysis {
	res := TextAnalysis{Phrases: []string{}}
	if strings.TrimSpace(text) == "" {
		return res
	}

	res.Polarity = a.vader.PolarityScores(text).Compound

	doc, err := prose.NewDocument(text,
		prose.UsingModel(a.model),
		prose.WithSegmentation(false),
		prose.WithExtraction(false))
	if err != nil {
		return res
	}
	res.Phrases = nounPhrases(doc.Tokens())
	return res
}

// chunk is a run of tokens carrying one merged tag
type chunk struct {
	tag  string
	text string
}

// merge rules for adjacent chunks; NNI marks an intermediate noun phrase
var chunkRules = map[[2]string]string{
	{"NNP", "NNP"}: "NNP",
	{"NN", "NN"}:   "NNI",
	{"NNI", "NN"}:  "NNI",
	{"JJ", "JJ"}:   "JJ",
	{"JJ", "NN"}:   "NNI",
}

func normalizeTag(tag string) string {
	switch tag {
	case "NNS":
		return "NN"
	case "NNPS":
		return "NNP"
	}
	return tag
}

// nounPhrases merges adjacent tagged tokens by chunkRules until nothing
// merges, then returns the lowercased NNP and NNI chunks de-duplicated in
// first-seen order. Single common nouns are not phrases.
func nounPhrases(tokens []prose.Token) []string {
	chunks := make([]chunk, 0, len(tokens))
	for _, t := range tokens {
		chunks = append(chunks, chunk{tag: normalizeTag(t.Tag), text: t.Text})
	}

	for merged := true; merged; {
		merged = false
		for i := 0; i+1 < len(chunks); i++ {
			tag, ok := chunkRules[[2]string{chunks[i].tag, chunks[i+1].tag}]
			if !ok {
				continue
			}
			chunks[i] = chunk{tag: tag, text: chunks[i].text + " " + chunks[i+1].text}
			chunks = append(chunks[:i+1], chunks[i+2:]...)
			merged = true
			break
		}
	}

	phrases := []string{}
	seen := make(map[string]bool)
	for _, c := range chunks {
		if c.tag != "NNP" && c.tag != "NNI" {
			continue
		}
		p := strings.ToLower(c.text)
		if !seen[p] {
			seen[p] = true
			phrases = append(phrases, p)
		}
	}
	return phrases
}
