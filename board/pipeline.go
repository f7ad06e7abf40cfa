package board

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Result is the outcome of analyzing one board export
type Result struct {
	Board     string     `json:"board"`
	Source    string     `json:"source,omitempty"`
	Items     []Item     `json:"items"`
	Graph     *Graph     `json:"-"`
	Groups    []Group    `json:"-"`
	Analyses  []Analysis `json:"analyses"`
	Anomalies []Anomaly  `json:"anomalies,omitempty"`
	Edges     []Edge     `json:"edges,omitempty"`
	Stats     BuildStats `json:"stats"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Pipeline runs classify, cluster, extract and summarize over board exports.
// The classifier is built once and the pipeline is safe for concurrent use.
type Pipeline struct {
	cfg        *Config
	classifier Classifier
	summarizer *Summarizer
	logger     *log.Logger
	now        func() time.Time
}

// NewPipeline validates the configuration and builds a pipeline. A nil
// logger logs to stderr.
func NewPipeline(cfg *Config, logger *log.Logger) (*Pipeline, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = log.New(os.Stderr)
	}
	classifier, err := NewColorClassifier(cfg.Colors)
	if err != nil {
		return nil, fmt.Errorf("colors: %w", err)
	}
	return &Pipeline{
		cfg:        cfg,
		classifier: classifier,
		summarizer: NewSummarizer(cfg, nil, logger),
		logger:     logger,
		now:        time.Now,
	}, nil
}

// WithAnalyzer replaces the text analyzer used for group discussions
func (p *Pipeline) WithAnalyzer(a TextAnalyzer) *Pipeline {
	s := *p.summarizer
	s.Analyzer = a
	cp := *p
	cp.summarizer = &s
	return &cp
}

// Config returns the pipeline configuration
func (p *Pipeline) Config() *Config {
	return p.cfg
}

// AnalyzeFile parses and analyzes an export file. The board name is taken
// from the file name.
func (p *Pipeline) AnalyzeFile(path string) (*Result, error) {
	rows, err := ParseExportFile(path, p.cfg.Columns)
	if err != nil {
		return nil, err
	}
	res, err := p.Run(BoardNameFromPath(path), rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	res.Source = path
	return res, nil
}

// AnalyzeReader parses and analyzes an export read from r
func (p *Pipeline) AnalyzeReader(board string, r io.Reader) (*Result, error) {
	rows, err := ParseExport(r, p.cfg.Columns)
	if err != nil {
		return nil, err
	}
	return p.Run(board, rows)
}

// Run classifies rows and analyzes the resulting items
func (p *Pipeline) Run(board string, rows []Row) (*Result, error) {
	items, err := ClassifyRows(p.classifier, rows)
	if err != nil {
		return nil, err
	}
	return p.AnalyzeItems(board, items), nil
}

// AnalyzeItems clusters and summarizes already classified items
func (p *Pipeline) AnalyzeItems(board string, items []Item) *Result {
	notes := 0
	for _, it := range items {
		if !it.IsLabel() {
			notes++
		}
	}
	if notes > LargeInputThreshold {
		p.logger.Warn("large board, pairwise clustering is quadratic",
			"board", board, "notes", notes, "threshold", LargeInputThreshold)
	}

	g, stats := BuildGraph(items)
	groups := ExtractGroups(g, items)
	analyses := p.summarizer.SummarizeAll(groups)

	res := &Result{
		Board:     board,
		Items:     items,
		Graph:     g,
		Groups:    groups,
		Analyses:  analyses,
		Edges:     g.Edges(),
		Stats:     stats,
		CreatedAt: p.now(),
	}
	for _, a := range analyses {
		res.Anomalies = append(res.Anomalies, a.Anomalies...)
	}

	p.logger.Debug("board analyzed",
		"board", board,
		"items", stats.Items,
		"groups", len(groups),
		"edges", g.EdgeCount(),
		"thresholdReached", stats.ThresholdReached)

	return res
}

// BoardNameFromPath derives a board name from an export file name
func BoardNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
