package analysis

import (
	"context"
	"fmt"
)

// Meta describes the meeting a transcript belongs to.
type Meta struct {
	MeetingName  string
	Topic        string
	Participants string
}

// Analyzer turns a finished transcript into an analysis report. Callers
// guard against empty transcripts; an analyzer is only ever invoked with
// non-empty text.
type Analyzer interface {
	Analyze(ctx context.Context, meta Meta, transcript string) (string, error)
}

// Config holds analyzer configuration.
type Config struct {
	APIKey string
	Model  string
}

// NewAnalyzer creates the OpenAI-backed analyzer.
func NewAnalyzer(cfg Config) (Analyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key required")
	}
	return NewOpenAIAnalyzer(cfg), nil
}
