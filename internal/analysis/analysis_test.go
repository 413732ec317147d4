package analysis

import (
	"strings"
	"testing"
)

func TestBuildAnalysisPrompt(t *testing.T) {
	meta := Meta{MeetingName: "sprint review", Topic: "release readiness", Participants: "ann, ben"}
	transcript := "we should ship on friday"

	prompt := BuildAnalysisPrompt(meta, transcript)

	for _, want := range []string{
		"DIARIZATION CONSOLIDATION",
		"MEETING ANALYSIS",
		"Meeting name: sprint review",
		"Topic: release readiness",
		"Participants: ann, ben",
		"--- TRANSCRIPT START ---",
		transcript,
		"--- TRANSCRIPT END ---",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	// The transcript goes at the end, after all instructions.
	if strings.Index(prompt, "MEETING ANALYSIS") > strings.Index(prompt, transcript) {
		t.Error("transcript placed before analysis instructions")
	}
}

func TestNewAnalyzerRequiresKey(t *testing.T) {
	if _, err := NewAnalyzer(Config{Model: "gpt-4o"}); err == nil {
		t.Error("NewAnalyzer without key should fail")
	}
	if a, err := NewAnalyzer(Config{APIKey: "sk-test", Model: "gpt-4o"}); err != nil || a == nil {
		t.Errorf("NewAnalyzer = (%v, %v), want analyzer", a, err)
	}
}
