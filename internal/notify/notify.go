package notify

import (
	"log"

	"github.com/smallpie/smallpie/internal/analysis"
)

// Notifier delivers "your meeting notes are ready" notifications.
// Best-effort: implementations log failures but never return them.
type Notifier interface {
	AnalysisReady(recipient string, meta analysis.Meta, sessionID, location string)
}

// Log is a Notifier that only writes to the process log.
type Log struct{}

func (Log) AnalysisReady(recipient string, meta analysis.Meta, sessionID, location string) {
	log.Printf("notify: meeting %s (%q) ready at %s", sessionID, meta.MeetingName, location)
}

// Nop is a Notifier that does absolutely nothing.
// Useful in unit tests or headless builds.
type Nop struct{}

func (Nop) AnalysisReady(recipient string, meta analysis.Meta, sessionID, location string) {}
