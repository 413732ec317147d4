package session

import (
	"context"

	"github.com/smallpie/smallpie/internal/analysis"
)

// State of a live session. Collecting, Draining and Finalizing can all fall
// into Failed; Done and Failed are terminal.
type State string

const (
	Collecting State = "collecting"
	Draining   State = "draining"
	Finalizing State = "finalizing"
	Done       State = "done"
	Failed     State = "failed"
)

// Extractor derives a normalized WAV segment for a time window from the full
// accumulated raw stream. A nil end means "to the current end of stream".
type Extractor interface {
	Extract(ctx context.Context, raw []byte, startSec float64, endSec *float64) (string, error)
}

// Transcriber runs one segment under the shared gate and returns its
// fragment text. It never fails: external errors come back as sentinel
// fragments.
type Transcriber interface {
	Transcribe(ctx context.Context, index int, wavPath string) string
}

// Storage persists session outputs.
type Storage interface {
	Save(sessionID string, meta analysis.Meta, transcript, report string) (string, error)
	SaveFailed(sessionID string, meta analysis.Meta, transcript, report string) (string, error)
}
