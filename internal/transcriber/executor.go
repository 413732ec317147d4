package transcriber

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/smallpie/smallpie/internal/transcript"
)

// minUsableBytes: WAV files smaller than this hold no audible content and
// are rejected before touching the gate.
const minUsableBytes = 100

// Executor runs segment transcription under the shared gate. Failures of
// the external call never propagate: they become error-sentinel fragments so
// the pipeline keeps going.
type Executor struct {
	gate    *Gate
	adapter Adapter

	// Timeout bounds a single external call. Zero preserves the reference
	// behavior of waiting indefinitely.
	Timeout time.Duration
}

func NewExecutor(gate *Gate, adapter Adapter) *Executor {
	return &Executor{gate: gate, adapter: adapter}
}

func (e *Executor) Gate() *Gate {
	return e.gate
}

// Transcribe transcribes one segment WAV and returns its fragment text.
// Empty or missing segments return "" without consuming gate capacity.
func (e *Executor) Transcribe(ctx context.Context, index int, wavPath string) string {
	info, err := os.Stat(wavPath)
	if err != nil || info.Size() < minUsableBytes {
		log.Printf("executor: skipping empty/invalid segment file for index %d: %s", index, wavPath)
		return ""
	}

	if err := e.gate.Acquire(ctx); err != nil {
		log.Printf("executor: gate acquisition aborted for segment %d: %v", index, err)
		return transcript.ErrorSentinel(index)
	}
	defer e.gate.Release()

	callCtx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	text, err := e.adapter.Transcribe(callCtx, wavPath)
	if err != nil {
		log.Printf("executor: transcription failed for segment %d: %v", index, err)
		return transcript.ErrorSentinel(index)
	}
	return text
}
