package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/smallpie/smallpie/internal/analysis"
	"github.com/smallpie/smallpie/internal/audio"
	"github.com/smallpie/smallpie/internal/notify"
	"github.com/smallpie/smallpie/internal/transcript"
)

// Config for one live session.
type Config struct {
	SegmentSeconds int
	// PollInterval is how often the loop re-checks windows and the stop
	// signal. Tests shrink it; zero means the default.
	PollInterval time.Duration
}

const defaultPollInterval = 500 * time.Millisecond

// Orchestrator drives one live session: it accumulates audio increments,
// rolls segment windows over on wall-clock time, dispatches fire-and-forget
// segment work, and after stream end joins everything, assembles the
// ordered transcript and runs analysis, persistence and notification.
//
// The ingestion path never blocks on transcription: segment work runs in
// its own goroutines that report into the transcript store, and the only
// join point is the finalizing phase.
type Orchestrator struct {
	sessionID string
	meta      analysis.Meta
	recipient string
	config    Config

	extractor   Extractor
	transcriber Transcriber
	analyzer    analysis.Analyzer // nil disables analysis
	storage     Storage
	notifier    notify.Notifier

	increments chan []byte
	endOnce    sync.Once
	ended      chan struct{}

	mu    sync.RWMutex
	state State

	transcripts *transcript.Store
	handles     sync.WaitGroup

	now func() time.Time
}

func NewOrchestrator(sessionID string, meta analysis.Meta, recipient string, config Config,
	extractor Extractor, transcriber Transcriber, analyzer analysis.Analyzer,
	storage Storage, notifier notify.Notifier) *Orchestrator {

	if config.PollInterval <= 0 {
		config.PollInterval = defaultPollInterval
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}

	return &Orchestrator{
		sessionID:   sessionID,
		meta:        meta,
		recipient:   recipient,
		config:      config,
		extractor:   extractor,
		transcriber: transcriber,
		analyzer:    analyzer,
		storage:     storage,
		notifier:    notifier,
		increments:  make(chan []byte, 64),
		ended:       make(chan struct{}),
		state:       Collecting,
		transcripts: transcript.NewStore(),
		now:         time.Now,
	}
}

func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	log.Printf("orchestrator: session %s -> %s", o.sessionID, s)
}

// Ingest hands one audio increment to the session. Increments arriving
// after End are rejected.
func (o *Orchestrator) Ingest(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	// Checked on its own first: with buffer space free, a combined select
	// could pick the send even though the stream has ended.
	select {
	case <-o.ended:
		return fmt.Errorf("session %s: stream already ended", o.sessionID)
	default:
	}
	select {
	case <-o.ended:
		return fmt.Errorf("session %s: stream already ended", o.sessionID)
	case o.increments <- data:
		return nil
	}
}

// End signals that the stream is over. Safe to call more than once; only
// the first call has effect.
func (o *Orchestrator) End() {
	o.endOnce.Do(func() { close(o.ended) })
}

// Run executes the session to completion. It returns nil when the session
// reaches Done and the session's failure when it reaches Failed.
func (o *Orchestrator) Run(ctx context.Context) (err error) {
	var raw []byte

	// Terminal cleanup runs exactly once, on every exit path.
	defer func() {
		raw = nil
		log.Printf("orchestrator: session %s cleaned up", o.sessionID)
	}()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("orchestrator: session %s panicked: %v", o.sessionID, r)
			err = fmt.Errorf("session panic: %v", r)
			o.fail(err)
		}
	}()

	ticker := time.NewTicker(o.config.PollInterval)
	defer ticker.Stop()

	segmentDur := time.Duration(o.config.SegmentSeconds) * time.Second
	windowStart := o.now()
	index := 0

collecting:
	for {
		select {
		case data := <-o.increments:
			raw = append(raw, data...)

		case <-ticker.C:
			if o.now().Sub(windowStart) <= segmentDur {
				continue
			}
			// Window elapsed on schedule, whether or not bytes arrived.
			if len(raw) > 0 {
				end := float64((index + 1) * o.config.SegmentSeconds)
				o.dispatch(ctx, raw, index, float64(index*o.config.SegmentSeconds), &end)
			} else {
				log.Printf("orchestrator: window %d elapsed with no audio, skipping dispatch", index)
			}
			index++
			windowStart = o.now()

		case <-o.ended:
			break collecting

		case <-ctx.Done():
			o.fail(ctx.Err())
			return ctx.Err()
		}
	}

	o.setState(Draining)

	// Drain increments that raced with the stop signal.
	for {
		select {
		case data := <-o.increments:
			raw = append(raw, data...)
			continue
		default:
		}
		break
	}

	// Tail segment: [last window start, end of stream). May be shorter than
	// the configured duration, or empty, in which case extraction reports
	// it unavailable and nothing is transcribed.
	if len(raw) > 0 {
		o.dispatch(ctx, raw, index, float64(index*o.config.SegmentSeconds), nil)
	} else {
		log.Printf("orchestrator: no tail audio for session %s", o.sessionID)
	}

	o.setState(Finalizing)

	// Join every dispatched work item before reading the store: reading
	// early would silently drop tail content.
	o.handles.Wait()
	o.transcripts.Wait()

	text := o.transcripts.Assemble()
	if failed := o.transcripts.Failed(); len(failed) > 0 {
		log.Printf("orchestrator: session %s had failed segments: %v", o.sessionID, failed)
	}

	if err := o.finish(ctx, text); err != nil {
		o.fail(err)
		return err
	}

	o.setState(Done)
	return nil
}

// dispatch fires one segment's extraction+transcription without blocking
// the ingestion loop. The raw history is snapshotted so the worker reads a
// stable prefix while the loop keeps appending.
func (o *Orchestrator) dispatch(ctx context.Context, raw []byte, index int, startSec float64, endSec *float64) {
	snapshot := make([]byte, len(raw))
	copy(snapshot, raw)

	o.transcripts.Expect(index)
	o.handles.Add(1)

	log.Printf("orchestrator: dispatching segment %d for session %s", index, o.sessionID)

	go func() {
		defer o.handles.Done()

		wavPath, err := o.extractor.Extract(ctx, snapshot, startSec, endSec)
		if err != nil {
			if errors.Is(err, audio.ErrUnavailable) {
				log.Printf("orchestrator: segment %d unavailable: %v", index, err)
				o.transcripts.Add(index, "")
			} else {
				log.Printf("orchestrator: extraction failed for segment %d: %v", index, err)
				o.transcripts.Add(index, transcript.ErrorSentinel(index))
			}
			return
		}
		defer os.Remove(wavPath)

		o.transcripts.Add(index, o.transcriber.Transcribe(ctx, index, wavPath))
	}()
}

// finish runs analysis, persistence and notification for the assembled
// transcript. An empty transcript skips all three.
func (o *Orchestrator) finish(ctx context.Context, text string) error {
	if text == "" {
		log.Printf("orchestrator: empty transcript for session %s, skipping analysis", o.sessionID)
		return nil
	}

	if o.analyzer == nil {
		location, err := o.storage.Save(o.sessionID, o.meta, text, "")
		if err != nil {
			return fmt.Errorf("save outputs: %w", err)
		}
		o.notifier.AnalysisReady(o.recipient, o.meta, o.sessionID, location)
		return nil
	}

	report, err := o.analyzer.Analyze(ctx, o.meta, text)
	if err != nil {
		return fmt.Errorf("analysis: %w", err)
	}

	location, err := o.storage.Save(o.sessionID, o.meta, text, report)
	if err != nil {
		return fmt.Errorf("save outputs: %w", err)
	}

	o.notifier.AnalysisReady(o.recipient, o.meta, o.sessionID, location)
	log.Printf("orchestrator: session %s complete, stored at %s", o.sessionID, location)
	return nil
}

// fail moves the session to Failed, preserving whatever partial transcript
// exists, tagged so the artifact is recognizable.
func (o *Orchestrator) fail(cause error) {
	o.setState(Failed)

	text := o.transcripts.Assemble()
	if text == "" {
		return
	}
	if _, err := o.storage.SaveFailed(o.sessionID, o.meta, text, fmt.Sprintf("ANALYSIS FAILED:\n%v", cause)); err != nil {
		log.Printf("orchestrator: failed to save error state for session %s: %v", o.sessionID, err)
	}
}
