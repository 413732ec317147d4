package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/smallpie/smallpie/internal/analysis"
	"github.com/smallpie/smallpie/internal/audio"
	"github.com/smallpie/smallpie/internal/notify"
	"github.com/smallpie/smallpie/internal/transcript"
)

// UploadPipeline processes a fully uploaded audio file: it derives segment
// windows from the probed duration instead of wall-clock time, runs each
// segment through the same extractor/transcriber pair as a live session,
// and finishes identically (analysis, persistence, notification).
type UploadPipeline struct {
	config Config

	extractor   Extractor
	transcriber Transcriber
	analyzer    analysis.Analyzer
	storage     Storage
	notifier    notify.Notifier

	probe func(ctx context.Context, path string) float64
}

func NewUploadPipeline(config Config, extractor Extractor, transcriber Transcriber,
	analyzer analysis.Analyzer, storage Storage, notifier notify.Notifier) *UploadPipeline {

	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &UploadPipeline{
		config:      config,
		extractor:   extractor,
		transcriber: transcriber,
		analyzer:    analyzer,
		storage:     storage,
		notifier:    notifier,
		probe:       audio.ProbeDuration,
	}
}

// Process runs the whole pipeline for one uploaded file. The raw file is
// removed when processing ends, success or not.
func (p *UploadPipeline) Process(ctx context.Context, sessionID, audioPath string, meta analysis.Meta, recipient string) error {
	defer func() {
		if err := os.Remove(audioPath); err != nil && !os.IsNotExist(err) {
			log.Printf("upload: cleanup of %s failed: %v", audioPath, err)
		}
	}()

	raw, err := os.ReadFile(audioPath)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	duration := p.probe(ctx, audioPath)
	if duration == 0 {
		log.Printf("upload: %s has zero readable duration, aborting session %s", audioPath, sessionID)
		return nil
	}

	store := transcript.NewStore()
	var handles sync.WaitGroup

	segSecs := float64(p.config.SegmentSeconds)
	index := 0
	for start := 0.0; start < duration; start += segSecs {
		end := start + segSecs
		if end > duration {
			end = duration
		}

		store.Expect(index)
		handles.Add(1)
		go func(index int, start, end float64) {
			defer handles.Done()

			wavPath, err := p.extractor.Extract(ctx, raw, start, &end)
			if err != nil {
				if errors.Is(err, audio.ErrUnavailable) {
					store.Add(index, "")
				} else {
					store.Add(index, transcript.ErrorSentinel(index))
				}
				return
			}
			defer os.Remove(wavPath)

			store.Add(index, p.transcriber.Transcribe(ctx, index, wavPath))
		}(index, start, end)
		index++
	}

	log.Printf("upload: session %s dispatched %d segment(s) over %.1fs", sessionID, index, duration)

	handles.Wait()
	text := store.Finalize()

	if text == "" {
		log.Printf("upload: empty transcript for session %s, skipping analysis", sessionID)
		return nil
	}

	var report string
	if p.analyzer != nil {
		report, err = p.analyzer.Analyze(ctx, meta, text)
		if err != nil {
			if _, saveErr := p.storage.SaveFailed(sessionID, meta, text, fmt.Sprintf("ANALYSIS FAILED:\n%v", err)); saveErr != nil {
				log.Printf("upload: failed to save error state for session %s: %v", sessionID, saveErr)
			}
			return fmt.Errorf("analysis: %w", err)
		}
	}

	location, err := p.storage.Save(sessionID, meta, text, report)
	if err != nil {
		return fmt.Errorf("save outputs: %w", err)
	}

	p.notifier.AnalysisReady(recipient, meta, sessionID, location)
	log.Printf("upload: session %s complete, stored at %s", sessionID, location)
	return nil
}
