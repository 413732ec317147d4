package audio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrUnavailable means no usable segment exists for the requested window.
// This is an expected outcome, not a failure: zero-duration streams,
// near-zero windows and undecodable container prefixes all land here.
var ErrUnavailable = errors.New("segment unavailable")

// minWindowSeconds is the smallest window worth extracting. Anything below
// this produces no meaningful audio and is skipped outright.
const minWindowSeconds = 0.1

// wavHeaderSize is the byte size of a canonical RIFF/WAVE header. An output
// file at or below this size contains no samples.
const wavHeaderSize = 44

// Extractor turns a window of an accumulated container-format stream into a
// mono 16 kHz WAV file suitable for the transcription engine.
type Extractor struct {
	TmpDir string // empty means os.TempDir()
}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) tmpDir() string {
	if e.TmpDir != "" {
		return e.TmpDir
	}
	return os.TempDir()
}

// Extract writes raw to a temp container file and extracts the half-open
// window [startSec, endSec) as a normalized WAV. A nil endSec means "to the
// current end of stream". The raw bytes are always the full accumulated
// history: many container formats only decode correctly from the byte
// prefix, so each segment is re-derived from scratch rather than from an
// incremental delta.
//
// The returned path is owned by the caller, who must remove it when done.
func (e *Extractor) Extract(ctx context.Context, raw []byte, startSec float64, endSec *float64) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: empty stream", ErrUnavailable)
	}
	if endSec != nil && *endSec-startSec < minWindowSeconds {
		return "", fmt.Errorf("%w: window [%.2f, %.2f) below %.1fs", ErrUnavailable, startSec, *endSec, minWindowSeconds)
	}

	streamPath := filepath.Join(e.tmpDir(), fmt.Sprintf("smallpie-stream-%d.webm", time.Now().UnixNano()))
	if err := os.WriteFile(streamPath, raw, 0600); err != nil {
		return "", fmt.Errorf("write stream file: %w", err)
	}
	defer os.Remove(streamPath)

	wavPath := filepath.Join(e.tmpDir(), fmt.Sprintf("smallpie-segment-%d.wav", time.Now().UnixNano()))

	args := []string{
		"-y",
		"-i", streamPath,
		"-ss", strconv.FormatFloat(startSec, 'f', 3, 64),
	}
	if endSec != nil {
		args = append(args, "-to", strconv.FormatFloat(*endSec, 'f', 3, 64))
	}
	args = append(args,
		"-ac", "1",
		"-ar", "16000",
		wavPath,
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(wavPath)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Printf("extractor: ffmpeg failed for window starting at %.1fs: %v\nstderr: %s", startSec, err, stderr.String())
		return "", fmt.Errorf("%w: extraction failed", ErrUnavailable)
	}

	info, err := os.Stat(wavPath)
	if err != nil || info.Size() <= wavHeaderSize {
		os.Remove(wavPath)
		log.Printf("extractor: window starting at %.1fs produced empty output", startSec)
		return "", fmt.Errorf("%w: empty segment", ErrUnavailable)
	}

	return wavPath, nil
}

// ProbeDuration returns the duration of an audio file in seconds, using
// ffprobe. Failures and "N/A" durations (empty or corrupt files) report 0.
func ProbeDuration(ctx context.Context, path string) float64 {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		log.Printf("extractor: ffprobe failed for %s: %v", path, err)
		return 0
	}

	s := strings.TrimSpace(string(out))
	if s == "N/A" {
		log.Printf("extractor: ffprobe duration N/A for %s (likely empty/corrupt segment)", path)
		return 0
	}

	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		log.Printf("extractor: unparseable ffprobe duration %q for %s", s, path)
		return 0
	}
	return d
}
