package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smallpie/smallpie/internal/analysis"
	"github.com/smallpie/smallpie/internal/testutil"
	"github.com/smallpie/smallpie/internal/transcript"
)

type uploadFixture struct {
	pipeline    *UploadPipeline
	extractor   *testutil.MockExtractor
	transcriber *testutil.MockTranscriber
	analyzer    *testutil.MockAnalyzer
	storage     *testutil.MockStorage
	notifier    *testutil.MockNotifier
	audioPath   string
}

func newUploadFixture(t *testing.T, durationSec float64) *uploadFixture {
	t.Helper()

	f := &uploadFixture{
		extractor:   &testutil.MockExtractor{},
		transcriber: &testutil.MockTranscriber{},
		analyzer:    &testutil.MockAnalyzer{},
		storage:     &testutil.MockStorage{},
		notifier:    &testutil.MockNotifier{},
	}
	f.pipeline = NewUploadPipeline(Config{SegmentSeconds: 60},
		f.extractor, f.transcriber, f.analyzer, f.storage, f.notifier)
	f.pipeline.probe = func(ctx context.Context, path string) float64 { return durationSec }

	f.audioPath = filepath.Join(t.TempDir(), "upload.webm")
	if err := os.WriteFile(f.audioPath, []byte("fake container bytes"), 0600); err != nil {
		t.Fatalf("write upload: %v", err)
	}
	return f
}

func testMeta() analysis.Meta {
	return analysis.Meta{MeetingName: "retro", Topic: "q2", Participants: "ann, ben"}
}

func TestUploadPipelineSegmentsByDuration(t *testing.T) {
	f := newUploadFixture(t, 150)

	if err := f.pipeline.Process(context.Background(), "up-1", f.audioPath, testMeta(), "ann@example.com"); err != nil {
		t.Fatalf("Process: %v", err)
	}

	calls := f.extractor.Calls
	if len(calls) != 3 {
		t.Fatalf("extractor calls = %d, want 3", len(calls))
	}
	type window struct{ start, end float64 }
	got := make(map[window]bool)
	for _, c := range calls {
		if c.EndSec == nil {
			t.Fatal("upload windows must have explicit ends")
		}
		got[window{c.StartSec, *c.EndSec}] = true
	}
	for _, w := range []window{{0, 60}, {60, 120}, {120, 150}} {
		if !got[w] {
			t.Errorf("missing window [%v, %v)", w.start, w.end)
		}
	}

	saved := f.storage.SavedSessions()
	if len(saved) != 1 {
		t.Fatalf("saved sessions = %d, want 1", len(saved))
	}
	want := "segment 0" + transcript.Separator + "segment 1" + transcript.Separator + "segment 2"
	if saved[0].Transcript != want {
		t.Errorf("transcript = %q, want %q", saved[0].Transcript, want)
	}
	if f.notifier.Count() != 1 {
		t.Errorf("notifications = %d, want 1", f.notifier.Count())
	}
}

func TestUploadPipelineShortFileIsSingleSegment(t *testing.T) {
	f := newUploadFixture(t, 42.5)

	if err := f.pipeline.Process(context.Background(), "up-2", f.audioPath, testMeta(), ""); err != nil {
		t.Fatalf("Process: %v", err)
	}

	calls := f.extractor.Calls
	if len(calls) != 1 {
		t.Fatalf("extractor calls = %d, want 1", len(calls))
	}
	if calls[0].StartSec != 0 || calls[0].EndSec == nil || *calls[0].EndSec != 42.5 {
		t.Errorf("window = [%v, %v), want [0, 42.5)", calls[0].StartSec, calls[0].EndSec)
	}
}

func TestUploadPipelineZeroDurationAborts(t *testing.T) {
	f := newUploadFixture(t, 0)

	if err := f.pipeline.Process(context.Background(), "up-3", f.audioPath, testMeta(), ""); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if f.extractor.CallCount() != 0 {
		t.Errorf("extractor calls = %d, want 0", f.extractor.CallCount())
	}
	if len(f.storage.SavedSessions()) != 0 {
		t.Errorf("saved sessions = %d, want 0", len(f.storage.SavedSessions()))
	}
}

func TestUploadPipelineRemovesInputFile(t *testing.T) {
	f := newUploadFixture(t, 30)

	if err := f.pipeline.Process(context.Background(), "up-4", f.audioPath, testMeta(), ""); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if _, err := os.Stat(f.audioPath); !os.IsNotExist(err) {
		t.Errorf("input file still exists after processing")
	}
}

func TestUploadPipelineLatencyDoesNotReorder(t *testing.T) {
	f := newUploadFixture(t, 180)
	f.transcriber.Latency = func(index int) time.Duration {
		return time.Duration(3-index) * 15 * time.Millisecond
	}

	if err := f.pipeline.Process(context.Background(), "up-5", f.audioPath, testMeta(), ""); err != nil {
		t.Fatalf("Process: %v", err)
	}
	saved := f.storage.SavedSessions()
	if len(saved) != 1 {
		t.Fatalf("saved sessions = %d, want 1", len(saved))
	}
	want := "segment 0" + transcript.Separator + "segment 1" + transcript.Separator + "segment 2"
	if saved[0].Transcript != want {
		t.Errorf("transcript = %q, want %q", saved[0].Transcript, want)
	}
}

func TestUploadPipelineAnalysisFailurePreservesTranscript(t *testing.T) {
	f := newUploadFixture(t, 60)
	analysisErr := errors.New("model overloaded")
	f.analyzer.Err = analysisErr

	err := f.pipeline.Process(context.Background(), "up-6", f.audioPath, testMeta(), "ann@example.com")
	if !errors.Is(err, analysisErr) {
		t.Fatalf("Process error = %v, want wrapped %v", err, analysisErr)
	}

	failed := f.storage.FailedSessions()
	if len(failed) != 1 {
		t.Fatalf("failed runs = %d, want 1", len(failed))
	}
	if failed[0].Transcript != "segment 0" {
		t.Errorf("preserved transcript = %q, want %q", failed[0].Transcript, "segment 0")
	}
	if !strings.HasPrefix(failed[0].Report, "ANALYSIS FAILED:") {
		t.Errorf("failure report = %q, want ANALYSIS FAILED prefix", failed[0].Report)
	}
	if f.notifier.Count() != 0 {
		t.Errorf("notifications = %d, want 0 after failure", f.notifier.Count())
	}
}

func TestUploadPipelineMissingFile(t *testing.T) {
	f := newUploadFixture(t, 60)

	err := f.pipeline.Process(context.Background(), "up-7", filepath.Join(t.TempDir(), "gone.webm"), testMeta(), "")
	if err == nil {
		t.Fatal("Process should fail for a missing upload")
	}
}
