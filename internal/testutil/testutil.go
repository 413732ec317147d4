package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/smallpie/smallpie/internal/analysis"
)

// MockExtractor implements session.Extractor. By default every window
// extracts successfully to a fake path; ExtractFunc overrides.
type MockExtractor struct {
	ExtractFunc func(ctx context.Context, raw []byte, startSec float64, endSec *float64) (string, error)

	mu    sync.Mutex
	Calls []ExtractCall
}

type ExtractCall struct {
	RawLen   int
	StartSec float64
	EndSec   *float64
}

func (m *MockExtractor) Extract(ctx context.Context, raw []byte, startSec float64, endSec *float64) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, ExtractCall{RawLen: len(raw), StartSec: startSec, EndSec: endSec})
	m.mu.Unlock()

	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, raw, startSec, endSec)
	}
	return fmt.Sprintf("/nonexistent/segment-%.0f.wav", startSec), nil
}

func (m *MockExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockTranscriber implements session.Transcriber with per-index results and
// optional artificial latency, for ordering tests.
type MockTranscriber struct {
	Results map[int]string // missing index falls back to "segment <i>"
	Latency func(index int) time.Duration

	mu    sync.Mutex
	Calls []int
}

func (m *MockTranscriber) Transcribe(ctx context.Context, index int, wavPath string) string {
	m.mu.Lock()
	m.Calls = append(m.Calls, index)
	m.mu.Unlock()

	if m.Latency != nil {
		time.Sleep(m.Latency(index))
	}
	if text, ok := m.Results[index]; ok {
		return text
	}
	return fmt.Sprintf("segment %d", index)
}

func (m *MockTranscriber) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockAnalyzer implements analysis.Analyzer.
type MockAnalyzer struct {
	Report string
	Err    error

	mu         sync.Mutex
	Called     bool
	Transcript string
}

func (m *MockAnalyzer) Analyze(ctx context.Context, meta analysis.Meta, transcript string) (string, error) {
	m.mu.Lock()
	m.Called = true
	m.Transcript = transcript
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	if m.Report != "" {
		return m.Report, nil
	}
	return "mock analysis", nil
}

func (m *MockAnalyzer) WasCalled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Called
}

// MockStorage implements session.Storage in memory.
type MockStorage struct {
	SaveErr error

	mu         sync.Mutex
	Saved      []SavedSession
	FailedRuns []SavedSession
}

type SavedSession struct {
	SessionID  string
	Meta       analysis.Meta
	Transcript string
	Report     string
}

func (m *MockStorage) Save(sessionID string, meta analysis.Meta, transcript, report string) (string, error) {
	if m.SaveErr != nil {
		return "", m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saved = append(m.Saved, SavedSession{sessionID, meta, transcript, report})
	return "/mock/meetings/" + sessionID, nil
}

func (m *MockStorage) SaveFailed(sessionID string, meta analysis.Meta, transcript, report string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailedRuns = append(m.FailedRuns, SavedSession{sessionID, meta, transcript, report})
	return "/mock/meetings/FAILED_" + sessionID, nil
}

func (m *MockStorage) SavedSessions() []SavedSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SavedSession, len(m.Saved))
	copy(out, m.Saved)
	return out
}

func (m *MockStorage) FailedSessions() []SavedSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SavedSession, len(m.FailedRuns))
	copy(out, m.FailedRuns)
	return out
}

// MockNotifier records notifications.
type MockNotifier struct {
	mu            sync.Mutex
	Notifications []string
}

func (m *MockNotifier) AnalysisReady(recipient string, meta analysis.Meta, sessionID, location string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notifications = append(m.Notifications, sessionID)
}

func (m *MockNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Notifications)
}

// WaitForCondition waits for a condition to become true or fails the test.
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}
