package transcriber

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smallpie/smallpie/internal/transcript"
)

func writeTestWAV(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "segment.wav")
	if err := os.WriteFile(path, make([]byte, size), 0600); err != nil {
		t.Fatalf("write test wav: %v", err)
	}
	return path
}

func TestExecutorSkipsNearEmptySegments(t *testing.T) {
	calls := 0
	adapter := &mockAdapter{TranscribeFunc: func(ctx context.Context, wavPath string) (string, error) {
		calls++
		return "should not happen", nil
	}}
	e := NewExecutor(NewGate(1), adapter)

	tests := []struct {
		name string
		path string
	}{
		{"missing file", "/nonexistent/segment.wav"},
		{"below minimum size", writeTestWAV(t, minUsableBytes-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Transcribe(context.Background(), 0, tt.path); got != "" {
				t.Errorf("Transcribe() = %q, want empty", got)
			}
		})
	}

	if calls != 0 {
		t.Errorf("adapter called %d times for unusable segments", calls)
	}
}

func TestExecutorConvertsFailureToSentinel(t *testing.T) {
	adapter := &mockAdapter{TranscribeFunc: func(ctx context.Context, wavPath string) (string, error) {
		return "", errors.New("engine crashed")
	}}
	e := NewExecutor(NewGate(1), adapter)

	got := e.Transcribe(context.Background(), 7, writeTestWAV(t, 200))
	if !transcript.IsErrorSentinel(got) {
		t.Errorf("Transcribe() = %q, want error sentinel", got)
	}
}

func TestExecutorReleasesGateAfterFailure(t *testing.T) {
	adapter := &mockAdapter{TranscribeFunc: func(ctx context.Context, wavPath string) (string, error) {
		return "", errors.New("boom")
	}}
	gate := NewGate(1)
	e := NewExecutor(gate, adapter)

	wav := writeTestWAV(t, 200)
	e.Transcribe(context.Background(), 0, wav)

	// The slot must be free again.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := gate.Acquire(ctx); err != nil {
		t.Fatalf("gate still held after failed transcription: %v", err)
	}
}

func TestExecutorSerializesCallsUnderCapacityOne(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32

	adapter := &mockAdapter{TranscribeFunc: func(ctx context.Context, wavPath string) (string, error) {
		cur := inFlight.Add(1)
		for {
			seen := maxInFlight.Load()
			if cur <= seen || maxInFlight.CompareAndSwap(seen, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return "ok", nil
	}}
	e := NewExecutor(NewGate(1), adapter)

	wav := writeTestWAV(t, 200)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e.Transcribe(context.Background(), i, wav)
		}(i)
	}
	wg.Wait()

	if got := maxInFlight.Load(); got != 1 {
		t.Errorf("max concurrent transcription calls = %d, want 1", got)
	}
}

func TestExecutorTimeoutProducesSentinel(t *testing.T) {
	adapter := &mockAdapter{TranscribeFunc: func(ctx context.Context, wavPath string) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
			return "too late", nil
		}
	}}
	e := NewExecutor(NewGate(1), adapter)
	e.Timeout = 20 * time.Millisecond

	got := e.Transcribe(context.Background(), 3, writeTestWAV(t, 200))
	if !transcript.IsErrorSentinel(got) {
		t.Errorf("Transcribe() with hung engine = %q, want error sentinel", got)
	}
}
