package storage

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/smallpie/smallpie/internal/analysis"
)

// Store persists meeting outputs on the local filesystem under
// baseDir/meetings/meeting_<id>_<safe name>/.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// AudioDir is where raw session audio is spooled before processing.
func (s *Store) AudioDir() string {
	return filepath.Join(s.baseDir, "audio")
}

func (s *Store) meetingsDir() string {
	return filepath.Join(s.baseDir, "meetings")
}

// EnsureDirs creates the storage layout.
func (s *Store) EnsureDirs() error {
	for _, dir := range []string{s.AudioDir(), s.meetingsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create storage dir %s: %w", dir, err)
		}
	}
	return nil
}

func safeName(name string) string {
	return strings.NewReplacer(" ", "_", ":", "_", "/", "_").Replace(name)
}

// Save writes transcript and report for a completed session. Returns the
// folder location.
func (s *Store) Save(sessionID string, meta analysis.Meta, transcript, report string) (string, error) {
	return s.save(fmt.Sprintf("meeting_%s_%s", sessionID, safeName(meta.MeetingName)), transcript, report)
}

// SaveFailed preserves whatever partial transcript exists for a failed
// session, tagged so it is distinguishable from completed meetings.
func (s *Store) SaveFailed(sessionID string, meta analysis.Meta, transcript, report string) (string, error) {
	return s.save(fmt.Sprintf("meeting_%s_FAILED_%s", sessionID, safeName(meta.MeetingName)), transcript, report)
}

func (s *Store) save(folderName, transcript, report string) (string, error) {
	folder := filepath.Join(s.meetingsDir(), folderName)
	if err := os.MkdirAll(folder, 0755); err != nil {
		return "", fmt.Errorf("create meeting folder: %w", err)
	}

	if err := os.WriteFile(filepath.Join(folder, "transcript.txt"), []byte(transcript), 0644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	if err := os.WriteFile(filepath.Join(folder, "analysis.txt"), []byte(report), 0644); err != nil {
		return "", fmt.Errorf("write analysis: %w", err)
	}

	log.Printf("storage: outputs written to %s", folder)
	return folder, nil
}

// Cleanup removes a previously saved location.
func (s *Store) Cleanup(location string) {
	if location == "" {
		return
	}
	if err := os.RemoveAll(location); err != nil {
		log.Printf("storage: cleanup of %s failed: %v", location, err)
	}
}
