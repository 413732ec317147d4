package transcript

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
)

// Separator joins fragments in the assembled transcript.
const Separator = "\n\n"

const sentinelPrefix = "[[ERROR:"

// ErrorSentinel is the fragment recorded when a segment's transcription
// fails. It keeps the failure observable while staying out of the assembled
// text (sentinels are excluded like any other skipped fragment).
func ErrorSentinel(index int) string {
	return fmt.Sprintf("%s failed to transcribe segment %d]]", sentinelPrefix, index)
}

func IsErrorSentinel(text string) bool {
	return strings.HasPrefix(text, sentinelPrefix)
}

// Store collects transcript fragments from concurrent segment workers and
// reassembles them by segment index. It knows nothing about when work
// completes, only about final ordering: completion order, which depends on
// variable transcription latency, never leaks into output order.
type Store struct {
	mu       sync.Mutex
	parts    map[int]string
	resolved map[int]bool
	pending  sync.WaitGroup
}

func NewStore() *Store {
	return &Store{
		parts:    make(map[int]string),
		resolved: make(map[int]bool),
	}
}

// Expect registers a dispatched segment index whose fragment is still
// outstanding. Finalize blocks until every expected index has been resolved
// by Add.
func (s *Store) Expect(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, known := s.resolved[index]; known {
		return
	}
	if _, known := s.parts[index]; !known {
		s.parts[index] = ""
	}
	s.pending.Add(1)
	s.resolved[index] = false
}

// Add records the fragment for a segment index. Calling it again for the
// same index overwrites the previous fragment; it never duplicates.
func (s *Store) Add(index int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.parts[index] = text
	if done, known := s.resolved[index]; known && !done {
		s.resolved[index] = true
		s.pending.Done()
	} else if !known {
		s.resolved[index] = true
	}
	log.Printf("transcript: stored fragment for segment %d (%d chars)", index, len(text))
}

// Wait blocks until all expected segments have been resolved.
func (s *Store) Wait() {
	s.pending.Wait()
}

// Assemble joins fragments in ascending index order, separated by a blank
// line. Fragments that are blank after trimming, including error sentinels,
// are skipped entirely and contribute no separator.
func (s *Store) Assemble() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	indices := make([]int, 0, len(s.parts))
	for i := range s.parts {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	kept := make([]string, 0, len(indices))
	for _, i := range indices {
		text := s.parts[i]
		if strings.TrimSpace(text) == "" || IsErrorSentinel(text) {
			continue
		}
		kept = append(kept, text)
	}
	return strings.Join(kept, Separator)
}

// Finalize waits for all outstanding fragments, then assembles the ordered
// transcript.
func (s *Store) Finalize() string {
	s.Wait()
	return s.Assemble()
}

// Failed reports the indices whose fragment is an error sentinel, in
// ascending order.
func (s *Store) Failed() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var failed []int
	for i, text := range s.parts {
		if IsErrorSentinel(text) {
			failed = append(failed, i)
		}
	}
	sort.Ints(failed)
	return failed
}

// Len reports the number of distinct segment indices recorded.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.parts)
}
