// Package eventlog records every animation library start in an append-only
// JSON lines file. Each line is one Event.
package eventlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one library start.
type Event struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Library string    `json:"library"`
	Open    bool      `json:"open"` // schedule was open when the library started
}

// Store appends events to a file and keeps them in memory for listing.
// An empty path keeps events in memory only.
type Store struct {
	path string
	now  func() time.Time

	mu     sync.RWMutex
	events []Event
}

// Open loads the log at path, creating its directory if needed. Malformed
// lines are skipped; a partially written last line must not block startup.
func Open(path string) (*Store, error) {
	s := &Store{path: path, now: time.Now}
	if path == "" {
		return s, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		s.events = append(s.events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	return s, nil
}

// Path returns the backing file, or "" for an in-memory store.
func (s *Store) Path() string {
	return s.path
}

// Append assigns an ID and timestamp when missing and persists ev.
func (s *Store) Append(ev Event) (Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Time.IsZero() {
		ev.Time = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path != "" {
		line, err := json.Marshal(ev)
		if err != nil {
			return Event{}, fmt.Errorf("failed to marshal event: %w", err)
		}
		f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return Event{}, fmt.Errorf("failed to open event log: %w", err)
		}
		_, werr := f.Write(append(line, '\n'))
		cerr := f.Close()
		if err := errors.Join(werr, cerr); err != nil {
			return Event{}, fmt.Errorf("failed to append event: %w", err)
		}
	}

	s.events = append(s.events, ev)
	return ev, nil
}

// Record appends a start of library.
func (s *Store) Record(library string, open bool) error {
	_, err := s.Append(Event{Library: library, Open: open})
	return err
}

// List returns up to limit events, newest first. A limit of 0 or less
// returns all of them.
func (s *Store) List(limit int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.events)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Event, 0, n)
	for i := len(s.events) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.events[i])
	}
	return out
}

// Count returns the number of events.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
