// Package schedule decides whether the venue is open, from a weekly list of
// opening hours keyed by English three-letter day names.
package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	// ErrInvalidDay is returned for keys other than Mon..Sun.
	ErrInvalidDay = errors.New("schedule: invalid day")

	// ErrInvalidRange is returned for unparseable or reversed time ranges.
	ErrInvalidRange = errors.New("schedule: invalid range")
)

// Days lists the valid day keys in week order.
var Days = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

const clockLayout = "15:04"

// Range is an opening interval within one day, "HH:MM" inclusive on both ends.
type Range struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// bounds parses the range into offsets from midnight.
func (r Range) bounds() (start, end time.Duration, err error) {
	s, err := time.Parse(clockLayout, r.Start)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: start %q", ErrInvalidRange, r.Start)
	}
	e, err := time.Parse(clockLayout, r.End)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: end %q", ErrInvalidRange, r.End)
	}
	return sinceMidnight(s), sinceMidnight(e), nil
}

// Schedule maps day keys to their opening ranges. Missing days are closed.
type Schedule map[string][]Range

// Default returns the built-in opening hours.
func Default() Schedule {
	morning := Range{Start: "09:00", End: "12:00"}
	afternoon := Range{Start: "13:30", End: "17:00"}
	return Schedule{
		"Mon": {},
		"Tue": {morning},
		"Wed": {morning, afternoon},
		"Thu": {morning, afternoon},
		"Fri": {afternoon},
		"Sat": {{Start: "09:00", End: "16:00"}},
		"Sun": {},
	}
}

// IsOpen reports whether t falls inside one of the ranges for its weekday,
// in t's location. Ranges that do not parse are skipped.
func (s Schedule) IsOpen(t time.Time) bool {
	ranges := s[t.Format("Mon")]
	now := sinceMidnight(t)
	for _, r := range ranges {
		start, end, err := r.bounds()
		if err != nil {
			continue
		}
		if start <= now && now <= end {
			return true
		}
	}
	return false
}

// Validate checks day keys and ranges.
func (s Schedule) Validate() error {
	for day, ranges := range s {
		if !validDay(day) {
			return fmt.Errorf("%w: %q", ErrInvalidDay, day)
		}
		for i, r := range ranges {
			start, end, err := r.bounds()
			if err != nil {
				return fmt.Errorf("%s[%d]: %w", day, i, err)
			}
			if end < start {
				return fmt.Errorf("%s[%d]: %w: %s ends before it starts", day, i, ErrInvalidRange, r.Start)
			}
		}
	}
	return nil
}

func validDay(day string) bool {
	for _, d := range Days {
		if d == day {
			return true
		}
	}
	return false
}

func sinceMidnight(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}

// Load reads a schedule from a JSON file.
func Load(path string) (Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule: %w", err)
	}
	var s Schedule
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schedule: %w", err)
	}
	if s == nil {
		s = Schedule{}
	}
	return s, nil
}

// Save writes s to path atomically.
func Save(path string, s Schedule) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schedule: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create schedule directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write schedule: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace schedule: %w", err)
	}
	return nil
}

// Store holds the active schedule, optionally backed by a file. It is safe
// for concurrent use.
type Store struct {
	mu       sync.RWMutex
	path     string
	schedule Schedule
}

// NewStore loads the schedule at path. A missing file is created with the
// default schedule. An empty path keeps the default in memory only.
func NewStore(path string) (*Store, error) {
	st := &Store{path: path, schedule: Default()}
	if path == "" {
		return st, nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := Save(path, st.schedule); err != nil {
			return nil, err
		}
		return st, nil
	}
	if err := st.Reload(); err != nil {
		return nil, err
	}
	return st, nil
}

// Path returns the backing file, or "".
func (st *Store) Path() string { return st.path }

// Get returns a copy of the active schedule.
func (st *Store) Get() Schedule {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return clone(st.schedule)
}

// Set validates s, persists it and makes it active.
func (st *Store) Set(s Schedule) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if st.path != "" {
		if err := Save(st.path, s); err != nil {
			return err
		}
	}
	st.mu.Lock()
	st.schedule = clone(s)
	st.mu.Unlock()
	return nil
}

// Reload re-reads the backing file. On error the active schedule is kept.
func (st *Store) Reload() error {
	if st.path == "" {
		return nil
	}
	s, err := Load(st.path)
	if err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return err
	}
	st.mu.Lock()
	st.schedule = s
	st.mu.Unlock()
	return nil
}

// IsOpen reports whether the active schedule is open at t.
func (st *Store) IsOpen(t time.Time) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.schedule.IsOpen(t)
}

func clone(s Schedule) Schedule {
	out := make(Schedule, len(s))
	for day, ranges := range s {
		out[day] = append([]Range{}, ranges...)
	}
	return out
}
