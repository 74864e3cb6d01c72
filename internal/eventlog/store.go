package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// EventStore provides thread-safe, chronological storage for StageEvents.
type EventStore struct {
	mu   sync.RWMutex
	logs map[string][]StageEvent // Partitioned by source (one ATS export per source)
}

// NewEventStore creates a new empty EventStore.
func NewEventStore() *EventStore {
	return &EventStore{
		logs: make(map[string][]StageEvent),
	}
}

// Append adds events to a source's log, keeping it sorted and free of duplicates.
// It returns the number of events actually added.
func (s *EventStore) Append(sourceID string, events []StageEvent) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	logData := s.logs[sourceID]

	existing := make(map[string]bool, len(logData))
	for _, e := range logData {
		existing[e.identity()] = true
	}

	added := 0
	for _, e := range events {
		id := e.identity()
		if existing[id] {
			continue
		}
		existing[id] = true
		logData = append(logData, e)
		added++
	}
	if added == 0 {
		return 0
	}

	sort.SliceStable(logData, func(i, j int) bool {
		if logData[i].Timestamp != logData[j].Timestamp {
			return logData[i].Timestamp < logData[j].Timestamp
		}
		return logData[i].CandidateID < logData[j].CandidateID
	})

	s.logs[sourceID] = logData
	return added
}

// Path returns the JSONL file backing a source.
func Path(dir, sourceID string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.jsonl", sourceID))
}

// Load reads a source's events from its JSONL file in dir. A missing file is not an error.
func (s *EventStore) Load(dir string, sourceID string) error {
	file, err := os.Open(Path(dir, sourceID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer file.Close()

	return s.Read(sourceID, file)
}

// Read appends JSONL events from r. Invalid lines are skipped with a warning.
func (s *EventStore) Read(sourceID string, r io.Reader) error {
	var events []StageEvent
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e StageEvent
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			log.Warn().Err(err).Str("source", sourceID).Int("line", line).Msg("Skipping invalid JSON line in event log")
			continue
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading event log: %w", err)
	}

	added := s.Append(sourceID, events)
	log.Info().Str("source", sourceID).Int("read", len(events)).Int("added", added).Msg("Loaded stage events")
	return nil
}

// Save persists a source's events to dir as JSONL, replacing the file atomically.
func (s *EventStore) Save(dir string, sourceID string) error {
	s.mu.RLock()
	logData, ok := s.logs[sourceID]
	s.mu.RUnlock()

	if !ok || len(logData) == 0 {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create event log directory: %w", err)
	}

	path := Path(dir, sourceID)
	tmpPath := path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp event log: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)
	for _, e := range logData {
		if err := encoder.Encode(e); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename event log: %w", err)
	}

	log.Info().Str("source", sourceID).Int("count", len(logData)).Msg("Stage events saved")
	return nil
}

// Events returns a copy of every event of a source up to and including asOf. A zero asOf
// returns everything.
func (s *EventStore) Events(sourceID string, asOf time.Time) []StageEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []StageEvent
	cut := asOf.UnixMicro()
	for _, e := range s.logs[sourceID] {
		if !asOf.IsZero() && e.Timestamp > cut {
			break
		}
		out = append(out, e)
	}
	return out
}

// Latest returns the time of the most recent event of a source.
func (s *EventStore) Latest(sourceID string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logData := s.logs[sourceID]
	if len(logData) == 0 {
		return time.Time{}
	}
	return time.UnixMicro(logData[len(logData)-1].Timestamp).UTC()
}

// Count returns the number of events stored for a source.
func (s *EventStore) Count(sourceID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs[sourceID])
}

// Clear drops a source from memory.
func (s *EventStore) Clear(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, sourceID)
}
