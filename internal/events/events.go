package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventIntegrationStarted   EventType = "integration_started"
	EventConflictsDetected    EventType = "conflicts_detected"
	EventIntegrationResumed   EventType = "integration_resumed"
	EventIntegrationCompleted EventType = "integration_completed"
	EventIntegrationAborted   EventType = "integration_aborted"
	EventIntegrationFailed    EventType = "integration_failed"
	EventSessionRecovered     EventType = "session_recovered"
	EventCleanupRun           EventType = "cleanup_run"
)

// Event represents a logged event
type Event struct {
	Time          string    `json:"time"`
	Type          EventType `json:"type"`
	Session       string    `json:"session"`
	FeatureBranch string    `json:"feature_branch,omitempty"`
	BaseBranch    string    `json:"base_branch,omitempty"`
	Strategy      string    `json:"strategy,omitempty"`
	ConflictFiles []string  `json:"conflict_files,omitempty"`
	Error         string    `json:"error,omitempty"`
	Detail        string    `json:"detail,omitempty"`
}

// Logger appends events to a JSONL journal.
type Logger struct {
	eventsFile string
}

// NewLogger creates an event logger writing to the given file.
func NewLogger(path string) *Logger {
	return &Logger{eventsFile: path}
}

// Log writes an event to the events file
func (l *Logger) Log(event *Event) error {
	if event.Time == "" {
		event.Time = time.Now().UTC().Format(time.RFC3339)
	}

	if err := os.MkdirAll(filepath.Dir(l.eventsFile), 0755); err != nil {
		return fmt.Errorf("creating events directory: %w", err)
	}
	f, err := os.OpenFile(l.eventsFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening events file: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}

	return nil
}

// LogStarted logs the beginning of an integration
func (l *Logger) LogStarted(session, feature, base, strategy string) error {
	return l.Log(&Event{
		Type:          EventIntegrationStarted,
		Session:       session,
		FeatureBranch: feature,
		BaseBranch:    base,
		Strategy:      strategy,
	})
}

// LogConflicts logs an integration pausing on conflicts
func (l *Logger) LogConflicts(session string, files []string) error {
	return l.Log(&Event{
		Type:          EventConflictsDetected,
		Session:       session,
		ConflictFiles: files,
	})
}

// LogResumed logs a continue attempt after conflict resolution
func (l *Logger) LogResumed(session string) error {
	return l.Log(&Event{
		Type:    EventIntegrationResumed,
		Session: session,
	})
}

// LogCompleted logs a clean finish onto the final branch
func (l *Logger) LogCompleted(session, finalBranch, strategy string) error {
	return l.Log(&Event{
		Type:     EventIntegrationCompleted,
		Session:  session,
		Strategy: strategy,
		Detail:   finalBranch,
	})
}

// LogAborted logs a rollback to the pre-integration state
func (l *Logger) LogAborted(session string) error {
	return l.Log(&Event{
		Type:    EventIntegrationAborted,
		Session: session,
	})
}

// LogFailed logs an unrecoverable integration error
func (l *Logger) LogFailed(session, reason string) error {
	return l.Log(&Event{
		Type:    EventIntegrationFailed,
		Session: session,
		Error:   reason,
	})
}

// LogRecovered logs a session restored from an archived branch
func (l *Logger) LogRecovered(session, branch string) error {
	return l.Log(&Event{
		Type:          EventSessionRecovered,
		Session:       session,
		FeatureBranch: branch,
	})
}

// LogCleanup logs a cleanup pass
func (l *Logger) LogCleanup(detail string) error {
	return l.Log(&Event{
		Type:   EventCleanupRun,
		Detail: detail,
	})
}

// Recent returns the most recent N events
func (l *Logger) Recent(n int) ([]Event, error) {
	data, err := os.ReadFile(l.eventsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var allEvents []Event
	for _, line := range splitLines(data) {
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue // Skip invalid lines
		}
		allEvents = append(allEvents, event)
	}

	// Return last N events
	if len(allEvents) <= n {
		return allEvents, nil
	}
	return allEvents[len(allEvents)-n:], nil
}

// LastForSession finds the most recent event for a session.
func (l *Logger) LastForSession(session string) (*Event, error) {
	events, err := l.Recent(1000)
	if err != nil {
		return nil, err
	}

	// Search from most recent
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Session == session {
			return &events[i], nil
		}
	}

	return nil, fmt.Errorf("no events recorded for session '%s'", session)
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
