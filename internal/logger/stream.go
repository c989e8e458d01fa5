package logger

import (
	"encoding/json"
	"sync"
	"sync/atomic"
)

// LogEntryEvent is the notification type carrying one log line.
const LogEntryEvent = "logs:entry"

const defaultStreamSize = 500

// Publisher sends a typed message to connected clients.
type Publisher interface {
	Broadcast(msgType string, payload interface{}) error
}

// Entry is one parsed log line.
type Entry struct {
	Time      string         `json:"time"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Stream is an io.Writer that keeps the most recent log entries and
// forwards each one to a Publisher.
type Stream struct {
	recent *ring[Entry]

	mu  sync.RWMutex
	pub Publisher

	// set while forwarding; entries the publisher itself logs are only buffered
	publishing atomic.Bool
}

// NewStream creates a stream retaining up to size entries.
func NewStream(size int) *Stream {
	if size <= 0 {
		size = defaultStreamSize
	}
	return &Stream{recent: newRing[Entry](size)}
}

// Attach sets the publisher. The stream buffers without one.
func (s *Stream) Attach(pub Publisher) {
	s.mu.Lock()
	s.pub = pub
	s.mu.Unlock()
}

// Write receives one zerolog JSON line. Lines that do not parse are dropped.
func (s *Stream) Write(p []byte) (int, error) {
	entry, ok := parseEntry(p)
	if !ok {
		return len(p), nil
	}
	s.recent.push(entry)

	s.mu.RLock()
	pub := s.pub
	s.mu.RUnlock()
	if pub != nil && s.publishing.CompareAndSwap(false, true) {
		_ = pub.Broadcast(LogEntryEvent, entry)
		s.publishing.Store(false)
	}
	return len(p), nil
}

// Recent returns the retained entries oldest first.
func (s *Stream) Recent() []Entry {
	return s.recent.snapshot()
}

func parseEntry(data []byte) (Entry, bool) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Entry{}, false
	}

	var e Entry
	e.Time = takeString(raw, "time")
	e.Level = takeString(raw, "level")
	e.Component = takeString(raw, "component")
	e.Message = takeString(raw, "message")
	if len(raw) > 0 {
		e.Fields = raw
	}
	return e, true
}

func takeString(m map[string]any, key string) string {
	v, ok := m[key].(string)
	if ok {
		delete(m, key)
	}
	return v
}
