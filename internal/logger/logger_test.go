package logger

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_JSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})
	defer log.Close()

	sub := log.WithComponent("catalog")
	sub.Info().Int64("itemId", 7).Msg("Created item")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["component"] != "catalog" {
		t.Errorf("component = %v, want catalog", entry["component"])
	}
	if entry["message"] != "Created item" {
		t.Errorf("message = %v", entry["message"])
	}
}

func TestNew_WritesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Path: dir, Output: &buf})
	log.Info().Msg("hello")
	if err := log.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, logFileName))
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !bytes.Contains(data, []byte("hello")) {
		t.Errorf("log file = %q, want it to contain hello", data)
	}
}

type recordingPublisher struct {
	types []string
}

func (p *recordingPublisher) Broadcast(msgType string, _ interface{}) error {
	p.types = append(p.types, msgType)
	return nil
}

func TestStream_KeepsRecentEntries(t *testing.T) {
	stream := NewStream(2)
	log := New(Config{Level: "info", Format: "json", Output: io.Discard, Stream: stream})

	log.Info().Msg("one")
	artworkLog := log.WithComponent("artwork")
	artworkLog.Warn().Str("url", "http://x/a.jpg").Msg("two")
	log.Info().Msg("three")

	got := stream.Recent()
	if len(got) != 2 {
		t.Fatalf("Recent() len = %d, want 2", len(got))
	}
	if got[0].Message != "two" || got[1].Message != "three" {
		t.Errorf("Recent() = %q, %q, want two, three", got[0].Message, got[1].Message)
	}
	if got[0].Level != "warn" || got[0].Component != "artwork" {
		t.Errorf("entry = %+v", got[0])
	}
	if got[0].Fields["url"] != "http://x/a.jpg" {
		t.Errorf("Fields = %v", got[0].Fields)
	}
	if got[0].Time == "" {
		t.Error("Time is empty")
	}
}

func TestStream_ForwardsToPublisher(t *testing.T) {
	stream := NewStream(0)
	log := New(Config{Level: "info", Format: "json", Output: io.Discard, Stream: stream})

	log.Info().Msg("before attach")
	pub := &recordingPublisher{}
	stream.Attach(pub)
	log.Info().Msg("after attach")

	if len(pub.types) != 1 || pub.types[0] != LogEntryEvent {
		t.Errorf("published = %v, want one %s", pub.types, LogEntryEvent)
	}
	if n := len(stream.Recent()); n != 2 {
		t.Errorf("Recent() len = %d, want 2", n)
	}
}

func TestStream_IgnoresMalformedLines(t *testing.T) {
	stream := NewStream(4)
	n, err := stream.Write([]byte("not json"))
	if err != nil || n != len("not json") {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if len(stream.Recent()) != 0 {
		t.Error("malformed line was kept")
	}
}

func TestLogger_FilePath(t *testing.T) {
	if got := New(Config{Output: io.Discard}).FilePath(); got != "" {
		t.Errorf("FilePath() = %q, want empty", got)
	}
	dir := t.TempDir()
	log := New(Config{Path: dir, Output: io.Discard})
	defer log.Close()
	if got := log.FilePath(); got != filepath.Join(dir, logFileName) {
		t.Errorf("FilePath() = %q", got)
	}
}
