package log

import (
	"bytes"
	"encoding/json"
	"errors"
	stdlog "log"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer, level Level, f Formatter) Logger {
	return NewLogger(WithLevel(level), WithFormatter(f), WithOutput(NewWriterOutput(buf)))
}

func TestJSONEntryCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, InfoLevel, &JSONFormatter{})
	l.With(Component("acquire")).Info("acquired", Str("topic", "invoices"), Int("count", 2), Err(errors.New("boom")))

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if got["msg"] != "acquired" || got["level"] != "INFO" {
		t.Fatalf("unexpected entry: %v", got)
	}
	if got["component"] != "acquire" || got["topic"] != "invoices" || got["error"] != "boom" {
		t.Fatalf("missing fields: %v", got)
	}
	if got["count"].(float64) != 2 {
		t.Fatalf("count: %v", got["count"])
	}
}

func TestLevelGate(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, WarnLevel, &TextFormatter{DisableTimestamp: true})
	l.Info("dropped")
	l.Debugf("dropped %d", 1)
	if buf.Len() != 0 {
		t.Fatalf("expected nothing below warn, got %q", buf.String())
	}
	l.Warn("kept")
	if !strings.HasPrefix(buf.String(), "WARN  kept") {
		t.Fatalf("text output: %q", buf.String())
	}

	child := l.WithComponent("child")
	child.SetLevel(DebugLevel)
	if l.GetLevel() != DebugLevel {
		t.Fatalf("children share the level with their parent")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"loud", InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseLevel(%q) err=%v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseLevel(%q)=%v want %v", tt.in, got, tt.want)
		}
	}
}

func TestApplyConfigRejectsUnknownFormat(t *testing.T) {
	if _, err := ApplyConfig(&Config{Format: "xml"}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
	l, err := ApplyConfig(&Config{Level: "error", Format: "json", Output: "null"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if l.GetLevel() != ErrorLevel {
		t.Fatalf("level not applied")
	}
}

func TestRedactionAndSampling(t *testing.T) {
	var buf bytes.Buffer
	base := newBufferLogger(&buf, InfoLevel, &TextFormatter{DisableTimestamp: true}).(*BaseLogger)
	h := base.handler.withRedactions([]string{"secret"}).withSampler(1, 2)
	if h.sampler == nil || h.redactions == nil {
		t.Fatalf("handler options not applied")
	}

	s := newSampler(1, 2)
	allowed := 0
	for i := 0; i < 5; i++ {
		if s.allow(0, "same") {
			allowed++
		}
	}
	// first one, then every second: n=0,1,3 -> 3
	if allowed != 3 {
		t.Fatalf("sampler allowed %d", allowed)
	}
}

func TestStdLogAdapter(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, DebugLevel, &TextFormatter{DisableTimestamp: true})
	std := ToStdLogger(l, WarnLevel)
	std.Print("from pebble")
	if !strings.Contains(buf.String(), "WARN  from pebble") {
		t.Fatalf("std adapter output: %q", buf.String())
	}
	_ = stdlog.Flags()
}
