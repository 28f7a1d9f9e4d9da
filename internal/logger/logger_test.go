package logger

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger_ValidInputs(t *testing.T) {
	cases := []struct {
		level  string
		format string
	}{
		{"info", "json"},
		{"debug", "text"},
		{"warn", "json"},
		{"error", "text"},
		{"INFO", "JSON"},
	}
	for _, c := range cases {
		l, err := New(c.level, c.format, io.Discard)
		if err != nil {
			t.Errorf("expected no error for level=%q format=%q, got %v", c.level, c.format, err)
		}
		if l == nil {
			t.Errorf("expected logger for level=%q format=%q, got nil", c.level, c.format)
		}
	}
}

func TestNewLogger_EmptyStrings(t *testing.T) {
	_, err := New("", "json", io.Discard)
	if err == nil {
		t.Error("expected error for empty logLevel, got nil")
	}
	_, err = New("info", "", io.Discard)
	if err == nil {
		t.Error("expected error for empty logFormat, got nil")
	}
	_, err = New("", "", io.Discard)
	if err == nil {
		t.Error("expected error for both logLevel and logFormat empty, got nil")
	}
}

func TestNewLogger_InvalidValues(t *testing.T) {
	_, err := New("foo", "json", io.Discard)
	if err == nil {
		t.Error("expected error for invalid logLevel, got nil")
	}
	_, err = New("info", "bar", io.Discard)
	if err == nil {
		t.Error("expected error for invalid logFormat, got nil")
	}
}

func TestNewLogger_JSONTimestampKey(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("info", "json", &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l.Info("Entering state", "state", "LOCATE_RUN")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Errorf("expected timestamp key, got %v", entry)
	}
	if _, ok := entry["time"]; ok {
		t.Errorf("time key should have been renamed, got %v", entry)
	}
	if entry["state"] != "LOCATE_RUN" {
		t.Errorf("expected state attribute, got %v", entry["state"])
	}
}

func TestNewLogger_TextFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("warn", "text", &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l.Info("hidden")
	l.Warn("Skipping release with unparseable tag", "tag", "nightly")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "Skipping release with unparseable tag") || !strings.Contains(out, "nightly") {
		t.Errorf("expected warning with attribute, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		" Warn": slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("trace"); err == nil {
		t.Error("expected error for unknown level")
	}
}
