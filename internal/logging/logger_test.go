package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func testLogger(buf *bytes.Buffer, level string, jsonFormat bool) *Logger {
	l := New(&Config{Level: level, Component: "test", JSONFormat: jsonFormat})
	l.output = buf
	return l
}

func lastEntry(t *testing.T, buf *bytes.Buffer) LogEntry {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry LogEntry
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	return entry
}

func TestKeyValueArgsBecomeFields(t *testing.T) {
	var buf bytes.Buffer
	l := testLogger(&buf, "INFO", true)

	l.Info("Watchlist updated", "preset", "Default", "selected", 8)

	entry := lastEntry(t, &buf)
	if entry.Message != "Watchlist updated" {
		t.Errorf("message = %q, want it verbatim", entry.Message)
	}
	if entry.Fields["preset"] != "Default" {
		t.Errorf("preset field = %v, want Default", entry.Fields["preset"])
	}
	if entry.Fields["selected"] != float64(8) {
		t.Errorf("selected field = %v, want 8", entry.Fields["selected"])
	}
}

func TestMessageWithPercentIsNotFormatted(t *testing.T) {
	var buf bytes.Buffer
	l := testLogger(&buf, "INFO", true)

	l.Info("Dropped 5% of ticks", "symbol", "AAPL")

	if got := lastEntry(t, &buf).Message; got != "Dropped 5% of ticks" {
		t.Errorf("message = %q, percent signs must pass through untouched", got)
	}
}

func TestErrorValuesSerializeAsStrings(t *testing.T) {
	var buf bytes.Buffer
	l := testLogger(&buf, "INFO", true)

	l.Error("Persist failed", "cause", errors.New("connection refused"))

	if got := lastEntry(t, &buf).Fields["cause"]; got != "connection refused" {
		t.Errorf("cause field = %v, want the error message", got)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := testLogger(&buf, "WARN", true)

	l.Debug("dropped")
	l.Info("dropped")
	l.Warn("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if entry := lastEntry(t, &buf); entry.Level != "WARN" {
		t.Errorf("level = %s, want WARN", entry.Level)
	}
}

func TestWithScopingDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	l := testLogger(&buf, "INFO", true)

	scoped := l.WithField("symbol", "AAPL").WithError(errors.New("boom"))
	scoped.Info("scoped entry")
	entry := lastEntry(t, &buf)
	if entry.Fields["symbol"] != "AAPL" || entry.Fields["error"] != "boom" {
		t.Errorf("scoped fields missing: %v", entry.Fields)
	}

	buf.Reset()
	l.Info("base entry")
	if entry := lastEntry(t, &buf); len(entry.Fields) != 0 {
		t.Errorf("base logger picked up scoped fields: %v", entry.Fields)
	}
}

func TestTextFormatFieldsAreSorted(t *testing.T) {
	var buf bytes.Buffer
	l := testLogger(&buf, "INFO", false)

	l.Info("entry", "zeta", 1, "alpha", 2)

	line := strings.TrimSpace(buf.String())
	if strings.Index(line, "alpha=2") > strings.Index(line, "zeta=1") {
		t.Errorf("text fields not in sorted order: %s", line)
	}
}
