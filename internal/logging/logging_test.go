package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	l := New("warn", "json", &buf)
	l.Info().Msg("hidden")
	l.Warn().Str("chain", "base").Msg("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if entry["chain"] != "base" || entry["level"] != "warn" || entry["time"] == nil {
		t.Errorf("entry = %v", entry)
	}
}

func TestNew_Defaults(t *testing.T) {
	var buf bytes.Buffer
	l := New("nonsense", "console", &buf)
	l.Debug().Msg("hidden")
	l.Info().Msg("visible")
	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, "visible") {
		t.Errorf("output = %q", out)
	}
}
