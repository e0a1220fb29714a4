package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{" warn ", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"trace", zerolog.TraceLevel, false},
		{"loud", zerolog.NoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", App: "fundusindex"}, &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Debug().Msg("hidden")
	logger.Info().Str("patient_id", "002").Msg("visible")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var event map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &event); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if event["message"] != "visible" || event["patient_id"] != "002" || event["app"] != "fundusindex" {
		t.Errorf("unexpected event: %v", event)
	}
	if _, ok := event["time"]; !ok {
		t.Error("expected a timestamp")
	}
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Format: "console"}, &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Debug().Msg("scanning")

	out := buf.String()
	if !strings.Contains(out, "scanning") || !strings.Contains(out, "DBG") {
		t.Errorf("unexpected console output: %q", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("console output should not be JSON: %q", out)
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, err := New(Options{Level: "loud"}, nil); err == nil {
		t.Error("expected error for bad level")
	}
	if _, err := New(Options{Format: "xml"}, nil); err == nil {
		t.Error("expected error for bad format")
	}
}
