package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewWithOutputJSONInProduction(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput("production", "debug", &buf)
	if l.GetLevel() != logrus.DebugLevel {
		t.Fatalf("level = %v, want debug", l.GetLevel())
	}

	Component(l, "queue").WithField("job_id", "j1").Info("claimed")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if line["component"] != "queue" || line["job_id"] != "j1" {
		t.Fatalf("fields missing from %v", line)
	}
}

func TestNewWithOutputTextLocally(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput("", "", &buf)
	if l.GetLevel() != logrus.InfoLevel {
		t.Fatalf("level = %v, want info", l.GetLevel())
	}
	l.Debug("hidden")
	l.Info("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatal("debug line should be filtered at info level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("missing info line: %q", buf.String())
	}
}
