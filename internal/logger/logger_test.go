package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestInitWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("warn", "json", &buf)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log := WithComponent("alerting")
	log.Info().Msg("dropped")
	log.Warn().Str("rule", "r1").Msg("kept")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %s", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal(lines[0], &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["component"] != "alerting" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["rule"] != "r1" {
		t.Errorf("rule = %v", entry["rule"])
	}
	if entry["message"] != "kept" {
		t.Errorf("message = %v", entry["message"])
	}
}

func TestInitWithWriter_InvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("bogus", "json", &buf)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("global level = %v, want info", zerolog.GlobalLevel())
	}
}

func TestWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("info", "json", &buf)

	l := WithRequestID("abcd1234")
	l.Info().Msg("req")

	if !bytes.Contains(buf.Bytes(), []byte(`"request_id":"abcd1234"`)) {
		t.Errorf("missing request_id in %s", buf.String())
	}
}
