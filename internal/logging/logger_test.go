package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
)

func newBufferLogger(level Level) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return &Logger{
		mu:         &sync.Mutex{},
		output:     buf,
		level:      level,
		jsonFormat: true,
		fields:     make(map[string]interface{}),
	}, buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) Entry {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry Entry
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("unmarshal entry: %v", err)
	}
	return entry
}

func TestArgsBecomeFields(t *testing.T) {
	logger, buf := newBufferLogger(INFO)

	logger.Info("signal executed", "symbol", "BTCUSDT", "confidence", 0.72)

	entry := lastEntry(t, buf)
	if entry.Message != "signal executed" {
		t.Errorf("message = %q, want untouched", entry.Message)
	}
	if entry.Fields["symbol"] != "BTCUSDT" {
		t.Errorf("symbol field = %v", entry.Fields["symbol"])
	}
	if entry.Fields["confidence"] != 0.72 {
		t.Errorf("confidence field = %v", entry.Fields["confidence"])
	}
}

func TestMessageNeverFormatted(t *testing.T) {
	logger, buf := newBufferLogger(INFO)

	// A percent sign in the message must pass through verbatim
	logger.Warn("drawdown above 5% threshold", "symbol", "ETHUSDT")

	entry := lastEntry(t, buf)
	if entry.Message != "drawdown above 5% threshold" {
		t.Errorf("message = %q", entry.Message)
	}
}

func TestDanglingArgCollected(t *testing.T) {
	logger, buf := newBufferLogger(INFO)

	logger.Info("odd args", "symbol", "BTCUSDT", "orphan")

	entry := lastEntry(t, buf)
	if entry.Fields["symbol"] != "BTCUSDT" {
		t.Errorf("symbol field = %v", entry.Fields["symbol"])
	}
	if _, ok := entry.Fields["args"]; !ok {
		t.Error("dangling arg should land under the args field")
	}
}

func TestErrorValuesStringified(t *testing.T) {
	logger, buf := newBufferLogger(INFO)

	logger.Error("balance refresh failed", "error", errors.New("timeout"))

	entry := lastEntry(t, buf)
	if entry.Fields["error"] != "timeout" {
		t.Errorf("error field = %v, want timeout", entry.Fields["error"])
	}
}

func TestLevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(WARN)

	logger.Debug("noise")
	logger.Info("noise")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below WARN, got %q", buf.String())
	}

	logger.Warn("kept")
	if buf.Len() == 0 {
		t.Error("WARN should be written")
	}
}

func TestDerivedLoggersCarryFields(t *testing.T) {
	logger, buf := newBufferLogger(INFO)

	logger.WithComponent("risk").WithField("strategy", "AGT").Info("limits loaded")

	entry := lastEntry(t, buf)
	if entry.Component != "risk" {
		t.Errorf("component = %q", entry.Component)
	}
	if entry.Fields["strategy"] != "AGT" {
		t.Errorf("strategy field = %v", entry.Fields["strategy"])
	}
}

func TestNopDiscards(t *testing.T) {
	logger := Nop()
	logger.Error("should vanish")
	if logger.output != io.Discard {
		t.Error("nop logger should write to io.Discard")
	}
}
