package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"svckeeper/internal/config"
	"svckeeper/internal/logger"
)

func init() {
	_ = logger.Init(logger.Config{Level: "disabled"})
}

var journalTestTime = time.Date(2026, 2, 24, 10, 30, 45, 123000000, time.UTC)

func tempJournalConfig(t *testing.T, format string) config.JournalConfig {
	t.Helper()
	return config.JournalConfig{
		Enabled:    true,
		FilePath:   filepath.Join(t.TempDir(), "sub", "journal.log"),
		MaxSizeMB:  1,
		MaxBackups: 1,
		Format:     format,
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read journal: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestNew_InvalidFormat(t *testing.T) {
	_, err := New(tempJournalConfig(t, "xml"))
	if err == nil || !strings.Contains(err.Error(), "unsupported journal format") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}

func TestRecord_JSON(t *testing.T) {
	cfg := tempJournalConfig(t, "")
	j, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	j.Record(Event{Time: journalTestTime, Kind: KindDrift, Service: "wuauserv", Status: "stopped"})
	j.Record(Event{Time: journalTestTime, Kind: KindCycleError, Reason: "service manager query failed"})
	if err := j.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	lines := readLines(t, cfg.FilePath)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %v", len(lines), lines)
	}

	var ev Event
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("invalid JSON line %q: %v", lines[0], err)
	}
	if ev.Kind != KindDrift || ev.Service != "wuauserv" || ev.Status != "stopped" || !ev.Time.Equal(journalTestTime) {
		t.Errorf("unexpected event %+v", ev)
	}
	if strings.Contains(lines[1], `"service"`) {
		t.Errorf("empty service should be omitted: %s", lines[1])
	}
}

func TestRecord_Text(t *testing.T) {
	cfg := tempJournalConfig(t, config.JournalFormatText)
	j, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer j.Close()

	j.Record(Event{Time: journalTestTime, Kind: KindDisqualified, Service: "Spooler", Reason: "access denied"})

	lines := readLines(t, cfg.FilePath)
	want := `2026-02-24 10:30:45.123 disqualified Spooler reason="access denied"`
	if lines[0] != want {
		t.Errorf("line = %q, want %q", lines[0], want)
	}
}

func TestRecord_AfterCloseIsIgnored(t *testing.T) {
	cfg := tempJournalConfig(t, "")
	j, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	j.Record(Event{Time: journalTestTime, Kind: KindEnforced, Service: "Spooler"})
	j.Close()
	j.Record(Event{Time: journalTestTime, Kind: KindEnforced, Service: "BITS"})

	if lines := readLines(t, cfg.FilePath); len(lines) != 1 {
		t.Errorf("expected 1 line, got %v", lines)
	}
	if err := j.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
}

func TestFormatText_Minimal(t *testing.T) {
	got := formatText(Event{Time: journalTestTime, Kind: KindCycleError})
	if got != "2026-02-24 10:30:45.123 cycle_error" {
		t.Errorf("formatText = %q", got)
	}
}
