// Package journal appends engine events to a rotated audit file.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"svckeeper/internal/config"
	"svckeeper/internal/logger"
)

// Kind names an engine event.
type Kind string

const (
	KindDrift        Kind = "drift"
	KindRecorded     Kind = "recorded"
	KindEnforced     Kind = "enforced"
	KindDisqualified Kind = "disqualified"
	KindCycleError   Kind = "cycle_error"
)

// Event is one journal record.
type Event struct {
	Time    time.Time `json:"time"`
	Kind    Kind      `json:"kind"`
	Service string    `json:"service,omitempty"`
	Status  string    `json:"status,omitempty"`
	Reason  string    `json:"reason,omitempty"`
}

// Recorder accepts engine events.
type Recorder interface {
	Record(ev Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(Event) {}

const textTimeLayout = "2006-01-02 15:04:05.000"

// Journal writes events through lumberjack. Write failures are logged and
// never returned to the engine.
type Journal struct {
	writer *lumberjack.Logger
	format string
	mu     sync.Mutex
	closed bool
}

// New opens the journal described by cfg.
func New(cfg config.JournalConfig) (*Journal, error) {
	log := logger.WithComponent("journal")

	format := cfg.Format
	if format == "" {
		format = config.JournalFormatJSON
	}
	if format != config.JournalFormatJSON && format != config.JournalFormatText {
		return nil, fmt.Errorf("unsupported journal format %q: must be \"json\" or \"text\"", format)
	}

	dir := filepath.Dir(cfg.FilePath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	writer := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   true,
	}

	log.Info().
		Str("file_path", cfg.FilePath).
		Str("format", format).
		Msg("Journal initialized")

	return &Journal{writer: writer, format: format}, nil
}

// Record appends ev.
func (j *Journal) Record(ev Event) {
	if err := j.write(ev); err != nil {
		log := logger.WithComponent("journal")
		log.Warn().Err(err).Str("kind", string(ev.Kind)).Msg("Failed to write journal event")
	}
}

func (j *Journal) write(ev Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return fmt.Errorf("journal is closed")
	}

	line, err := j.encode(ev)
	if err != nil {
		return err
	}
	if _, err := j.writer.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write to journal: %w", err)
	}
	return nil
}

func (j *Journal) encode(ev Event) ([]byte, error) {
	if j.format == config.JournalFormatText {
		return []byte(formatText(ev)), nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal journal event: %w", err)
	}
	return data, nil
}

// formatText renders "2006-01-02 15:04:05.000 kind service status=... reason=...".
func formatText(ev Event) string {
	var b strings.Builder
	b.WriteString(ev.Time.Format(textTimeLayout))
	b.WriteByte(' ')
	b.WriteString(string(ev.Kind))
	if ev.Service != "" {
		b.WriteByte(' ')
		b.WriteString(ev.Service)
	}
	if ev.Status != "" {
		b.WriteString(" status=")
		b.WriteString(ev.Status)
	}
	if ev.Reason != "" {
		b.WriteString(" reason=")
		b.WriteString(fmt.Sprintf("%q", ev.Reason))
	}
	return b.String()
}

// Close flushes and closes the file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true
	return j.writer.Close()
}
