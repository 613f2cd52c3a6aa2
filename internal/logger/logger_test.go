package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// blockingWriter simulates a console whose stdout is stuck (Quick Edit mode).
type blockingWriter struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	blockCh chan struct{}
}

func newBlockingWriter() *blockingWriter {
	return &blockingWriter{blockCh: make(chan struct{})}
}

func (w *blockingWriter) Write(p []byte) (int, error) {
	<-w.blockCh
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *blockingWriter) Unblock() { close(w.blockCh) }

func (w *blockingWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func TestAsyncWriter_DoesNotBlockCaller(t *testing.T) {
	bw := newBlockingWriter()
	aw := newAsyncWriter(bw, 100)

	done := make(chan struct{})
	go func() {
		aw.Write([]byte("hello"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Write blocked on a stuck writer")
	}

	bw.Unblock()
	aw.Close()
	if bw.String() != "hello" {
		t.Errorf("expected %q, got %q", "hello", bw.String())
	}
}

func TestAsyncWriter_DropsWhenBufferFull(t *testing.T) {
	bw := newBlockingWriter()
	aw := newAsyncWriter(bw, 2)
	defer func() {
		bw.Unblock()
		aw.Close()
	}()

	for i := 0; i < 4; i++ {
		aw.Write([]byte("msg"))
	}

	done := make(chan struct{})
	go func() {
		aw.Write([]byte("overflow"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Write blocked on full buffer")
	}
}

func TestAsyncWriter_CloseDrainsAndDiscardsLater(t *testing.T) {
	var buf bytes.Buffer
	aw := newAsyncWriter(&buf, 100)

	aw.Write([]byte("a"))
	aw.Write([]byte("b"))
	aw.Close()

	if buf.String() != "ab" {
		t.Errorf("expected %q, got %q", "ab", buf.String())
	}

	n, err := aw.Write([]byte("late"))
	if err != nil || n != 4 {
		t.Errorf("Write after Close = (%d, %v), want (4, nil)", n, err)
	}
	if buf.String() != "ab" {
		t.Errorf("write after Close reached the writer: %q", buf.String())
	}
}

func TestInit_TextFormatWritesFixedColumns(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "keeper.log")
	t.Cleanup(Close)

	if err := Init(Config{Level: "info", FilePath: logFile, Format: FormatText}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	l := WithComponent("engine")
	l.Info().Str("service", "Spooler").Msg("Stopped service")
	Close()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "[INF] [engine      ] Stopped service service=Spooler") {
		t.Errorf("unexpected log line: %q", line)
	}
}

func TestInit_JSONFormat(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "keeper.log")
	t.Cleanup(Close)

	if err := Init(Config{Level: "info", FilePath: logFile, Format: FormatJSON}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	Warn().Msg("json line")
	Close()

	data, _ := os.ReadFile(logFile)
	if !strings.Contains(string(data), `"message":"json line"`) {
		t.Errorf("expected JSON output, got %q", string(data))
	}
}

func TestInit_ReInitKeepsAppending(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "keeper.log")
	t.Cleanup(Close)

	cfg := Config{Level: "info", FilePath: logFile, Format: FormatJSON}
	if err := Init(cfg); err != nil {
		t.Fatalf("first Init failed: %v", err)
	}
	Info().Msg("first message")

	// hot reload
	if err := Init(cfg); err != nil {
		t.Fatalf("second Init failed: %v", err)
	}
	Info().Msg("second message")
	Close()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	for _, want := range []string{"first message", "second message"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log file missing %q", want)
		}
	}
}

func TestInit_LevelFilters(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "keeper.log")
	t.Cleanup(func() {
		Close()
		_ = Init(Config{Level: "disabled"})
	})

	if err := Init(Config{Level: "warn", FilePath: logFile, Format: FormatJSON}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	Info().Msg("hidden")
	Error().Msg("shown")
	Close()

	data, _ := os.ReadFile(logFile)
	if strings.Contains(string(data), "hidden") {
		t.Error("info line written at warn level")
	}
	if !strings.Contains(string(data), "shown") {
		t.Error("error line missing")
	}
}
