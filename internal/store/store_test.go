package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"svckeeper/internal/logger"
)

func init() {
	_ = logger.Init(logger.Config{Level: "disabled"})
}

func newTestStore(t *testing.T, content string) *TargetStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conf", "services.txt")
	if content != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return New(path)
}

func readRaw(t *testing.T, s *TargetStore) string {
	t.Helper()
	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("failed to read %s: %v", s.Path(), err)
	}
	return string(data)
}

func mustReadAll(t *testing.T, s *TargetStore) []string {
	t.Helper()
	names, err := s.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	return names
}

func TestReadAll_MissingFileIsEmpty(t *testing.T) {
	s := newTestStore(t, "")
	if names := mustReadAll(t, s); len(names) != 0 {
		t.Errorf("expected empty list, got %v", names)
	}
}

func TestReadAll_TrimsAndFilters(t *testing.T) {
	s := newTestStore(t, "  Spooler \r\n\r\n\tSSDPSRV\nspooler\n\n   \nwuauserv")
	got := strings.Join(mustReadAll(t, s), ",")
	if got != "Spooler,SSDPSRV,wuauserv" {
		t.Errorf("ReadAll = %q", got)
	}
}

func TestAppendMissing_Idempotent(t *testing.T) {
	s := newTestStore(t, "Spooler\n")

	added, err := s.AppendMissing([]string{"SSDPSRV", "wuauserv"})
	if err != nil {
		t.Fatalf("AppendMissing failed: %v", err)
	}
	if strings.Join(added, ",") != "SSDPSRV,wuauserv" {
		t.Errorf("added = %v", added)
	}
	first := readRaw(t, s)

	added, err = s.AppendMissing([]string{"SSDPSRV", "wuauserv"})
	if err != nil {
		t.Fatalf("second AppendMissing failed: %v", err)
	}
	if len(added) != 0 {
		t.Errorf("second call added %v", added)
	}
	if readRaw(t, s) != first {
		t.Errorf("file changed on second call: %q -> %q", first, readRaw(t, s))
	}
	if first != "Spooler\nSSDPSRV\nwuauserv\n" {
		t.Errorf("unexpected content %q", first)
	}
}

func TestAppendMissing_CaseInsensitiveNoOp(t *testing.T) {
	s := newTestStore(t, "Spooler\n")

	added, err := s.AppendMissing([]string{"spooler"})
	if err != nil {
		t.Fatalf("AppendMissing failed: %v", err)
	}
	if len(added) != 0 {
		t.Errorf("expected no-op, added %v", added)
	}
	if readRaw(t, s) != "Spooler\n" {
		t.Errorf("file changed: %q", readRaw(t, s))
	}
}

func TestAppendMissing_TerminatesLastLine(t *testing.T) {
	s := newTestStore(t, "Spooler")

	if _, err := s.AppendMissing([]string{"SSDPSRV"}); err != nil {
		t.Fatalf("AppendMissing failed: %v", err)
	}
	if got := readRaw(t, s); got != "Spooler\nSSDPSRV\n" {
		t.Errorf("content = %q", got)
	}
}

func TestAppendMissing_DedupesCandidates(t *testing.T) {
	s := newTestStore(t, "")

	added, err := s.AppendMissing([]string{"wuauserv", "WUAUSERV", " ", "BITS"})
	if err != nil {
		t.Fatalf("AppendMissing failed: %v", err)
	}
	if strings.Join(added, ",") != "wuauserv,BITS" {
		t.Errorf("added = %v", added)
	}
}

func TestRemoveOne_CaseInsensitive(t *testing.T) {
	s := newTestStore(t, "Spooler\nSSDPSRV\nspooler\n")

	removed, err := s.RemoveOne("SPOOLER")
	if err != nil {
		t.Fatalf("RemoveOne failed: %v", err)
	}
	if !removed {
		t.Error("expected removal")
	}
	if got := readRaw(t, s); got != "SSDPSRV\n" {
		t.Errorf("content = %q", got)
	}
}

func TestRemoveOne_OversizedLineDoesNotBlock(t *testing.T) {
	long := strings.Repeat("x", 70000)
	s := newTestStore(t, "Spooler\n"+long+"\nSSDPSRV\n")

	got := mustReadAll(t, s)
	if len(got) != 3 || got[0] != "Spooler" || got[1] != long || got[2] != "SSDPSRV" {
		t.Fatalf("ReadAll returned %d entries", len(got))
	}

	removed, err := s.RemoveOne("spooler")
	if err != nil {
		t.Fatalf("RemoveOne failed: %v", err)
	}
	if !removed {
		t.Error("expected removal")
	}
	if got := readRaw(t, s); got != long+"\nSSDPSRV\n" {
		t.Errorf("content has %d bytes, want the long line and SSDPSRV", len(got))
	}
}

func TestRemoveOne_AbsentIsNoOp(t *testing.T) {
	s := newTestStore(t, "Spooler\n\n")

	removed, err := s.RemoveOne("BITS")
	if err != nil {
		t.Fatalf("RemoveOne failed: %v", err)
	}
	if removed {
		t.Error("expected no removal")
	}
	if got := readRaw(t, s); got != "Spooler\n\n" {
		t.Errorf("file should be untouched, got %q", got)
	}
}

func TestRemoveOne_LastEntryLeavesEmptyFile(t *testing.T) {
	s := newTestStore(t, "Spooler\n")

	if _, err := s.RemoveOne("Spooler"); err != nil {
		t.Fatalf("RemoveOne failed: %v", err)
	}
	if got := readRaw(t, s); got != "" {
		t.Errorf("content = %q", got)
	}
	if names := mustReadAll(t, s); len(names) != 0 {
		t.Errorf("ReadAll = %v", names)
	}
}

func TestInitializeIfAbsent_CreatesWithDefaults(t *testing.T) {
	s := newTestStore(t, "")

	if err := s.InitializeIfAbsent([]string{"Spooler", "SSDPSRV"}); err != nil {
		t.Fatalf("InitializeIfAbsent failed: %v", err)
	}
	got := mustReadAll(t, s)
	if strings.Join(got, ",") != "Spooler,SSDPSRV" {
		t.Errorf("store = %v, want [Spooler SSDPSRV]", got)
	}
}

func TestInitializeIfAbsent_MergesIntoExisting(t *testing.T) {
	s := newTestStore(t, "BITS\nspooler\n")

	if err := s.InitializeIfAbsent([]string{"Spooler", "SSDPSRV"}); err != nil {
		t.Fatalf("InitializeIfAbsent failed: %v", err)
	}
	if got := readRaw(t, s); got != "BITS\nspooler\nSSDPSRV\n" {
		t.Errorf("content = %q", got)
	}
}

func TestInitializeIfAbsent_EmptyDefaultsCreatesEmptyFile(t *testing.T) {
	s := newTestStore(t, "")

	if err := s.InitializeIfAbsent(nil); err != nil {
		t.Fatalf("InitializeIfAbsent failed: %v", err)
	}
	if _, err := os.Stat(s.Path()); err != nil {
		t.Errorf("expected file to exist: %v", err)
	}
}

func TestOverwrite(t *testing.T) {
	s := newTestStore(t, "Spooler\n")

	if err := s.Overwrite([]string{"BITS", "bits", "wuauserv"}); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}
	if got := readRaw(t, s); got != "BITS\nwuauserv\n" {
		t.Errorf("content = %q", got)
	}
}

func TestReadAll_IOError(t *testing.T) {
	dir := t.TempDir()
	// a directory cannot be read as a file
	s := New(dir)

	_, err := s.ReadAll()
	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected *IOError, got %v", err)
	}
	if ioErr.Op != "read" {
		t.Errorf("Op = %q", ioErr.Op)
	}
}

func TestConcurrentMutations(t *testing.T) {
	s := newTestStore(t, "")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.AppendMissing([]string{"Spooler", "SSDPSRV"})
		}()
		go func() {
			defer wg.Done()
			_, _ = s.RemoveOne("Spooler")
		}()
	}
	wg.Wait()

	raw := readRaw(t, s)
	lines := strings.Split(strings.TrimSuffix(raw, "\n"), "\n")
	seen := NewNameSet(nil)
	for _, l := range lines {
		if l == "" {
			continue
		}
		if !seen.Add(l) {
			t.Errorf("duplicate line %q in %q", l, raw)
		}
	}
}

func TestDifference(t *testing.T) {
	got := Difference([]string{"a", "B", "c", "b"}, []string{"A", "C"})
	if strings.Join(got, ",") != "B" {
		t.Errorf("Difference = %v", got)
	}
}
