// Package store persists the keep-stopped list: a plain text file with one
// service name per line.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"svckeeper/internal/logger"
)

// IOError reports a failed read or write of the targets file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("targets file %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// TargetStore is the durable keep-stopped list. Every operation, including
// reads, runs under one mutex, so read-modify-write sequences issued from the
// startup sweep and the steady-state loop never interleave.
type TargetStore struct {
	path string
	mu   sync.Mutex
}

// New returns a store backed by path. The file is not touched until first use.
func New(path string) *TargetStore {
	return &TargetStore{path: path}
}

// Path returns the backing file path.
func (s *TargetStore) Path() string {
	return s.path
}

// ReadAll returns the stored names in file order, trimmed, without blanks or
// case-insensitive duplicates. A missing file reads as an empty list.
func (s *TargetStore) ReadAll() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, _, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	return Dedupe(lines), nil
}

// AppendMissing appends the candidates that are not already stored, keeping
// candidate order, and returns what was added. Nothing is written when every
// candidate is already present.
func (s *TargetStore) AppendMissing(candidates []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendLocked(candidates)
}

// RemoveOne rewrites the file without any line matching name case-insensitively.
// It reports whether anything was removed.
func (s *TargetStore) RemoveOne(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, _, err := s.readLocked()
	if err != nil {
		return false, err
	}

	key := Key(name)
	kept := make([]string, 0, len(lines))
	for _, l := range lines {
		if Key(l) != key {
			kept = append(kept, l)
		}
	}
	if len(kept) == len(lines) {
		return false, nil
	}

	if err := s.writeLocked(kept); err != nil {
		return false, err
	}

	log := logger.WithComponent("store")
	log.Info().Str("service", name).Str("path", s.path).Msg("Removed service from targets file")
	return true, nil
}

// Overwrite replaces the whole file with names, de-duplicated case-insensitively.
func (s *TargetStore) Overwrite(names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeLocked(Dedupe(names))
}

// InitializeIfAbsent creates the file with defaults when it does not exist.
// An existing file gets the missing defaults appended, so entries added by
// hand are never clobbered.
func (s *TargetStore) InitializeIfAbsent(defaults []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logger.WithComponent("store")

	_, err := os.Stat(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		names := Dedupe(defaults)
		if err := s.writeLocked(names); err != nil {
			return err
		}
		log.Info().
			Str("path", s.path).
			Strs("services", names).
			Msg("Created targets file with defaults")
		return nil
	case err != nil:
		return &IOError{Op: "stat", Path: s.path, Err: err}
	}

	added, err := s.appendLocked(defaults)
	if err != nil {
		return err
	}
	if len(added) > 0 {
		log.Info().
			Str("path", s.path).
			Strs("services", added).
			Msg("Merged default services into targets file")
	}
	return nil
}

// readLocked returns the trimmed non-blank lines and whether the raw content
// ends without a newline.
func (s *TargetStore) readLocked() ([]string, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &IOError{Op: "read", Path: s.path, Err: err}
	}

	// no line length limit; a stray long line must not block RemoveOne
	var lines []string
	for _, l := range strings.Split(string(data), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	unterminated := len(data) > 0 && data[len(data)-1] != '\n'
	return lines, unterminated, nil
}

func (s *TargetStore) appendLocked(candidates []string) ([]string, error) {
	existing, unterminated, err := s.readLocked()
	if err != nil {
		return nil, err
	}

	missing := Difference(candidates, existing)
	if len(missing) == 0 {
		return nil, nil
	}

	if err := s.ensureDir(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, &IOError{Op: "open", Path: s.path, Err: err}
	}

	var buf bytes.Buffer
	if unterminated {
		buf.WriteByte('\n')
	}
	for _, n := range missing {
		buf.WriteString(n)
		buf.WriteByte('\n')
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return nil, &IOError{Op: "append", Path: s.path, Err: err}
	}
	if err := f.Close(); err != nil {
		return nil, &IOError{Op: "append", Path: s.path, Err: err}
	}

	return missing, nil
}

func (s *TargetStore) writeLocked(names []string) error {
	if err := s.ensureDir(); err != nil {
		return err
	}

	var buf bytes.Buffer
	for _, n := range names {
		buf.WriteString(n)
		buf.WriteByte('\n')
	}

	if err := replaceFile(s.path, buf.Bytes()); err != nil {
		return &IOError{Op: "write", Path: s.path, Err: err}
	}
	return nil
}

func (s *TargetStore) ensureDir() error {
	dir := filepath.Dir(s.path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &IOError{Op: "mkdir", Path: dir, Err: err}
	}
	return nil
}
