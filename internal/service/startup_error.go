package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StartupErrorFile is the file name written under the log directory.
const StartupErrorFile = "startup-error.log"

// WriteStartupError records err in logDir/startup-error.log, replacing any
// earlier content. Failures are ignored; this runs before logging is up.
func WriteStartupError(logDir string, err error) {
	_ = os.MkdirAll(logDir, 0755)

	f, ferr := os.Create(filepath.Join(logDir, StartupErrorFile))
	if ferr != nil {
		return
	}
	defer f.Close()

	fmt.Fprintf(f, "[%s] %s STARTUP ERROR\n%v\n", time.Now().Format("2006-01-02 15:04:05"), Name, err)
}

// ClearStartupError removes a stale startup error after a successful start.
func ClearStartupError(logDir string) error {
	err := os.Remove(filepath.Join(logDir, StartupErrorFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
