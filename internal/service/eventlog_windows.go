//go:build windows

package service

import (
	"fmt"

	"golang.org/x/sys/windows/svc/eventlog"
)

// ReportStartupError writes err to the Windows Event Log under name, so
// "net start" failures are visible before the logger exists.
func ReportStartupError(name string, err error) {
	// idempotent when the source already exists
	_ = eventlog.InstallAsEventCreate(name, eventlog.Error|eventlog.Warning|eventlog.Info)

	elog, openErr := eventlog.Open(name)
	if openErr != nil {
		return
	}
	defer elog.Close()

	elog.Error(1, fmt.Sprintf("%s failed to start: %v", name, err))
}
