//go:build windows

package svcmgr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/yusufpapurcu/wmi"
	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

// win32Service is the subset of Win32_Service read by Enumerate.
type win32Service struct {
	Name  string
	State string
}

const enumerateQuery = "SELECT Name, State FROM Win32_Service"

// scmManager enumerates through WMI and stops through the Service Control Manager.
type scmManager struct {
	clk          clock.Clock
	pollInterval time.Duration
}

// New returns the Windows Manager.
func New(opts Options) Manager {
	opts = opts.withDefaults()
	return &scmManager{clk: opts.Clock, pollInterval: opts.PollInterval}
}

func (m *scmManager) Enumerate(ctx context.Context) ([]Snapshot, error) {
	var dst []win32Service
	if err := wmi.Query(enumerateQuery, &dst); err != nil {
		return nil, &HostQueryError{Err: fmt.Errorf("wmi %q: %w", enumerateQuery, err)}
	}

	snaps := make([]Snapshot, 0, len(dst))
	for _, s := range dst {
		snaps = append(snaps, Snapshot{Name: s.Name, Status: mapWMIState(s.State)})
	}
	return snaps, nil
}

func (m *scmManager) Query(ctx context.Context, name string) (Status, error) {
	scm, err := mgr.Connect()
	if err != nil {
		return StatusOther, opError("query", name, classifyWindowsError(err), err)
	}
	defer scm.Disconnect()

	s, err := scm.OpenService(name)
	if err != nil {
		return StatusOther, opError("query", name, classifyWindowsError(err), err)
	}
	defer s.Close()

	st, err := s.Query()
	if err != nil {
		return StatusOther, opError("query", name, classifyWindowsError(err), err)
	}
	return mapSvcState(st.State), nil
}

func (m *scmManager) Stop(ctx context.Context, name string) error {
	scm, err := mgr.Connect()
	if err != nil {
		return opError("stop", name, classifyWindowsError(err), err)
	}
	defer scm.Disconnect()

	s, err := scm.OpenService(name)
	if err != nil {
		return opError("stop", name, classifyWindowsError(err), err)
	}
	defer s.Close()

	if _, err := s.Control(svc.Stop); err != nil {
		// already stopped between enumeration and stop
		if errors.Is(err, windows.ERROR_SERVICE_NOT_ACTIVE) {
			return nil
		}
		return opError("stop", name, classifyWindowsError(err), err)
	}
	return nil
}

func (m *scmManager) AwaitStatus(ctx context.Context, name string, target Status, timeout time.Duration) Status {
	return awaitStatus(ctx, m.clk, m.pollInterval, m.Query, name, target, timeout)
}

func classifyWindowsError(err error) error {
	switch {
	case errors.Is(err, windows.ERROR_SERVICE_DOES_NOT_EXIST):
		return ErrNotFound
	case errors.Is(err, windows.ERROR_ACCESS_DENIED):
		return ErrAccessDenied
	default:
		// ERROR_DEPENDENT_SERVICES_RUNNING, ERROR_INVALID_SERVICE_CONTROL,
		// ERROR_SERVICE_CANNOT_ACCEPT_CTRL and the rest
		return ErrStopRejected
	}
}

func mapSvcState(state svc.State) Status {
	switch state {
	case svc.Running:
		return StatusRunning
	case svc.Stopped:
		return StatusStopped
	default:
		return StatusOther
	}
}

// mapWMIState maps Win32_Service.State strings.
func mapWMIState(state string) Status {
	switch state {
	case "Running":
		return StatusRunning
	case "Stopped":
		return StatusStopped
	default:
		return StatusOther
	}
}
