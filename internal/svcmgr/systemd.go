package svcmgr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"svckeeper/internal/logger"
)

const unitSuffix = ".service"

// runFunc executes a command and returns its stdout and stderr.
type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// waitDelay caps how long Run waits on output pipes after the process is killed.
const waitDelay = time.Second

func execRun(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil && ctx.Err() != nil {
		err = fmt.Errorf("%w (%v)", ctx.Err(), err)
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

// systemdManager drives systemd through systemctl.
type systemdManager struct {
	run          runFunc
	clk          clock.Clock
	pollInterval time.Duration
	cmdTimeout   time.Duration
}

func newSystemdManager(opts Options, run runFunc) *systemdManager {
	opts = opts.withDefaults()
	return &systemdManager{
		run:          run,
		clk:          opts.Clock,
		pollInterval: opts.PollInterval,
		cmdTimeout:   opts.CommandTimeout,
	}
}

// systemctl runs one systemctl command bounded by the command timeout.
func (m *systemdManager) systemctl(ctx context.Context, args ...string) ([]byte, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cmdTimeout)
	defer cancel()
	return m.run(ctx, "systemctl", args...)
}

// Enumerate merges loaded units with installed unit files. systemd unloads
// inactive units nothing references, so a service that stopped and was
// collected between two polls only shows up through list-unit-files.
func (m *systemdManager) Enumerate(ctx context.Context) ([]Snapshot, error) {
	stdout, stderr, err := m.systemctl(ctx, "list-units",
		"--type=service", "--all", "--plain", "--no-legend", "--no-pager")
	if err != nil {
		return nil, &HostQueryError{Err: fmt.Errorf("systemctl list-units: %w: %s", err, strings.TrimSpace(string(stderr)))}
	}
	snaps := parseListUnits(stdout)

	files, stderr, err := m.systemctl(ctx, "list-unit-files",
		"--type=service", "--plain", "--no-legend", "--no-pager")
	if err != nil {
		log := logger.WithComponent("svcmgr")
		log.Debug().Err(err).Str("stderr", strings.TrimSpace(string(stderr))).Msg("systemctl list-unit-files failed")
		return snaps, nil
	}
	return mergeUnitFiles(snaps, parseListUnitFiles(files)), nil
}

func (m *systemdManager) Query(ctx context.Context, name string) (Status, error) {
	stdout, stderr, err := m.systemctl(ctx, "show", unitName(name),
		"--property=LoadState,ActiveState,SubState")
	if err != nil {
		return StatusOther, opError("query", name, classifyStderr(string(stderr)), err)
	}

	props := parseShow(stdout)
	if props["LoadState"] == "not-found" {
		return StatusOther, opError("query", name, ErrNotFound, nil)
	}
	return mapSystemdState(props["ActiveState"], props["SubState"]), nil
}

func (m *systemdManager) Stop(ctx context.Context, name string) error {
	_, stderr, err := m.systemctl(ctx, "stop", "--no-block", unitName(name))
	if err != nil {
		msg := strings.TrimSpace(string(stderr))
		log := logger.WithComponent("svcmgr")
		log.Debug().Err(err).Str("service", name).Str("stderr", msg).Msg("systemctl stop failed")
		return opError("stop", name, classifyStderr(msg), err)
	}
	return nil
}

func (m *systemdManager) AwaitStatus(ctx context.Context, name string, target Status, timeout time.Duration) Status {
	return awaitStatus(ctx, m.clk, m.pollInterval, m.Query, name, target, timeout)
}

// unitName appends the .service suffix when it is missing.
func unitName(name string) string {
	if strings.HasSuffix(name, unitSuffix) {
		return name
	}
	return name + unitSuffix
}

// parseListUnits reads `systemctl list-units --plain --no-legend` output.
// Units that are not installed are skipped; the .service suffix is dropped.
func parseListUnits(out []byte) []Snapshot {
	var snaps []Snapshot
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		// failed or missing units may carry a status marker
		if len(fields) > 0 && (fields[0] == "●" || fields[0] == "*") {
			fields = fields[1:]
		}
		if len(fields) < 4 {
			continue
		}
		unit, load, active, sub := fields[0], fields[1], fields[2], fields[3]
		if !strings.HasSuffix(unit, unitSuffix) || load == "not-found" {
			continue
		}
		snaps = append(snaps, Snapshot{
			Name:   strings.TrimSuffix(unit, unitSuffix),
			Status: mapSystemdState(active, sub),
		})
	}
	return snaps
}

// parseListUnitFiles reads `systemctl list-unit-files --plain --no-legend`
// output and returns the installed service names. Templates and masked
// units are skipped since neither can be running.
func parseListUnitFiles(out []byte) []string {
	var names []string
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		unit, state := fields[0], fields[1]
		if !strings.HasSuffix(unit, unitSuffix) || strings.HasSuffix(unit, "@"+unitSuffix) {
			continue
		}
		if state == "masked" || state == "masked-runtime" {
			continue
		}
		names = append(names, strings.TrimSuffix(unit, unitSuffix))
	}
	return names
}

// mergeUnitFiles appends installed services missing from the loaded set as stopped.
func mergeUnitFiles(snaps []Snapshot, installed []string) []Snapshot {
	seen := make(map[string]struct{}, len(snaps))
	for _, s := range snaps {
		seen[strings.ToLower(s.Name)] = struct{}{}
	}
	for _, name := range installed {
		k := strings.ToLower(name)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		snaps = append(snaps, Snapshot{Name: name, Status: StatusStopped})
	}
	return snaps
}

// parseShow reads KEY=VALUE lines from `systemctl show`.
func parseShow(out []byte) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(string(out), "\n") {
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		props[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return props
}

// mapSystemdState maps systemd ActiveState/SubState onto Status. Only
// active/running counts as running; active/exited oneshots have no process to stop.
func mapSystemdState(activeState, subState string) Status {
	switch activeState {
	case "active":
		if subState == "running" {
			return StatusRunning
		}
		return StatusOther
	case "inactive":
		return StatusStopped
	default:
		return StatusOther
	}
}

func classifyStderr(stderr string) error {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "not loaded"), strings.Contains(lower, "not found"),
		strings.Contains(lower, "does not exist"):
		return ErrNotFound
	case strings.Contains(lower, "access denied"), strings.Contains(lower, "authentication required"),
		strings.Contains(lower, "permission denied"), strings.Contains(lower, "interactive authentication"):
		return ErrAccessDenied
	default:
		return ErrStopRejected
	}
}
