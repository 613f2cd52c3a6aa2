//go:build linux

package svcmgr

// New returns the systemd-backed Manager.
func New(opts Options) Manager {
	return newSystemdManager(opts, execRun)
}
