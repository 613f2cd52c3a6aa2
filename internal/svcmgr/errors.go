package svcmgr

import (
	"errors"
	"fmt"
)

// Per-service failure kinds. Match them with errors.Is.
var (
	ErrNotFound     = errors.New("service not found")
	ErrAccessDenied = errors.New("access denied")
	ErrStopRejected = errors.New("stop rejected")
	ErrTimeout      = errors.New("timed out waiting for status")
)

// HostQueryError means the service manager could not be enumerated at all.
type HostQueryError struct {
	Err error
}

func (e *HostQueryError) Error() string {
	return fmt.Sprintf("service manager query failed: %v", e.Err)
}

func (e *HostQueryError) Unwrap() error {
	return e.Err
}

// OperationError is a failure scoped to a single service.
type OperationError struct {
	Op      string
	Service string
	Kind    error
	Err     error
}

func (e *OperationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Service, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Service, e.Kind, e.Err)
}

// Is matches the failure kind.
func (e *OperationError) Is(target error) bool {
	return e.Kind == target
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

func opError(op, service string, kind, err error) *OperationError {
	return &OperationError{Op: op, Service: service, Kind: kind, Err: err}
}
