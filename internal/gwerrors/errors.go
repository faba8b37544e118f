// Package gwerrors defines the sentinel error kinds of SPEC_FULL.md section 8.
package gwerrors

import "errors"

var (
	// ErrNoCapacity is returned when no enabled, healthy worker is available.
	ErrNoCapacity = errors.New("gateway: no capacity")
	// ErrNotFound is returned for unknown prompt_id, gateway_job_id, or worker_id.
	ErrNotFound = errors.New("gateway: not found")
	// ErrTransport marks an unreachable/refused/timed-out worker call.
	ErrTransport = errors.New("gateway: transport error")
	// ErrProtocol marks a worker response that was non-200 or missing
	// required fields (e.g. prompt_id).
	ErrProtocol = errors.New("gateway: protocol error")
)
