// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package emitter

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthRequired means the collector rejected the request for lack of
	// valid credentials, or no credential was available to send.
	ErrAuthRequired = errors.New("emitter: authentication required")
	// ErrRejected is a non-auth 4xx answer. Retrying will not help.
	ErrRejected = errors.New("emitter: event rejected by collector")
	// ErrUnavailable covers transport failures and 5xx answers.
	ErrUnavailable = errors.New("emitter: collector unavailable")
	// ErrQueueFull is reported when the dispatcher drops an event.
	ErrQueueFull = errors.New("emitter: dispatch queue full")
)

// EmitError wraps a sentinel with request context.
type EmitError struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error
}

func (e *EmitError) Error() string {
	msg := fmt.Sprintf("emitter: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *EmitError) Unwrap() error {
	return e.Sentinel
}

// classifyStatus maps a non-2xx HTTP status to a sentinel.
func classifyStatus(status int) error {
	switch {
	case status == 401 || status == 403:
		return ErrAuthRequired
	case status == 408 || status == 429:
		return ErrUnavailable
	case status >= 400 && status < 500:
		return ErrRejected
	default:
		return ErrUnavailable
	}
}
