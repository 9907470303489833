// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "errors"

var (
	// ErrInvalidSession is returned when session tunables violate their invariants.
	ErrInvalidSession = errors.New("invalid session config")

	// ErrInvalidConfig is returned when the daemon configuration fails validation.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrMultipleDocuments is returned when a YAML file has trailing content.
	ErrMultipleDocuments = errors.New("config file contains multiple documents or trailing content")
)
