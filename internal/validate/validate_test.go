// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidator_AccumulatesErrors(t *testing.T) {
	v := New()
	v.Positive("radius", 0)
	v.Range("port", 70000, 1, 65535)
	v.NotEmpty("origin", "  ")
	v.OneOf("backend", "floppy", []string{"memory", "file"})
	v.URL("collector", "ftp://example.com", []string{"http", "https"})

	require.False(t, v.IsValid())
	err := v.Err()
	require.Error(t, err)

	var ve ValidationError
	require.True(t, errors.As(err, &ve))
	require.Len(t, ve.Errors(), 5)
	require.Contains(t, err.Error(), "validation failed for radius")
}

func TestValidator_ValidInputs(t *testing.T) {
	v := New()
	v.Positive("radius", 1.5)
	v.Range("n", 3, 1, 5)
	v.NotEmpty("origin", "https://app.example.com")
	v.OneOf("backend", "file", []string{"memory", "file"})
	v.URL("collector", "https://collector.example.com/v1", []string{"https"})
	require.True(t, v.IsValid())
	require.NoError(t, v.Err())
}

func TestValidator_URLWithoutHost(t *testing.T) {
	v := New()
	v.URL("u", "/relative", nil)
	require.Len(t, v.Errors(), 1)
}

func TestParseLogLevel(t *testing.T) {
	l, err := ParseLogLevel("warn")
	require.NoError(t, err)
	require.Equal(t, LogLevelWarn, l)

	_, err = ParseLogLevel("loud")
	require.ErrorIs(t, err, ErrInvalidLogLevel)
}
