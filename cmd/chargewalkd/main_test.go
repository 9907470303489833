// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Version(t *testing.T) {
	assert.Equal(t, 0, run([]string{"-version"}))
}

func TestRun_BadFlag(t *testing.T) {
	assert.Equal(t, 2, run([]string{"-no-such-flag"}))
}

func TestRun_InvalidConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("unknownKey: 1\n"), 0o600))
	assert.Equal(t, 1, run([]string{"-config", path, "-env-file", ""}))
}

func TestLoadEnvFile(t *testing.T) {
	assert.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
	assert.NoError(t, loadEnvFile(""))

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("CHARGEWALK_TEST_DOTENV=from-file\n"), 0o600))
	t.Setenv("CHARGEWALK_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("CHARGEWALK_TEST_DOTENV"))

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("CHARGEWALK_TEST_DOTENV"))
}
