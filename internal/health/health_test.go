// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(_ context.Context) CheckResult {
	return CheckResult{Status: m.status}
}

type brokenWriter struct {
	header http.Header
	code   int
}

func (w *brokenWriter) Header() http.Header        { return w.header }
func (w *brokenWriter) Write([]byte) (int, error)  { return 0, errors.New("broken") }
func (w *brokenWriter) WriteHeader(statusCode int) { w.code = statusCode }

func TestManager_Health(t *testing.T) {
	m := NewManager("v1.0.0", 0)
	m.RegisterChecker(&mockChecker{name: "healthy", status: StatusHealthy})
	m.RegisterChecker(&mockChecker{name: "degraded", status: StatusDegraded})

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.0.0", resp.Version)
	assert.Nil(t, resp.Checks)

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Len(t, resp.Checks, 2)
	assert.Equal(t, StatusDegraded, resp.Checks["degraded"].Status)
}

func TestManager_Ready(t *testing.T) {
	tests := []struct {
		name     string
		checkers []Checker
		ready    bool
		status   Status
	}{
		{name: "no checkers", ready: true, status: StatusHealthy},
		{
			name:     "all healthy",
			checkers: []Checker{&mockChecker{name: "a", status: StatusHealthy}, &mockChecker{name: "b", status: StatusHealthy}},
			ready:    true,
			status:   StatusHealthy,
		},
		{
			name:     "degraded is still ready",
			checkers: []Checker{&mockChecker{name: "a", status: StatusDegraded}},
			ready:    true,
			status:   StatusDegraded,
		},
		{
			name:     "unhealthy wins over degraded",
			checkers: []Checker{&mockChecker{name: "a", status: StatusUnhealthy}, &mockChecker{name: "b", status: StatusDegraded}},
			ready:    false,
			status:   StatusUnhealthy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("v1", time.Second)
			for _, c := range tt.checkers {
				m.RegisterChecker(c)
			}
			resp := m.Ready(context.Background())
			assert.Equal(t, tt.ready, resp.Ready)
			assert.Equal(t, tt.status, resp.Status)
			assert.Len(t, resp.Checks, len(tt.checkers))
		})
	}
}

func TestManager_CheckTimeout(t *testing.T) {
	m := NewManager("v1", 20*time.Millisecond)
	m.RegisterChecker(CheckFunc("slow", func(ctx context.Context) CheckResult {
		<-ctx.Done()
		return CheckResult{Status: StatusUnhealthy, Error: ctx.Err().Error()}
	}))

	resp := m.Ready(context.Background())
	assert.False(t, resp.Ready)
	assert.Equal(t, context.DeadlineExceeded.Error(), resp.Checks["slow"].Error)
}

func TestManager_ServeHealth(t *testing.T) {
	m := NewManager("v1.0.0", 0)
	m.RegisterChecker(&mockChecker{name: "store", status: StatusUnhealthy})

	w := httptest.NewRecorder()
	m.ServeHealth(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Nil(t, resp.Checks)

	w = httptest.NewRecorder()
	m.ServeHealth(w, httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil))
	assert.Equal(t, http.StatusOK, w.Code, "liveness stays 200 with failing components")
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Len(t, resp.Checks, 1)
}

func TestManager_ServeReady(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		code   int
	}{
		{name: "healthy", status: StatusHealthy, code: http.StatusOK},
		{name: "degraded", status: StatusDegraded, code: http.StatusOK},
		{name: "unhealthy", status: StatusUnhealthy, code: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("v1", 0)
			m.RegisterChecker(&mockChecker{name: "engine", status: tt.status})

			w := httptest.NewRecorder()
			m.ServeReady(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			assert.Equal(t, tt.code, w.Code)

			var resp ReadinessResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.status, resp.Status)
		})
	}
}

func TestManager_ServeEncodingError(t *testing.T) {
	m := NewManager("v1", 0)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	w := &brokenWriter{header: make(http.Header)}
	m.ServeHealth(w, req)
	assert.Equal(t, http.StatusOK, w.code)

	w = &brokenWriter{header: make(http.Header)}
	m.ServeReady(w, req)
	assert.Equal(t, http.StatusOK, w.code)
}

func TestDirChecker(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	tests := []struct {
		name   string
		path   string
		status Status
	}{
		{name: "empty path", path: "", status: StatusHealthy},
		{name: "writable dir", path: dir, status: StatusHealthy},
		{name: "missing", path: filepath.Join(dir, "missing"), status: StatusUnhealthy},
		{name: "not a dir", path: file, status: StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewDirChecker("snapshot_dir", tt.path)
			assert.Equal(t, "snapshot_dir", c.Name())
			assert.Equal(t, tt.status, c.Check(context.Background()).Status)
		})
	}
	_, err := os.Stat(filepath.Join(dir, ".write_test"))
	assert.True(t, os.IsNotExist(err), "write test file is removed")
}
