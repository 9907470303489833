// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"

	xglog "github.com/ManuGH/chargewalk/internal/log"
	"github.com/ManuGH/chargewalk/internal/metrics"
)

const maxRemoteDocumentBytes = 64 << 10

// RemoteSource fetches session tunables from a remote document. Concurrent
// callers share one in-flight request.
type RemoteSource struct {
	url    string
	client *http.Client
	group  singleflight.Group
	logger zerolog.Logger
}

// NewRemoteSource creates a source for url. An empty url always yields defaults.
func NewRemoteSource(url string, timeout time.Duration) *RemoteSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RemoteSource{
		url: url,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: xglog.WithComponent("config"),
	}
}

// Fetch returns the remote session tunables. On any failure, including an
// invalid document, it returns DefaultSession together with the error that
// caused the fallback; callers may use the result either way.
func (r *RemoteSource) Fetch(ctx context.Context) (Session, error) {
	if r.url == "" {
		return DefaultSession(), nil
	}

	v, err, shared := r.group.Do("session", func() (any, error) {
		return r.fetch(ctx)
	})
	if err != nil {
		metrics.RecordConfigUpdate("remote", "fallback")
		r.logger.Warn().
			Err(err).
			Str("event", "config.remote_fallback").
			Str("url", r.url).
			Msg("remote session config unavailable, using defaults")
		return DefaultSession(), err
	}

	metrics.RecordConfigUpdate("remote", "ok")
	s := v.(Session)
	r.logger.Info().
		Str("event", "config.remote_loaded").
		Int("version", s.Version).
		Bool("shared", shared).
		Msg("remote session config loaded")
	return s, nil
}

func (r *RemoteSource) fetch(ctx context.Context) (Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return Session{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Session{}, fmt.Errorf("fetch: unexpected status %d", resp.StatusCode)
	}

	s := DefaultSession()
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRemoteDocumentBytes)).Decode(&s); err != nil {
		return Session{}, fmt.Errorf("decode: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Session{}, err
	}
	return s, nil
}
