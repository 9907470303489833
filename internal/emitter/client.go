// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package emitter delivers session events to the remote collector.
package emitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	xglog "github.com/ManuGH/chargewalk/internal/log"
	"github.com/ManuGH/chargewalk/internal/resilience"
	"github.com/ManuGH/chargewalk/internal/telemetry"
)

// Sink is the remote event-emission API.
type Sink interface {
	EmitSessionEvent(ctx context.Context, ev SessionEvent) error
	EmitPreSessionEvent(ctx context.Context, ev PreSessionEvent) error
}

// Options configures the collector client.
type Options struct {
	Timeout          time.Duration
	RatePerSecond    float64
	Burst            int
	BreakerThreshold int
	BreakerCooldown  time.Duration
	UserAgent        string
}

const (
	defaultTimeout          = 10 * time.Second
	defaultRatePerSecond    = 5
	defaultBurst            = 10
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30 * time.Second
	maxErrorBody            = 512
)

func normalizeOptions(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = defaultRatePerSecond
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultBurst
	}
	if opts.BreakerThreshold <= 0 {
		opts.BreakerThreshold = defaultBreakerThreshold
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = defaultBreakerCooldown
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = "chargewalk-session-core"
	}
	return opts
}

// Client posts events to the collector over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *resilience.CircuitBreaker
	creds      *Credentials
	userAgent  string
	logger     zerolog.Logger
}

// NewClient creates a collector client. creds may be shared with the bridge
// so that SET_AUTH_TOKEN takes effect on the next request.
func NewClient(baseURL string, creds *Credentials, opts Options) *Client {
	nopts := normalizeOptions(opts)
	if creds == nil {
		creds = NewCredentials()
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{
			Timeout:   nopts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(rate.Limit(nopts.RatePerSecond), nopts.Burst),
		breaker: resilience.NewCircuitBreaker("emitter", nopts.BreakerThreshold, nopts.BreakerCooldown,
			resilience.WithFailurePredicate(func(err error) bool {
				return errors.Is(err, ErrUnavailable)
			})),
		creds:     creds,
		userAgent: nopts.UserAgent,
		logger:    xglog.WithComponent("emitter"),
	}
}

// EmitSessionEvent posts ev to /v1/sessions/{id}/events. A session event
// without a credential fails with ErrAuthRequired before any I/O.
func (c *Client) EmitSessionEvent(ctx context.Context, ev SessionEvent) error {
	if ev.SessionID == "" {
		return &EmitError{Sentinel: ErrRejected, Operation: "session_event", Body: "missing session id"}
	}
	if c.creds.Token() == "" {
		return &EmitError{Sentinel: ErrAuthRequired, Operation: "session_event", Body: "no credential"}
	}
	path := "/v1/sessions/" + url.PathEscape(ev.SessionID) + "/events"
	attrs := telemetry.EventAttributes(string(ev.Name), ev.EventID, ev.SessionID, "")
	return c.post(ctx, "session_event", path, ev.body(), attrs)
}

// EmitPreSessionEvent posts ev to /v1/pre-session/events. The credential is
// attached when present.
func (c *Client) EmitPreSessionEvent(ctx context.Context, ev PreSessionEvent) error {
	attrs := telemetry.EventAttributes(string(ev.Name), ev.EventID, "", ev.ChargerID)
	return c.post(ctx, "pre_session_event", "/v1/pre-session/events", ev.body(), attrs)
}

func (c *Client) post(ctx context.Context, op, path string, body any, attrs []attribute.KeyValue) error {
	ctx, span := telemetry.Tracer("chargewalk.emitter").Start(ctx, "emitter."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...))
	defer span.End()

	err := c.breaker.Execute(func() error {
		return c.do(ctx, op, path, body)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		err = &EmitError{Sentinel: ErrUnavailable, Operation: op, Err: err}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, path string, body any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &EmitError{Sentinel: ErrUnavailable, Operation: op, Err: err}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return &EmitError{Sentinel: ErrRejected, Operation: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &EmitError{Sentinel: ErrRejected, Operation: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if token := c.creds.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &EmitError{Sentinel: ErrUnavailable, Operation: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	emitErr := &EmitError{
		Sentinel:  classifyStatus(resp.StatusCode),
		Operation: op,
		Status:    resp.StatusCode,
		Body:      strings.TrimSpace(string(snippet)),
	}
	c.logger.Debug().
		Str("event", "emitter.rejected").
		Int("status", resp.StatusCode).
		Str("path", path).
		Msgf("collector answered %d", resp.StatusCode)
	return emitErr
}

// LogSink logs events instead of sending them. The daemon uses it when no
// collector URL is configured.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink returns a sink that only logs.
func NewLogSink() *LogSink {
	return &LogSink{logger: xglog.WithComponent("emitter")}
}

func (s *LogSink) EmitSessionEvent(_ context.Context, ev SessionEvent) error {
	s.logger.Info().
		Str("event", "emitter.session_event").
		Str(xglog.FieldSessionID, ev.SessionID).
		Str(xglog.FieldEventID, ev.EventID).
		Str("name", string(ev.Name)).
		Interface("metadata", ev.Metadata).
		Msg("session event")
	return nil
}

func (s *LogSink) EmitPreSessionEvent(_ context.Context, ev PreSessionEvent) error {
	s.logger.Info().
		Str("event", "emitter.pre_session_event").
		Str(xglog.FieldChargerID, ev.ChargerID).
		Str(xglog.FieldEventID, ev.EventID).
		Str("name", string(ev.Name)).
		Interface("metadata", ev.Metadata).
		Msg("pre-session event")
	return nil
}
