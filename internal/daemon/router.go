// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ManuGH/chargewalk/internal/bridge"
	"github.com/ManuGH/chargewalk/internal/engine"
	"github.com/ManuGH/chargewalk/internal/health"
	xglog "github.com/ManuGH/chargewalk/internal/log"
)

// StatusSource is the read side of the engine used by the HTTP API.
type StatusSource interface {
	Status(ctx context.Context) (engine.Status, error)
}

// RecentSource exposes the bridge message ring.
type RecentSource interface {
	Recent() []bridge.Record
}

// RouterDeps wires the HTTP surface.
type RouterDeps struct {
	Engine StatusSource
	Bridge RecentSource
	// BridgeWS upgrades /bridge to the bridge websocket.
	BridgeWS http.Handler
	// Metrics defaults to the Prometheus default registry handler.
	Metrics http.Handler
	// Probes serves /healthz and /readyz. When nil, a manager checking only
	// the engine is used.
	Probes            *health.Manager
	RequestsPerMinute int
}

const statusTimeout = 2 * time.Second

// NewRouter builds the daemon's HTTP routes.
func NewRouter(d RouterDeps) http.Handler {
	if d.Metrics == nil {
		d.Metrics = promhttp.Handler()
	}
	if d.RequestsPerMinute <= 0 {
		d.RequestsPerMinute = 600
	}
	if d.Probes == nil {
		d.Probes = health.NewManager("", statusTimeout)
		d.Probes.RegisterChecker(EngineChecker(d.Engine))
	}

	r := chi.NewRouter()
	r.Use(recoverer)
	r.Use(requestID)
	r.Use(rateLimit(d.RequestsPerMinute, time.Minute))

	if d.BridgeWS != nil {
		r.Handle("/bridge", d.BridgeWS)
	}

	r.Group(func(r chi.Router) {
		r.Use(instrument)
		r.Use(func(next http.Handler) http.Handler {
			return otelhttp.NewHandler(next, "chargewalk.http", otelhttp.WithSpanNameFormatter(
				func(_ string, r *http.Request) string { return r.Method + " " + r.URL.Path },
			))
		})

		r.Method(http.MethodGet, "/metrics", d.Metrics)
		r.Get("/healthz", d.Probes.ServeHealth)
		r.Get("/readyz", d.Probes.ServeReady)
		r.Get("/v1/session", sessionHandler(d.Engine))
		r.Get("/v1/bridge/recent", recentHandler(d.Bridge))
	})
	return r
}

// EngineChecker reports the engine unhealthy when its loop does not answer.
func EngineChecker(src StatusSource) health.Checker {
	return health.CheckFunc("engine", func(ctx context.Context) health.CheckResult {
		st, err := src.Status(ctx)
		if err != nil {
			return health.CheckResult{Status: health.StatusUnhealthy, Error: err.Error()}
		}
		if st.Snapshot == nil {
			return health.CheckResult{Status: health.StatusHealthy}
		}
		return health.CheckResult{Status: health.StatusHealthy, Message: string(st.Snapshot.State)}
	})
}

func sessionHandler(src StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), statusTimeout)
		defer cancel()
		st, err := src.Status(ctx)
		if err != nil {
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, r, http.StatusOK, st)
	}
}

func recentHandler(src RecentSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recent := src.Recent()
		if recent == nil {
			recent = []bridge.Record{}
		}
		writeJSON(w, r, http.StatusOK, recent)
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		xglog.FromContext(r.Context()).Warn().Err(err).Str("event", "http.encode_failed").Msg("response encode failed")
	}
}
