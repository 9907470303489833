// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package emitter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/chargewalk/internal/session/model"
)

func TestClient_SessionEventRequest(t *testing.T) {
	var got sessionEventBody
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	creds := NewCredentials()
	creds.Set("  tok-1 ")
	c := NewClient(srv.URL+"/", creds, Options{})

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	err := c.EmitSessionEvent(context.Background(), SessionEvent{
		SessionID: "s 1",
		Name:      model.EventChargerDeparted,
		EventID:   "e-1",
		Timestamp: at,
		AppState:  model.AppForeground,
		Metadata:  map[string]string{model.MetaPreviousState: "SESSION_ACTIVE", model.MetaNewState: "IN_TRANSIT"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1/sessions/s 1/events", gotPath)
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, "charger_departed", got.EventName)
	assert.Equal(t, "e-1", got.EventID)
	assert.Equal(t, "2026-03-01T10:00:00.000Z", got.OccurredAt)
	assert.Equal(t, "foreground", got.AppState)
	assert.Equal(t, "IN_TRANSIT", got.Metadata[model.MetaNewState])
}

func TestClient_PreSessionEventWithoutToken(t *testing.T) {
	var got preSessionEventBody
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/pre-session/events", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, Options{})
	err := c.EmitPreSessionEvent(context.Background(), PreSessionEvent{
		Name:      model.EventIntentEntered,
		ChargerID: "c1",
		EventID:   NewEventID(),
		Timestamp: time.Now(),
	})
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
	assert.Equal(t, "c1", got.ChargerID)
	assert.Len(t, got.EventID, 36)
}

func TestClient_SessionEventWithoutTokenNeedsAuth(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, NewCredentials(), Options{})
	err := c.EmitSessionEvent(context.Background(), SessionEvent{SessionID: "s1", Name: model.EventVisitVerified})
	require.ErrorIs(t, err, ErrAuthRequired)
	assert.Zero(t, hits.Load())
}

func TestClient_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrAuthRequired},
		{http.StatusForbidden, ErrAuthRequired},
		{http.StatusBadRequest, ErrRejected},
		{http.StatusTooManyRequests, ErrUnavailable},
		{http.StatusBadGateway, ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			creds := NewCredentials()
			creds.Set("tok")
			c := NewClient(srv.URL, creds, Options{})
			err := c.EmitSessionEvent(context.Background(), SessionEvent{SessionID: "s1", Name: model.EventMerchantArrived})
			require.ErrorIs(t, err, tt.want)

			var emitErr *EmitError
			require.ErrorAs(t, err, &emitErr)
			assert.Equal(t, tt.status, emitErr.Status)
			assert.Equal(t, "nope", emitErr.Body)
		})
	}
}

func TestClient_BreakerOpensOnUnavailableOnly(t *testing.T) {
	var hits atomic.Int32
	status := atomic.Int32{}
	status.Store(http.StatusUnauthorized)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	creds := NewCredentials()
	creds.Set("tok")
	c := NewClient(srv.URL, creds, Options{BreakerThreshold: 2, BreakerCooldown: time.Hour})
	ev := SessionEvent{SessionID: "s1", Name: model.EventMerchantArrived}

	for i := 0; i < 3; i++ {
		require.ErrorIs(t, c.EmitSessionEvent(context.Background(), ev), ErrAuthRequired)
	}
	require.EqualValues(t, 3, hits.Load())

	status.Store(http.StatusServiceUnavailable)
	for i := 0; i < 2; i++ {
		require.ErrorIs(t, c.EmitSessionEvent(context.Background(), ev), ErrUnavailable)
	}
	require.EqualValues(t, 5, hits.Load())

	err := c.EmitSessionEvent(context.Background(), ev)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.EqualValues(t, 5, hits.Load(), "open breaker must short-circuit")
}
