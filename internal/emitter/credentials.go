// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package emitter

import (
	"strings"
	"sync"
)

// Credentials holds the bearer token handed over by the web layer.
type Credentials struct {
	mu    sync.RWMutex
	token string
}

// NewCredentials returns an empty credential store.
func NewCredentials() *Credentials {
	return &Credentials{}
}

// Set replaces the token. An empty or blank token clears it.
func (c *Credentials) Set(token string) {
	c.mu.Lock()
	c.token = strings.TrimSpace(token)
	c.mu.Unlock()
}

// Token returns the current token, or "" if none is set.
func (c *Credentials) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

