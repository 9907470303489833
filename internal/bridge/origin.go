// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bridge

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// DefaultDevOrigins are accepted in non-production builds only.
var DefaultDevOrigins = []string{
	"http://localhost:5173",
	"http://localhost:3000",
	"http://127.0.0.1:5173",
}

// Origins is the allow-list of web content origins.
type Origins struct {
	allowed map[string]struct{}
}

// NewOrigins builds the allow-list. devOrigins are ignored when production
// is true. Entries that cannot be normalized are returned as an error.
func NewOrigins(production bool, productionOrigin string, devOrigins []string) (*Origins, error) {
	o := &Origins{allowed: make(map[string]struct{})}
	entries := []string{productionOrigin}
	if !production {
		entries = append(entries, devOrigins...)
	}
	for _, raw := range entries {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		n, err := NormalizeOrigin(raw)
		if err != nil {
			return nil, fmt.Errorf("bridge origin %q: %w", raw, err)
		}
		o.allowed[n] = struct{}{}
	}
	if len(o.allowed) == 0 {
		return nil, fmt.Errorf("bridge: empty origin allow-list")
	}
	return o, nil
}

// Allowed reports whether origin is on the list.
func (o *Origins) Allowed(origin string) bool {
	n, err := NormalizeOrigin(origin)
	if err != nil {
		return false
	}
	_, ok := o.allowed[n]
	return ok
}

// List returns the normalized allow-list.
func (o *Origins) List() []string {
	out := make([]string, 0, len(o.allowed))
	for k := range o.allowed {
		out = append(out, k)
	}
	return out
}

var defaultPorts = map[string]string{"http": "80", "https": "443"}

// NormalizeOrigin returns scheme://host[:port] with a lowercase scheme, an
// IDNA ASCII host and the scheme's default port removed.
func NormalizeOrigin(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return "", fmt.Errorf("opaque origin")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	scheme := strings.ToLower(u.Scheme)
	if _, ok := defaultPorts[scheme]; !ok {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.User != nil || (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" {
		return "", fmt.Errorf("origin must not carry userinfo, path, query or fragment")
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("missing host")
	}
	if net.ParseIP(host) == nil {
		host, err = idna.Lookup.ToASCII(strings.ToLower(host))
		if err != nil {
			return "", fmt.Errorf("host: %w", err)
		}
	}
	port := u.Port()
	if port == defaultPorts[scheme] {
		port = ""
	}
	if port != "" {
		host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return scheme + "://" + host, nil
}
