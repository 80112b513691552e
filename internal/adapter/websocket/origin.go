package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// originPolicy matches browser origins against exact entries and
// "scheme://*.domain" patterns.
type originPolicy struct {
	any      bool
	exact    map[string]struct{}
	suffixes []suffixPattern
}

type suffixPattern struct {
	scheme string
	suffix string // ".domain[:port]"
}

func newOriginPolicy(allowed []string) originPolicy {
	p := originPolicy{any: len(allowed) == 0, exact: make(map[string]struct{}, len(allowed))}
	for _, raw := range allowed {
		raw = strings.ToLower(strings.TrimSpace(raw))
		switch {
		case raw == "*":
			p.any = true
		case strings.Contains(raw, "://*."):
			scheme, rest, _ := strings.Cut(raw, "://*")
			p.suffixes = append(p.suffixes, suffixPattern{scheme: scheme, suffix: strings.TrimRight(rest, "/")})
		default:
			if origin := extractOrigin(raw); origin != "" {
				p.exact[origin] = struct{}{}
			}
		}
	}
	return p
}

func (p originPolicy) allows(origin string) bool {
	if p.any || origin == "" {
		return true
	}
	origin = extractOrigin(origin)
	if _, ok := p.exact[origin]; ok {
		return true
	}
	for _, s := range p.suffixes {
		scheme, host, ok := strings.Cut(origin, "://")
		if ok && scheme == s.scheme && len(host) > len(s.suffix) && strings.HasSuffix(host, s.suffix) {
			return true
		}
	}
	return false
}

// NewCheckOrigin returns the upgrader's CheckOrigin. An empty list or "*"
// accepts everything, and requests without an Origin header always pass.
func NewCheckOrigin(allowed []string) func(r *http.Request) bool {
	policy := newOriginPolicy(allowed)
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if policy.allows(origin) {
			return true
		}
		slog.Warn("WebSocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}

func extractOrigin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}
