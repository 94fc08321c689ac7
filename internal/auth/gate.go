package auth

import (
	"crypto/subtle"
	"fmt"
	"regexp"
)

// DefaultOrigins is the exact-match allow-list used when none is configured.
var DefaultOrigins = []string{"http://localhost:3000"}

// DefaultOriginPatterns admit preview deployments and loopback on any port.
var DefaultOriginPatterns = []string{
	`\.vercel\.app$`,
	`\.onrender\.com$`,
	`^http://localhost:\d+$`,
	`^http://127\.0\.0\.1:\d+$`,
}

// Gate decides which browser origins may connect and which external callers
// may inject events.
type Gate struct {
	origins  map[string]struct{}
	patterns []*regexp.Regexp
	secret   []byte
}

func NewGate(origins, patterns []string, secret string) (*Gate, error) {
	g := &Gate{
		origins: make(map[string]struct{}, len(origins)),
		secret:  []byte(secret),
	}
	for _, o := range origins {
		if o != "" {
			g.origins[o] = struct{}{}
		}
	}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid origin pattern %q: %w", p, err)
		}
		g.patterns = append(g.patterns, re)
	}
	return g, nil
}

// AuthorizeOrigin reports whether a connection from origin is allowed.
// Requests without an Origin header (curl, native apps) are allowed.
func (g *Gate) AuthorizeOrigin(origin string) bool {
	if origin == "" {
		return true
	}
	if _, ok := g.origins[origin]; ok {
		return true
	}
	for _, re := range g.patterns {
		if re.MatchString(origin) {
			return true
		}
	}
	return false
}

// AuthorizeExternalEvent compares credential with the shared secret in
// constant time. An unconfigured secret admits nobody.
func (g *Gate) AuthorizeExternalEvent(credential string) bool {
	if len(g.secret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(credential), g.secret) == 1
}
