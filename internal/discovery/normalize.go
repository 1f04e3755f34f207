package discovery

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// blockedExtensions are asset types that never become routes.
var blockedExtensions = map[string]struct{}{
	".css": {}, ".js": {}, ".mjs": {}, ".map": {},
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {}, ".svg": {}, ".ico": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {},
	".pdf": {}, ".zip": {}, ".gz": {}, ".mp4": {}, ".webm": {}, ".mp3": {},
	".xml": {}, ".rss": {}, ".atom": {},
}

// URLNormalizer turns raw hrefs into canonical in-scope URLs and route keys.
type URLNormalizer struct {
	scope *Scope
	// paginationParams are query parameters stripped before a URL becomes a
	// route, so page/paged variants of a known path collapse into it.
	paginationParams map[string]struct{}
}

// NewURLNormalizer builds a normalizer bound to a scope.
func NewURLNormalizer(scope *Scope, paginationParams []string) *URLNormalizer {
	params := make(map[string]struct{}, len(paginationParams))
	for _, p := range paginationParams {
		params[strings.ToLower(p)] = struct{}{}
	}
	return &URLNormalizer{scope: scope, paginationParams: params}
}

// Normalize cleans a raw link, resolves it against its base, and validates it
// against the scope. The returned URL is safe to enqueue.
func (n *URLNormalizer) Normalize(rawURL, baseURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid URL format: %w", err)
	}

	if !u.IsAbs() {
		if baseURL == "" {
			return nil, fmt.Errorf("relative URL without base: %s", rawURL)
		}
		base, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}
		u = base.ResolveReference(u)
	}

	u.Fragment = ""

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}

	if !n.scope.IsInScope(u) {
		return nil, fmt.Errorf("out of scope: %s", u.String())
	}

	// Strip default ports so http://host:80/x and http://host/x collapse.
	host := u.Host
	if (u.Scheme == "http" && strings.HasSuffix(host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(host, ":443")) {
		u.Host = u.Hostname()
	}

	if u.Path == "" {
		u.Path = "/"
	}

	ext := strings.ToLower(filepath.Ext(u.Path))
	if _, blocked := blockedExtensions[ext]; blocked {
		return nil, fmt.Errorf("blocked asset extension: %s", ext)
	}

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if _, drop := n.paginationParams[strings.ToLower(key)]; drop {
				q.Del(key)
			}
		}
		// Encode sorts keys, so equivalent queries produce one route key.
		u.RawQuery = q.Encode()
	}

	return u, nil
}

// RouteKey derives the route identity for a normalized URL: the path plus any
// surviving query string. Unique within a single audit run.
func RouteKey(u *url.URL) string {
	key := u.Path
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}
