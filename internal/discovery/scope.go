package discovery

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Scope defines the origin boundary of an audit run. Everything outside it is
// filtered before it can reach the crawl queue.
type Scope struct {
	origin            *url.URL
	rootDomain        string
	includeSubdomains bool
}

// NewScope initializes a scope from the audit's base URL.
func NewScope(originURL string, includeSubdomains bool) (*Scope, error) {
	u, err := url.Parse(originURL)
	if err != nil {
		return nil, err
	}

	hostname := u.Hostname()
	if hostname == "" {
		return nil, fmt.Errorf("origin URL must have a hostname: %s", originURL)
	}

	// Use the Public Suffix List to extract the eTLD+1, so domains like
	// 'example.co.uk' resolve to the organizational domain.
	domain, err := publicsuffix.EffectiveTLDPlusOne(hostname)
	if err != nil {
		// Bare hosts (localhost, IPs) have no registrable domain; fall back
		// to the hostname so local audits still work.
		domain = hostname
	}

	return &Scope{
		origin:            u,
		rootDomain:        domain,
		includeSubdomains: includeSubdomains,
	}, nil
}

// IsInScope reports whether the URL belongs to the audited origin.
func (s *Scope) IsInScope(u *url.URL) bool {
	host := u.Hostname()

	if host == s.origin.Hostname() {
		return true
	}
	if s.includeSubdomains && (host == s.rootDomain || strings.HasSuffix(host, "."+s.rootDomain)) {
		return true
	}
	return false
}

// Origin returns the parsed base URL of the audit.
func (s *Scope) Origin() *url.URL {
	return s.origin
}

// RootDomain returns the eTLD+1 defining the scope.
func (s *Scope) RootDomain() string {
	return s.rootDomain
}
