package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPaginationParams = []string{"page", "paged", "p", "offset", "start"}

func newTestNormalizer(t *testing.T, origin string) *URLNormalizer {
	t.Helper()
	scope, err := NewScope(origin, false)
	require.NoError(t, err)
	return NewURLNormalizer(scope, testPaginationParams)
}

func TestURLNormalizerNormalize(t *testing.T) {
	t.Parallel()
	norm := newTestNormalizer(t, "https://example.com")

	testCases := []struct {
		name    string
		rawURL  string
		baseURL string
		wantKey string
		wantErr bool
	}{
		{
			name:    "absolute in-scope URL",
			rawURL:  "https://example.com/about",
			wantKey: "/about",
		},
		{
			name:    "relative URL resolved against base",
			rawURL:  "team",
			baseURL: "https://example.com/about/",
			wantKey: "/about/team",
		},
		{
			name:    "fragment stripped",
			rawURL:  "https://example.com/docs#install",
			wantKey: "/docs",
		},
		{
			name:    "default https port collapses",
			rawURL:  "https://example.com:443/pricing",
			wantKey: "/pricing",
		},
		{
			name:    "empty path becomes root",
			rawURL:  "https://example.com",
			wantKey: "/",
		},
		{
			name:    "pagination parameter stripped",
			rawURL:  "https://example.com/blog?page=4",
			wantKey: "/blog",
		},
		{
			name:    "non-pagination query survives sorted",
			rawURL:  "https://example.com/search?z=1&a=2&paged=9",
			wantKey: "/search?a=2&z=1",
		},
		{
			name:    "out of scope host rejected",
			rawURL:  "https://other.com/about",
			wantErr: true,
		},
		{
			name:    "mailto rejected",
			rawURL:  "mailto:team@example.com",
			wantErr: true,
		},
		{
			name:    "javascript scheme rejected",
			rawURL:  "javascript:void(0)",
			wantErr: true,
		},
		{
			name:    "stylesheet asset rejected",
			rawURL:  "https://example.com/assets/site.css",
			wantErr: true,
		},
		{
			name:    "image asset rejected",
			rawURL:  "https://example.com/logo.PNG",
			wantErr: true,
		},
		{
			name:    "relative URL without base rejected",
			rawURL:  "/about",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			u, err := norm.Normalize(tc.rawURL, tc.baseURL)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantKey, RouteKey(u))
		})
	}
}

func TestRouteKeyCollapsesPaginationVariants(t *testing.T) {
	t.Parallel()
	norm := newTestNormalizer(t, "https://example.com")

	variants := []string{
		"https://example.com/blog",
		"https://example.com/blog?page=2",
		"https://example.com/blog?paged=7&PAGE=3",
		"https://example.com/blog?offset=40",
	}

	keys := make(map[string]struct{})
	for _, v := range variants {
		u, err := norm.Normalize(v, "")
		require.NoError(t, err)
		keys[RouteKey(u)] = struct{}{}
	}
	assert.Len(t, keys, 1, "all pagination variants must collapse to one route")
}
