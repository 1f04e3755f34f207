package discovery

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockHTTPClient serves canned bodies keyed by URL. Unknown URLs 404.
type mockHTTPClient struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	requests  []string
}

func (m *mockHTTPClient) Get(ctx context.Context, rawURL string) ([]byte, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, rawURL)
	if err, ok := m.errs[rawURL]; ok {
		return nil, 0, err
	}
	if body, ok := m.responses[rawURL]; ok {
		return []byte(body), http.StatusOK, nil
	}
	return nil, http.StatusNotFound, nil
}

func (m *mockHTTPClient) requestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func testOrigin(t *testing.T) *url.URL {
	t.Helper()
	u, err := url.Parse("https://example.com")
	require.NoError(t, err)
	return u
}

const urlsetDoc = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/about</loc></url>
  <url><loc> https://example.com/pricing </loc></url>
  <url><loc></loc></url>
</urlset>`

func TestSeederReadsRobotsDirectives(t *testing.T) {
	t.Parallel()
	client := &mockHTTPClient{responses: map[string]string{
		"https://example.com/robots.txt":         "User-agent: *\nDisallow: /admin\nSitemap: https://example.com/custom-sitemap.xml\n",
		"https://example.com/custom-sitemap.xml": urlsetDoc,
	}}
	seeder := NewSeeder(client, 100, zap.NewNop())

	urls := seeder.Seed(context.Background(), testOrigin(t))
	assert.Equal(t, []string{"https://example.com/about", "https://example.com/pricing"}, urls)
}

func TestSeederFallsBackToConventionalSitemap(t *testing.T) {
	t.Parallel()
	client := &mockHTTPClient{responses: map[string]string{
		"https://example.com/sitemap.xml": urlsetDoc,
	}}
	seeder := NewSeeder(client, 100, zap.NewNop())

	urls := seeder.Seed(context.Background(), testOrigin(t))
	assert.Len(t, urls, 2)
}

func TestSeederFollowsSitemapIndexOneLevel(t *testing.T) {
	t.Parallel()
	index := `<?xml version="1.0"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://example.com/sitemap-pages.xml</loc></sitemap>
</sitemapindex>`
	client := &mockHTTPClient{responses: map[string]string{
		"https://example.com/sitemap.xml":       index,
		"https://example.com/sitemap-pages.xml": urlsetDoc,
	}}
	seeder := NewSeeder(client, 100, zap.NewNop())

	urls := seeder.Seed(context.Background(), testOrigin(t))
	assert.Equal(t, []string{"https://example.com/about", "https://example.com/pricing"}, urls)
}

func TestSeederBoundsFetchCount(t *testing.T) {
	t.Parallel()
	// A sitemap index pointing at itself would otherwise loop forever.
	selfIndex := `<sitemapindex><sitemap><loc>https://example.com/sitemap.xml</loc></sitemap></sitemapindex>`
	client := &mockHTTPClient{responses: map[string]string{
		"https://example.com/robots.txt":  "Sitemap: https://example.com/sitemap.xml",
		"https://example.com/sitemap.xml": selfIndex,
	}}
	seeder := NewSeeder(client, 1000, zap.NewNop())

	urls := seeder.Seed(context.Background(), testOrigin(t))
	assert.Empty(t, urls)
	// robots.txt plus at most maxSitemapFetches sitemap documents.
	assert.LessOrEqual(t, client.requestCount(), maxSitemapFetches+1)
}

func TestSeederToleratesFailures(t *testing.T) {
	t.Parallel()

	t.Run("missing sitemap yields no urls", func(t *testing.T) {
		t.Parallel()
		client := &mockHTTPClient{}
		seeder := NewSeeder(client, 100, zap.NewNop())
		assert.Empty(t, seeder.Seed(context.Background(), testOrigin(t)))
	})

	t.Run("network errors are swallowed", func(t *testing.T) {
		t.Parallel()
		client := &mockHTTPClient{errs: map[string]error{
			"https://example.com/robots.txt":  errors.New("connection refused"),
			"https://example.com/sitemap.xml": errors.New("connection refused"),
		}}
		seeder := NewSeeder(client, 100, zap.NewNop())
		assert.Empty(t, seeder.Seed(context.Background(), testOrigin(t)))
	})

	t.Run("malformed xml is skipped", func(t *testing.T) {
		t.Parallel()
		client := &mockHTTPClient{responses: map[string]string{
			"https://example.com/sitemap.xml": "<urlset><url><loc>broken",
		}}
		seeder := NewSeeder(client, 100, zap.NewNop())
		assert.Empty(t, seeder.Seed(context.Background(), testOrigin(t)))
	})
}
