package discovery

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxSitemapFetches bounds how many sitemap documents one run will download,
// including children of a sitemap index.
const maxSitemapFetches = 10

// HTTPClient is the minimal fetch surface the seeder needs, kept as an
// interface so tests can stub responses.
type HTTPClient interface {
	Get(ctx context.Context, url string) ([]byte, int, error)
}

type defaultHTTPClient struct {
	client *http.Client
}

func (c *defaultHTTPClient) Get(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// NewHTTPClient returns the production fetcher used for robots/sitemap files.
func NewHTTPClient(timeout time.Duration) HTTPClient {
	return &defaultHTTPClient{client: &http.Client{Timeout: timeout}}
}

// Seeder supplements BFS discovery with routes listed in the target's
// robots.txt sitemaps. Everything here is best effort: a site without a
// sitemap is not an error.
type Seeder struct {
	client  HTTPClient
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewSeeder creates a sitemap seeder. ratePerSec limits outbound fetches so
// the audit stays a polite crawler.
func NewSeeder(client HTTPClient, ratePerSec float64, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ratePerSec <= 0 {
		ratePerSec = 2.0
	}
	return &Seeder{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), 1),
		logger:  logger.Named("sitemap"),
	}
}

// Seed returns every URL found in the origin's sitemaps, in document order.
func (s *Seeder) Seed(ctx context.Context, origin *url.URL) []string {
	sitemaps := s.sitemapLocations(ctx, origin)

	var urls []string
	fetches := 0
	for len(sitemaps) > 0 && fetches < maxSitemapFetches {
		loc := sitemaps[0]
		sitemaps = sitemaps[1:]
		fetches++

		body, ok := s.fetch(ctx, loc)
		if !ok {
			continue
		}

		locs, children, err := parseSitemap(body)
		if err != nil {
			s.logger.Debug("Failed to parse sitemap", zap.String("url", loc), zap.Error(err))
			continue
		}
		urls = append(urls, locs...)
		sitemaps = append(sitemaps, children...)
	}

	s.logger.Info("Sitemap seeding finished", zap.Int("urls", len(urls)), zap.Int("fetches", fetches))
	return urls
}

// sitemapLocations reads robots.txt for Sitemap directives, falling back to
// the conventional /sitemap.xml.
func (s *Seeder) sitemapLocations(ctx context.Context, origin *url.URL) []string {
	robotsURL := origin.Scheme + "://" + origin.Host + "/robots.txt"

	var locations []string
	if body, ok := s.fetch(ctx, robotsURL); ok {
		scanner := bufio.NewScanner(bytes.NewReader(body))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if len(line) > 8 && strings.EqualFold(line[:8], "sitemap:") {
				if loc := strings.TrimSpace(line[8:]); loc != "" {
					locations = append(locations, loc)
				}
			}
		}
	}

	if len(locations) == 0 {
		locations = append(locations, origin.Scheme+"://"+origin.Host+"/sitemap.xml")
	}
	return locations
}

func (s *Seeder) fetch(ctx context.Context, rawURL string) ([]byte, bool) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, false
	}
	body, status, err := s.client.Get(ctx, rawURL)
	if err != nil || status != http.StatusOK {
		s.logger.Debug("Sitemap fetch failed", zap.String("url", rawURL), zap.Int("status", status), zap.Error(err))
		return nil, false
	}
	return body, true
}

// parseSitemap extracts page URLs from a urlset document, or child sitemap
// URLs from a sitemapindex.
func parseSitemap(body []byte) (urls, children []string, err error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, nil, err
	}

	root := doc.Root()
	if root == nil {
		return nil, nil, fmt.Errorf("sitemap has no root element")
	}

	switch root.Tag {
	case "urlset":
		for _, loc := range root.FindElements("./url/loc") {
			if text := strings.TrimSpace(loc.Text()); text != "" {
				urls = append(urls, text)
			}
		}
	case "sitemapindex":
		for _, loc := range root.FindElements("./sitemap/loc") {
			if text := strings.TrimSpace(loc.Text()); text != "" {
				children = append(children, text)
			}
		}
	default:
		return nil, nil, fmt.Errorf("unexpected sitemap root element: %s", root.Tag)
	}
	return urls, children, nil
}
