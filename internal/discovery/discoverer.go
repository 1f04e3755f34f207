package discovery

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"github.com/kestrelsec/a11yaudit/api/schemas"
	"github.com/kestrelsec/a11yaudit/internal/config"
)

// Route source labels.
const (
	sourceSeed    = "seed"
	sourceSitemap = "sitemap"
	sourceCrawler = "crawler"
)

// LinkExtractor is the browser-driver surface the crawl depends on: load a
// page and return every link on it.
type LinkExtractor interface {
	NavigateAndExtract(ctx context.Context, url string) ([]string, error)
}

// RouteSeeder supplements the crawl with externally listed URLs (sitemaps).
type RouteSeeder interface {
	Seed(ctx context.Context, origin *url.URL) []string
}

// crawlTask is one queued page, carrying the full URL to navigate and the
// depth it was discovered at.
type crawlTask struct {
	url   string
	key   string
	depth int
}

// Discoverer performs the bounded breadth-first crawl that produces the
// route set for one audit run.
type Discoverer struct {
	cfg     config.DiscoveryConfig
	scope   *Scope
	norm    *URLNormalizer
	browser LinkExtractor
	seeder  RouteSeeder
	logger  *zap.Logger
}

// New creates a route discoverer. seeder may be nil to disable sitemap
// supplementation.
func New(cfg config.DiscoveryConfig, scope *Scope, browser LinkExtractor, seeder RouteSeeder, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{
		cfg:     cfg,
		scope:   scope,
		norm:    NewURLNormalizer(scope, cfg.PaginationParams),
		browser: browser,
		seeder:  seeder,
		logger:  logger.Named("discovery"),
	}
}

// Discover crawls the origin breadth-first and returns at most MaxRoutes
// routes, homepage first. Navigation failures mark their route errored but
// never stop the crawl.
func (d *Discoverer) Discover(ctx context.Context) ([]schemas.Route, error) {
	origin := d.scope.Origin()

	homepage, err := d.norm.Normalize(origin.String(), "")
	if err != nil {
		return nil, err
	}

	// visited maps route key to its index in routes, doubling as the
	// membership set that keeps cyclic link graphs finite.
	visited := make(map[string]int)
	routes := make([]schemas.Route, 0, d.cfg.MaxRoutes)
	var queue []crawlTask

	add := func(u *url.URL, depth int, source string) (int, bool) {
		key := RouteKey(u)
		if _, seen := visited[key]; seen {
			return 0, false
		}
		if len(routes) >= d.cfg.MaxRoutes {
			return 0, false
		}
		visited[key] = len(routes)
		routes = append(routes, schemas.Route{
			Path:            key,
			DepthDiscovered: depth,
			Source:          source,
		})
		return visited[key], true
	}

	// The homepage is always route zero.
	add(homepage, 0, sourceSeed)
	queue = append(queue, crawlTask{url: homepage.String(), key: RouteKey(homepage), depth: 0})

	// Sitemap entries supplement BFS: they claim budget first, and the crawl
	// fills whatever remains. They are recorded but not expanded.
	if d.seeder != nil {
		seeded := 0
		for _, raw := range d.seeder.Seed(ctx, origin) {
			u, err := d.norm.Normalize(raw, "")
			if err != nil {
				continue
			}
			if _, ok := add(u, 0, sourceSitemap); ok {
				seeded++
			}
			if len(routes) >= d.cfg.MaxRoutes {
				break
			}
		}
		if seeded > 0 {
			d.logger.Info("Seeded routes from sitemap", zap.Int("count", seeded))
		}
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return routes, err
		}

		task := queue[0]
		queue = queue[1:]

		// A route is only expanded while strictly below the depth limit.
		if task.depth >= d.cfg.CrawlDepth {
			continue
		}

		links, err := func() ([]string, error) {
			navCtx := ctx
			if d.cfg.NavTimeout > 0 {
				var cancel context.CancelFunc
				navCtx, cancel = context.WithTimeout(ctx, d.cfg.NavTimeout)
				defer cancel()
			}
			return d.browser.NavigateAndExtract(navCtx, task.url)
		}()
		if err != nil {
			// Partial-failure tolerance: record the failure, skip this
			// route's children, keep draining the queue.
			i := visited[task.key]
			routes[i].Errored = true
			routes[i].ErrorReason = err.Error()
			d.logger.Warn("Crawl navigation failed",
				zap.String("url", task.url), zap.Error(err))
			continue
		}

		for _, link := range links {
			u, err := d.norm.Normalize(link, task.url)
			if err != nil {
				d.logger.Debug("Discarding link", zap.String("link", link), zap.Error(err))
				continue
			}
			if _, ok := add(u, task.depth+1, sourceCrawler); !ok {
				continue
			}
			queue = append(queue, crawlTask{url: u.String(), key: RouteKey(u), depth: task.depth + 1})
		}

		if len(routes) >= d.cfg.MaxRoutes {
			d.logger.Info("Route budget reached, stopping discovery early",
				zap.Int("max_routes", d.cfg.MaxRoutes))
			break
		}
	}

	d.logger.Info("Discovery finished", zap.Int("routes", len(routes)))
	return routes, nil
}

// RoutesFromOverride converts an explicit route list into the route set,
// bypassing discovery entirely. Paths are used verbatim after normalization
// against the origin.
func RoutesFromOverride(scope *Scope, paths []string, paginationParams []string) []schemas.Route {
	norm := NewURLNormalizer(scope, paginationParams)
	origin := scope.Origin()

	seen := make(map[string]struct{}, len(paths))
	routes := make([]schemas.Route, 0, len(paths))
	for _, p := range paths {
		u, err := norm.Normalize(p, origin.String())
		if err != nil {
			continue
		}
		key := RouteKey(u)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		routes = append(routes, schemas.Route{Path: key, Source: "override"})
	}
	return routes
}
