package orchestrator

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kestrelsec/a11yaudit/api/schemas"
	"github.com/kestrelsec/a11yaudit/internal/config"
)

// Orchestrator drives a fixed pool of browser sessions over the discovered
// routes in sequential batches of size Concurrency.
type Orchestrator struct {
	cfg       config.ScanConfig
	manager   schemas.BrowserManager
	collector *Collector
	origin    *url.URL
	logger    *zap.Logger
}

// New creates a scan orchestrator.
func New(cfg config.ScanConfig, manager schemas.BrowserManager, collector *Collector, origin *url.URL, logger *zap.Logger) (*Orchestrator, error) {
	if manager == nil || collector == nil || origin == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:       cfg,
		manager:   manager,
		collector: collector,
		origin:    origin,
		logger:    logger.Named("orchestrator"),
	}, nil
}

// Scan runs every route through the session pool and returns results indexed
// in discovery order, regardless of which session finished first. Per-route
// failures become errored results in-band; only pool setup and context
// cancellation are returned as errors.
func (o *Orchestrator) Scan(ctx context.Context, routes []schemas.Route) ([]schemas.ScanResult, error) {
	if len(routes) == 0 {
		return nil, nil
	}

	poolSize := o.cfg.Concurrency
	if poolSize > len(routes) {
		poolSize = len(routes)
	}

	pool, err := o.buildPool(ctx, poolSize)
	if err != nil {
		return nil, err
	}
	defer o.drainPool(pool, poolSize)

	o.logger.Info("Scan starting",
		zap.Int("routes", len(routes)),
		zap.Int("concurrency", poolSize),
		zap.Duration("timeout", o.cfg.Timeout))

	results := make([]schemas.ScanResult, len(routes))

	// Batches execute strictly in sequence: batch N+1 never starts before
	// batch N has fully settled.
	for start := 0; start < len(routes); start += poolSize {
		end := start + poolSize
		if end > len(routes) {
			end = len(routes)
		}

		g := new(errgroup.Group)
		for i := start; i < end; i++ {
			idx := i
			g.Go(func() error {
				// Exclusive checkout: one session per in-flight scan.
				session := <-pool
				defer func() { pool <- session }()

				results[idx] = o.scanRoute(ctx, session, routes[idx])
				return nil
			})
		}
		// Workers never return errors; failures travel in-band.
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return results, err
		}
	}

	return results, nil
}

// scanRoute performs the navigate / wait / evaluate sequence for one route.
// Every failure is caught locally and converted into an errored result.
func (o *Orchestrator) scanRoute(ctx context.Context, session schemas.BrowserSession, route schemas.Route) schemas.ScanResult {
	log := o.logger.With(zap.String("path", route.Path), zap.String("session", session.ID()))

	scanCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	target := o.routeURL(route)

	fail := func(stage string, err error) schemas.ScanResult {
		log.Warn("Route scan failed", zap.String("stage", stage), zap.Error(err))
		errored := route
		errored.Errored = true
		errored.ErrorReason = fmt.Sprintf("%s: %v", stage, err)
		return schemas.ScanResult{Route: errored, Errored: true}
	}

	if err := session.Navigate(scanCtx, target); err != nil {
		return fail("navigate", err)
	}
	if err := session.WaitForReady(scanCtx, o.cfg.WaitStrategy, o.cfg.Timeout); err != nil {
		return fail("wait", err)
	}

	violations, err := o.collector.Collect(scanCtx, session)
	if err != nil {
		return fail("evaluate", err)
	}

	log.Debug("Route scanned", zap.Int("violations", len(violations)))
	return schemas.ScanResult{Route: route, Violations: violations}
}

// routeURL reassembles the navigable URL from the origin and the route key.
func (o *Orchestrator) routeURL(route schemas.Route) string {
	ref, err := url.Parse(route.Path)
	if err != nil {
		return o.origin.Scheme + "://" + o.origin.Host + route.Path
	}
	return o.origin.ResolveReference(ref).String()
}

// buildPool creates the fixed session pool. Any creation failure tears down
// the sessions already opened.
func (o *Orchestrator) buildPool(ctx context.Context, size int) (chan schemas.BrowserSession, error) {
	pool := make(chan schemas.BrowserSession, size)
	for i := 0; i < size; i++ {
		session, err := o.manager.NewSession(ctx)
		if err != nil {
			o.drainPool(pool, i)
			return nil, fmt.Errorf("failed to create browser session %d: %w", i, err)
		}
		pool <- session
	}
	return pool, nil
}

// drainPool closes up to n sessions sitting in the pool.
func (o *Orchestrator) drainPool(pool chan schemas.BrowserSession, n int) {
	for i := 0; i < n; i++ {
		select {
		case session := <-pool:
			if err := session.Close(context.Background()); err != nil {
				o.logger.Warn("Failed to close session", zap.Error(err))
			}
		default:
			return
		}
	}
}
