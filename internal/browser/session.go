package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kestrelsec/a11yaudit/api/schemas"
)

// networkQuietWindow is how long the resource timeline must stay silent
// before the networkidle strategy considers the page settled.
const networkQuietWindow = 500 * time.Millisecond

// Session is one isolated browser tab.
type Session struct {
	id           string
	tabCtx       context.Context
	tabCancel    context.CancelFunc
	postLoadWait time.Duration
	logger       *zap.Logger
}

func newSession(allocatorCtx context.Context, postLoadWait time.Duration, logger *zap.Logger) (*Session, error) {
	tabCtx, tabCancel := chromedp.NewContext(allocatorCtx)

	// Materialize the tab now so session creation failures surface here,
	// not in the middle of a scan.
	if err := chromedp.Run(tabCtx, chromedp.Navigate("about:blank")); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open browser tab: %w", err)
	}

	id := uuid.NewString()[:8]
	return &Session{
		id:           id,
		tabCtx:       tabCtx,
		tabCancel:    tabCancel,
		postLoadWait: postLoadWait,
		logger:       logger.Named("session").With(zap.String("session", id)),
	}, nil
}

// ID returns the session's short unique ID.
func (s *Session) ID() string {
	return s.id
}

// run executes chromedp actions on the tab while honoring the caller's
// deadline; the tab context itself has none.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// Navigate loads the URL in this tab.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating", zap.String("url", url))
	return s.run(ctx, chromedp.Navigate(url))
}

// ExtractLinks returns the resolved href of every anchor on the page.
func (s *Session) ExtractLinks(ctx context.Context) ([]string, error) {
	var links []string
	err := s.run(ctx, chromedp.Evaluate(
		`Array.from(document.querySelectorAll('a[href]')).map(a => a.href)`, &links))
	if err != nil {
		return nil, err
	}
	return links, nil
}

// WaitForReady blocks until the requested readiness signal fires, bounded by
// timeout (and by ctx, whichever is sooner).
func (s *Session) WaitForReady(ctx context.Context, strategy schemas.WaitStrategy, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	switch strategy {
	case schemas.WaitLoad:
		return s.waitLoaded(ctx)
	case schemas.WaitNetworkIdle:
		if err := s.waitLoaded(ctx); err != nil {
			return err
		}
		return s.waitNetworkQuiet(ctx)
	case schemas.WaitDelay:
		if err := s.waitLoaded(ctx); err != nil {
			return err
		}
		return s.sleep(ctx, s.postLoadWait)
	default:
		return fmt.Errorf("unknown wait strategy: %s", strategy)
	}
}

func (s *Session) waitLoaded(ctx context.Context) error {
	var ready bool
	return s.run(ctx, chromedp.Poll(
		`document.readyState === 'complete'`, &ready,
		chromedp.WithPollingInterval(100*time.Millisecond)))
}

// waitNetworkQuiet polls the resource timing buffer until no resource has
// finished loading for the quiet window.
func (s *Session) waitNetworkQuiet(ctx context.Context) error {
	expr := fmt.Sprintf(`(() => {
		const ends = performance.getEntriesByType('resource').map(r => r.responseEnd);
		const last = ends.length ? Math.max(...ends) : 0;
		return performance.now() - last > %d;
	})()`, networkQuietWindow.Milliseconds())

	var quiet bool
	return s.run(ctx, chromedp.Poll(expr, &quiet,
		chromedp.WithPollingInterval(200*time.Millisecond)))
}

func (s *Session) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Evaluate runs a script in the page, awaiting promises, and unmarshals the
// JSON result into out. Pass a nil out to discard the result.
func (s *Session) Evaluate(ctx context.Context, script string, out any) error {
	return s.run(ctx, chromedp.Evaluate(script, out,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}))
}

// Close releases the tab.
func (s *Session) Close(ctx context.Context) error {
	s.tabCancel()
	return nil
}
