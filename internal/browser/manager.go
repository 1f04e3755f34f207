package browser

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/kestrelsec/a11yaudit/api/schemas"
	"github.com/kestrelsec/a11yaudit/internal/config"
)

// Manager owns the headless browser process. All sessions are tabs derived
// from one allocator context, which keeps the process count at exactly one
// no matter how many routes are in flight.
type Manager struct {
	logger *zap.Logger
	cfg    *config.Config

	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	// wg tracks open sessions so shutdown can wait for them.
	wg sync.WaitGroup
}

// NewManager launches the browser process and verifies it responds.
func NewManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		logger: logger.Named("browser"),
		cfg:    cfg,
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, m.buildAllocatorOptions()...)
	m.allocatorCtx = allocCtx
	m.allocatorCancel = cancel

	// Confirm the browser actually starts before handing the manager out.
	testCtx, cancelTest := context.WithTimeout(allocCtx, 30*time.Second)
	defer cancelTest()
	testCtx, cancelTab := chromedp.NewContext(testCtx)
	defer cancelTab()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		m.allocatorCancel()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	m.logger.Info("Browser launched", zap.Bool("headless", cfg.Browser.Headless))
	return m, nil
}

// buildAllocatorOptions assembles the launch flags for the audit browser.
func (m *Manager) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	opts = append(opts,
		chromedp.Flag("headless", m.cfg.Browser.Headless),
		chromedp.Flag("ignore-certificate-errors", m.cfg.Browser.IgnoreTLSErrors),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", m.cfg.Browser.Headless),
	)
	if m.cfg.Browser.DisableCache {
		opts = append(opts, chromedp.Flag("disk-cache-size", "0"))
	}
	if m.cfg.Browser.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(m.cfg.Browser.UserAgent))
	}

	// Custom arguments from the config file, "--name=value" or "--name".
	for _, arg := range m.cfg.Browser.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			opts = append(opts, chromedp.Flag(name, parts[1]))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}

	// Containers on Linux need these to run Chrome at all.
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	}

	return opts
}

// NewSession opens an isolated tab implementing schemas.BrowserSession.
func (m *Manager) NewSession(ctx context.Context) (schemas.BrowserSession, error) {
	session, err := newSession(m.allocatorCtx, m.cfg.Scan.PostLoadWait, m.logger)
	if err != nil {
		return nil, err
	}
	m.wg.Add(1)
	return &sessionWrapper{Session: session, wg: &m.wg}, nil
}

// NavigateAndExtract satisfies the discovery crawler's link-extraction
// dependency using a short-lived tab.
func (m *Manager) NavigateAndExtract(ctx context.Context, url string) ([]string, error) {
	session, err := m.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := session.Close(context.Background()); err != nil {
			m.logger.Warn("Failed to close crawl session", zap.Error(err))
		}
	}()

	if err := session.Navigate(ctx, url); err != nil {
		return nil, err
	}
	if err := session.WaitForReady(ctx, schemas.WaitLoad, 0); err != nil {
		return nil, err
	}
	return session.ExtractLinks(ctx)
}

// Shutdown waits for open sessions and terminates the browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline exceeded, forcing browser termination", zap.Error(ctx.Err()))
	}

	if m.allocatorCancel != nil {
		m.allocatorCancel()
		<-m.allocatorCtx.Done()
	}
	return nil
}

// sessionWrapper decrements the manager's WaitGroup exactly once on close.
type sessionWrapper struct {
	*Session
	wg     *sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

func (sw *sessionWrapper) Close(ctx context.Context) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.closed {
		return nil
	}
	err := sw.Session.Close(ctx)
	sw.closed = true
	sw.wg.Done()
	return err
}
