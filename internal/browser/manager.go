// internal/browser/manager.go
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

	"github.com/xkilldash9x/jobfill/internal/config"
)

const (
	launchTimeout       = 30 * time.Second
	shutdownGracePeriod = 15 * time.Second
)

// Manager owns the Chrome process. Every Page is a tab derived from its
// allocator context.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	mu    sync.Mutex
	pages map[string]*Page
	// wg tracks open pages for a graceful shutdown.
	wg sync.WaitGroup
}

// NewManager launches the browser and verifies it responds.
func NewManager(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		logger: logger.Named("browser_manager"),
		cfg:    cfg,
		pages:  make(map[string]*Page),
	}
	if err := m.launchBrowser(ctx); err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return m, nil
}

// launchBrowser prepares allocator options and starts the browser process.
func (m *Manager) launchBrowser(ctx context.Context) error {
	m.logger.Info("Initializing browser allocator...", zap.Bool("headless", m.cfg.Headless))

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, DefaultAllocatorOptions(m.cfg)...)
	m.allocatorCtx = allocCtx
	m.allocatorCancel = cancel

	// Run a trivial task to confirm the browser is alive.
	testCtx, cancelTest := context.WithTimeout(allocCtx, launchTimeout)
	defer cancelTest()
	testCtx, cancelTab := chromedp.NewContext(testCtx)
	defer cancelTab()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		m.allocatorCancel()
		return fmt.Errorf("browser failed to start or respond: %w", err)
	}
	m.logger.Info("Browser launched successfully and is responsive.")
	return nil
}

// DefaultAllocatorOptions assembles the exec allocator flags for cfg.
// Custom args may be given as "--flag" or "--flag=value".
func DefaultAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-sync", true),
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless, chromedp.DisableGPU)
	}
	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}

	for _, arg := range cfg.Args {
		key, value, found := strings.Cut(arg, "=")
		key = strings.TrimPrefix(key, "--")
		if key == "" {
			continue
		}
		if found {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(key, true))
		}
	}

	// Flags required for running inside containers.
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.NoSandbox,
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	}
	return opts
}

// NewPage opens a tab with the keyed DOM library and the execution listener
// installed on every document it loads.
func (m *Manager) NewPage(ctx context.Context) (*Page, error) {
	if m.allocatorCtx == nil || m.allocatorCtx.Err() != nil {
		return nil, fmt.Errorf("browser manager is not running")
	}
	tabCtx, cancel := chromedp.NewContext(m.allocatorCtx)

	p := newPage(tabCtx, cancel, m.cfg, m.logger)
	m.wg.Add(1)
	p.onClose = func() {
		m.mu.Lock()
		delete(m.pages, p.ID())
		m.mu.Unlock()
		m.wg.Done()
	}

	if err := p.initialize(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to initialize page: %w", err)
	}

	m.mu.Lock()
	m.pages[p.ID()] = p
	m.mu.Unlock()
	m.logger.Debug("New page created.", zap.String("page_id", p.ID()))
	return p, nil
}

// Shutdown closes every page and then terminates the browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down browser manager.")

	m.mu.Lock()
	open := make([]*Page, 0, len(m.pages))
	for _, p := range m.pages {
		open = append(open, p)
	}
	m.mu.Unlock()
	for _, p := range open {
		p.Close()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for pages to close. Proceeding with forceful shutdown.", zap.Error(ctx.Err()))
	}

	if m.allocatorCancel == nil {
		return nil
	}
	// chromedp.Cancel blocks until the browser exits; bound it.
	cancelDone := make(chan error, 1)
	go func() { cancelDone <- chromedp.Cancel(m.allocatorCtx) }()
	select {
	case err := <-cancelDone:
		if err != nil && err != context.Canceled {
			m.logger.Warn("Error during browser shutdown.", zap.Error(err))
		}
	case <-time.After(shutdownGracePeriod):
		m.logger.Warn("Browser shutdown timed out.", zap.Duration("grace", shutdownGracePeriod))
	}
	m.allocatorCancel()
	m.logger.Info("Browser manager shutdown complete.")
	return nil
}
