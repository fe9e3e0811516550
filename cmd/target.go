// File: cmd/target.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/browser"
	"github.com/xkilldash9x/jobfill/internal/browser/dom"
	"github.com/xkilldash9x/jobfill/internal/browser/session"
	"github.com/xkilldash9x/jobfill/internal/config"
	"github.com/xkilldash9x/jobfill/internal/profile"
)

// targetSpec names the page a command works on.
type targetSpec struct {
	URL  string
	HTML string
	// Live opens the page in Chrome instead of the offline session.
	Live bool
}

func (t targetSpec) validate() error {
	switch {
	case t.URL == "" && t.HTML == "":
		return fmt.Errorf("one of --url or --html is required")
	case t.URL != "" && t.HTML != "":
		return fmt.Errorf("--url and --html are mutually exclusive")
	}
	return nil
}

// target is an open page plus whatever owns it.
type target struct {
	adapter dom.Adapter
	session *session.Session
	page    *browser.Page
	closers []func()
}

func (t *target) Close() {
	for i := len(t.closers) - 1; i >= 0; i-- {
		t.closers[i]()
	}
}

// WriteMarkup saves the filled document to path.
func (t *target) WriteMarkup(ctx context.Context, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	if t.session != nil {
		return t.session.Render(f)
	}
	markup, err := t.adapter.Markup(ctx)
	if err != nil {
		return err
	}
	_, err = f.WriteString(markup)
	return err
}

// openTarget loads spec into the offline session or a live Chrome tab.
func openTarget(ctx context.Context, cfg config.Interface, spec targetSpec, logger *zap.Logger) (*target, error) {
	if !spec.Live {
		s := session.New(logger)
		t := &target{adapter: s, session: s, closers: []func(){s.Close}}
		var err error
		if spec.HTML != "" {
			err = s.LoadFile(spec.HTML)
		} else {
			err = s.Navigate(ctx, spec.URL)
		}
		if err != nil {
			t.Close()
			return nil, err
		}
		return t, nil
	}

	mgr, err := browser.NewManager(ctx, cfg.Browser(), logger)
	if err != nil {
		return nil, err
	}
	t := &target{closers: []func(){func() { _ = mgr.Shutdown(context.Background()) }}}
	page, err := mgr.NewPage(ctx)
	if err != nil {
		t.Close()
		return nil, err
	}
	t.page, t.adapter = page, page
	t.closers = append(t.closers, page.Close)

	url := spec.URL
	if spec.HTML != "" {
		abs, err := filepath.Abs(spec.HTML)
		if err != nil {
			t.Close()
			return nil, fmt.Errorf("failed to resolve %s: %w", spec.HTML, err)
		}
		url = "file://" + filepath.ToSlash(abs)
	}
	if err := page.Navigate(ctx, url); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

// prepared is the state every fill command starts from.
type prepared struct {
	target  *target
	source  profile.Source
	profile *schemas.Profile
	closers []func()
}

func (p *prepared) Close() {
	if p.target != nil {
		p.target.Close()
	}
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

// prepare loads the profile and opens the page concurrently. Browser start
// and profile I/O do not depend on each other.
func prepare(ctx context.Context, cfg config.Interface, spec targetSpec, logger *zap.Logger) (*prepared, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	src, closeSource, err := profile.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile source: %w", err)
	}
	out := &prepared{source: src, closers: []func(){closeSource}}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := src.Load(gctx)
		if err != nil {
			return fmt.Errorf("failed to load profile: %w", err)
		}
		out.profile = p
		return nil
	})
	g.Go(func() error {
		// The browser outlives the group, so it gets the command context.
		t, err := openTarget(ctx, cfg, spec, logger)
		if err != nil {
			return fmt.Errorf("failed to open page: %w", err)
		}
		out.target = t
		return nil
	})
	if err := g.Wait(); err != nil {
		out.Close()
		return nil, err
	}
	return out, nil
}
