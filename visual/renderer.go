package visual

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// ErrRendererUnavailable means no browser could be found. The visual pass is
// skipped rather than failed.
var ErrRendererUnavailable = errors.New("visual: rendering collaborator unavailable")

// Renderer captures a full-page PNG of url into path.
type Renderer interface {
	Screenshot(ctx context.Context, url, path string) error
	Close() error
}

// RendererFactory opens a rendering session.
type RendererFactory func(ctx context.Context) (Renderer, error)

type RodConfig struct {
	// Bin is the browser executable. Empty means look it up on the system;
	// browsers are never downloaded.
	Bin            string
	ViewportWidth  int
	ViewportHeight int
	NavTimeout     time.Duration
	Logger         *slog.Logger
}

func (c *RodConfig) defaults() {
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = 1440
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = 900
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// RodRenderer drives one headless Chrome session through go-rod.
type RodRenderer struct {
	cfg     RodConfig
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// NewRodRenderer launches a headless browser.
func NewRodRenderer(ctx context.Context, cfg RodConfig) (*RodRenderer, error) {
	cfg.defaults()
	log := cfg.Logger

	bin := cfg.Bin
	if bin == "" {
		path, ok := launcher.LookPath()
		if !ok {
			return nil, ErrRendererUnavailable
		}
		bin = path
	} else if _, err := os.Stat(bin); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRendererUnavailable, bin)
	}

	l := launcher.New().Bin(bin).Headless(true)
	u, err := l.Launch()
	if err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("renderer: launch: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("renderer: connect: %w", err)
	}
	log.Info("renderer: launched headless browser", "bin", bin,
		"viewport", fmt.Sprintf("%dx%d", cfg.ViewportWidth, cfg.ViewportHeight))

	return &RodRenderer{cfg: cfg, browser: b, lnch: l}, nil
}

// RodFactory returns a RendererFactory for cfg.
func RodFactory(cfg RodConfig) RendererFactory {
	return func(ctx context.Context) (Renderer, error) {
		r, err := NewRodRenderer(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

func (r *RodRenderer) Screenshot(ctx context.Context, url, path string) error {
	navCtx, cancel := context.WithTimeout(ctx, r.cfg.NavTimeout)
	defer cancel()

	page, err := r.browser.Context(navCtx).Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return fmt.Errorf("renderer: open page: %w", err)
	}
	defer page.Close()

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             r.cfg.ViewportWidth,
		Height:            r.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("renderer: viewport: %w", err)
	}
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("renderer: navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("renderer: wait load %s: %w", url, err)
	}

	data, err := page.Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return fmt.Errorf("renderer: screenshot %s: %w", url, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (r *RodRenderer) Close() error {
	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	if r.lnch != nil {
		r.lnch.Cleanup()
		r.lnch = nil
	}
	return err
}
