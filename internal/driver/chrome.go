package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"

	"github.com/rahul/stepwright/internal/elements"
)

// ChromeConfig configures the chromedp-backed driver.
type ChromeConfig struct {
	Headless      bool
	ActionTimeout time.Duration
	WindowWidth   int
	WindowHeight  int
}

// ChromeDriver drives a local Chrome through the DevTools protocol. The
// browser starts on first use and stays open until Close.
type ChromeDriver struct {
	cfg ChromeConfig

	mu            sync.Mutex
	allocCtx      context.Context
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
}

func NewChromeDriver(cfg ChromeConfig) *ChromeDriver {
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = 60 * time.Second
	}
	if cfg.WindowWidth <= 0 || cfg.WindowHeight <= 0 {
		cfg.WindowWidth, cfg.WindowHeight = 1440, 900
	}
	return &ChromeDriver{cfg: cfg}
}

func (d *ChromeDriver) initBrowser() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browserCtx != nil {
		select {
		case <-d.browserCtx.Done():
			d.cleanup()
		default:
			return nil
		}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", d.cfg.Headless),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.WindowSize(d.cfg.WindowWidth, d.cfg.WindowHeight),
	)

	d.allocCtx, d.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	d.browserCtx, d.browserCancel = chromedp.NewContext(d.allocCtx)

	return chromedp.Run(d.browserCtx)
}

func (d *ChromeDriver) cleanup() {
	if d.browserCancel != nil {
		d.browserCancel()
	}
	if d.allocCancel != nil {
		d.allocCancel()
	}
	d.browserCtx = nil
	d.allocCtx = nil
}

func (d *ChromeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cleanup()
	return nil
}

// run executes actions in the browser tab, bounded by the action timeout
// and by ctx.
func (d *ChromeDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := d.initBrowser(); err != nil {
		return fmt.Errorf("failed to initialize browser: %w", err)
	}
	actionCtx, cancel := context.WithTimeout(d.browserCtx, d.cfg.ActionTimeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(actionCtx, actions...)
}

func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	if err := d.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// FindAndClick clicks the element addressed by target: its test id, the
// test id with the standard prefix, or its visible text.
func (d *ChromeDriver) FindAndClick(ctx context.Context, target string) error {
	sel, by, err := d.locate(ctx, target)
	if err != nil {
		return err
	}
	if err := d.run(ctx, chromedp.Click(sel, by, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("findAndClick %s: %w", target, err)
	}
	return nil
}

func (d *ChromeDriver) FindAndType(ctx context.Context, target, value string) error {
	sel, by, err := d.locate(ctx, target)
	if err != nil {
		return err
	}
	err = d.run(ctx,
		chromedp.Clear(sel, by),
		chromedp.SendKeys(sel, value, by, chromedp.NodeVisible),
	)
	if err != nil {
		return fmt.Errorf("findAndType %s: %w", target, err)
	}
	return nil
}

func (d *ChromeDriver) locate(ctx context.Context, target string) (string, chromedp.QueryOption, error) {
	candidates := []struct {
		sel string
		by  chromedp.QueryOption
	}{
		{testIDSelector(target), chromedp.ByQuery},
		{testIDSelector(elements.TestIDPrefix + target), chromedp.ByQuery},
		{textXPath(target), chromedp.BySearch},
	}
	for _, c := range candidates {
		var nodes []*cdp.Node
		if err := d.run(ctx, chromedp.Nodes(c.sel, &nodes, c.by, chromedp.AtLeast(0))); err != nil {
			return "", nil, fmt.Errorf("locate %s: %w", target, err)
		}
		if len(nodes) > 0 {
			return c.sel, c.by, nil
		}
	}
	return "", nil, fmt.Errorf("%w: %s", ErrElementNotFound, target)
}

func (d *ChromeDriver) Reload(ctx context.Context) error {
	if err := d.run(ctx, chromedp.Reload(), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

// WaitForText polls the page's visible text until it contains text.
func (d *ChromeDriver) WaitForText(ctx context.Context, text string, timeout time.Duration) error {
	literal, err := json.Marshal(text)
	if err != nil {
		return err
	}
	expr := fmt.Sprintf(`!!document.body && document.body.innerText.includes(%s)`, literal)

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		var found bool
		if err := d.run(ctx, chromedp.Evaluate(expr, &found)); err != nil {
			return fmt.Errorf("waitForText %q: %w", text, err)
		}
		if found {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("waitForText %q: not visible after %s", text, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *ChromeDriver) DOM(ctx context.Context) (string, error) {
	var html string
	err := d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		node, err := dom.GetDocument().Do(ctx)
		if err != nil {
			return err
		}
		html, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
		return err
	}))
	if err != nil {
		return "", fmt.Errorf("read dom: %w", err)
	}
	return html, nil
}

func (d *ChromeDriver) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := d.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	return nil
}

func testIDSelector(id string) string {
	return fmt.Sprintf(`[%s="%s"]`, elements.TestIDAttr, cssEscaped(id))
}

func cssEscaped(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, `"`, `\"`)
}

// textXPath matches elements whose own normalised text equals text.
func textXPath(text string) string {
	return fmt.Sprintf(`//*[normalize-space(text())=%s]`, xpathLiteral(strings.TrimSpace(text)))
}

func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, `'`) {
		return `'` + s + `'`
	}
	parts := strings.Split(s, `"`)
	return `concat("` + strings.Join(parts, `", '"', "`) + `")`
}
