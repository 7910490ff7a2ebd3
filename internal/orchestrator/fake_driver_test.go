package orchestrator_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rahul/stepwright/internal/driver"
)

// fakeDriver serves a fixed page. Clicks can swap the page and any target
// can be made to fail.
type fakeDriver struct {
	mu       sync.Mutex
	page     string
	onClick  map[string]string
	failOn   map[string]error
	calls    []string
	navTo    []string
	shotsErr error
}

func newFakeDriver(page string) *fakeDriver {
	return &fakeDriver{page: page, onClick: map[string]string{}, failOn: map[string]error{}}
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.navTo = append(d.navTo, url)
	return nil
}

func (d *fakeDriver) FindAndClick(ctx context.Context, target string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "click:"+target)
	if err := d.failOn[target]; err != nil {
		return err
	}
	if next, ok := d.onClick[target]; ok {
		d.page = next
	}
	return nil
}

func (d *fakeDriver) FindAndType(ctx context.Context, target, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "type:"+target+"="+value)
	if err := d.failOn[target]; err != nil {
		return err
	}
	return nil
}

func (d *fakeDriver) Reload(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "reload")
	return nil
}

func (d *fakeDriver) WaitForText(ctx context.Context, text string, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "wait:"+text)
	if err := d.failOn[text]; err != nil {
		return fmt.Errorf("%w: %q after %s", err, text, timeout)
	}
	return nil
}

func (d *fakeDriver) DOM(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.page, nil
}

func (d *fakeDriver) Screenshot(ctx context.Context, path string) error {
	if d.shotsErr != nil {
		return d.shotsErr
	}
	return os.WriteFile(path, []byte("\x89PNG fake"), 0o644)
}

func (d *fakeDriver) Close() error { return nil }

func (d *fakeDriver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

var _ driver.Driver = (*fakeDriver)(nil)
