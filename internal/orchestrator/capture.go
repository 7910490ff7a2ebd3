package orchestrator

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/rahul/stepwright/internal/action"
	"github.com/rahul/stepwright/internal/driver"
	"github.com/rahul/stepwright/internal/elements"
)

// page is one observation of the browser, persisted in the run workspace.
type page struct {
	DOM            string
	DOMPath        string
	ElementsPath   string
	ScreenshotPath string
}

// capture reads the DOM, merges its test elements into the snapshot and
// takes a screenshot. Step is the action index the capture follows, or -1.
func (r *run) capture(ctx context.Context, st *scenarioState, label string, step int) (page, error) {
	idx := st.sc.Index
	p := page{
		DOMPath:        r.ws.StepFile(idx, label, ".html"),
		ElementsPath:   r.ws.StepFile(idx, label, ".json"),
		ScreenshotPath: r.ws.StepFile(idx, label, ".png"),
	}

	html, err := r.o.driver.DOM(ctx)
	if err != nil {
		return p, &ActionExecutionError{Scenario: idx, Step: step, Action: "getDom", Err: err}
	}
	p.DOM = html
	if err := r.ws.Write(p.DOMPath, []byte(html)); err != nil {
		return p, err
	}

	found, err := elements.Extract(strings.NewReader(html))
	if err != nil {
		return p, err
	}
	if added := st.snap.Merge(found...); added > 0 {
		log.Printf("[Scenario %d] %s: %d new element(s), %d known", idx, label, added, st.snap.Len())
	}
	data, err := json.MarshalIndent(st.snap, "", "  ")
	if err != nil {
		return p, err
	}
	if err := r.ws.Write(p.ElementsPath, data); err != nil {
		return p, err
	}

	// Same directory as the DOM file, which now exists.
	if err := r.o.driver.Screenshot(ctx, p.ScreenshotPath); err != nil {
		return p, &ActionExecutionError{Scenario: idx, Step: step, Action: "screenshot", Err: err}
	}
	return p, nil
}

// driverHandler executes actions on the automation driver.
type driverHandler struct {
	d driver.Driver
}

func (h driverHandler) FindAndClick(ctx context.Context, a action.FindAndClick) error {
	return h.d.FindAndClick(ctx, a.Target)
}

func (h driverHandler) FindAndType(ctx context.Context, a action.FindAndType) error {
	return h.d.FindAndType(ctx, a.Target, a.Value)
}

func (h driverHandler) Reload(ctx context.Context, _ action.Reload) error {
	return h.d.Reload(ctx)
}

func (h driverHandler) WaitForText(ctx context.Context, a action.WaitForText) error {
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = action.DefaultWaitTimeout
	}
	return h.d.WaitForText(ctx, a.Text, timeout)
}
