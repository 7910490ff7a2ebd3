// Package orchestrator runs parsed scenarios against a live page: it plans,
// executes one action at a time, re-plans the remaining actions from the
// newly observed page, and finally asks a separate session to judge the
// outcome.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/rahul/stepwright/internal/driver"
	"github.com/rahul/stepwright/internal/governance"
	"github.com/rahul/stepwright/internal/metrics"
	"github.com/rahul/stepwright/internal/observability"
	"github.com/rahul/stepwright/internal/planning"
	"github.com/rahul/stepwright/internal/scenario"
	"github.com/rahul/stepwright/internal/store"
)

// UngroundedPolicy decides what happens to an action whose target matches
// no known element when it is about to be dispatched.
type UngroundedPolicy string

const (
	UngroundedDrop  UngroundedPolicy = "drop"
	UngroundedAbort UngroundedPolicy = "abort"
)

// Config controls a run.
type Config struct {
	TargetURL        string
	SettleDelay      time.Duration
	ContainmentTag   string
	MaxExcerptBytes  int
	UngroundedPolicy UngroundedPolicy
	// ArtifactDir is the parent of the per-run directory; empty means the
	// system temp dir.
	ArtifactDir   string
	KeepArtifacts bool
}

// Recorder persists run history. *store.RunStore satisfies it.
type Recorder interface {
	StartRun(runID, source string) error
	FinishRun(runID, status string) error
	RecordScenario(runID string, rec store.ScenarioRecord) error
	RecordAction(runID string, rec store.ActionRecord) error
}

// Orchestrator owns the browser and planning collaborators for a run.
// Scenarios run strictly one after another.
type Orchestrator struct {
	cfg      Config
	driver   driver.Driver
	planner  planning.Service
	client   *planning.Client
	prompts  *planning.PromptManager
	policy   governance.PolicyEngine
	recorder Recorder
	logger   *observability.Logger
	metrics  *metrics.Metrics
}

type Option func(*Orchestrator)

func WithPolicy(p governance.PolicyEngine) Option { return func(o *Orchestrator) { o.policy = p } }
func WithRecorder(r Recorder) Option              { return func(o *Orchestrator) { o.recorder = r } }
func WithLogger(l *observability.Logger) Option   { return func(o *Orchestrator) { o.logger = l } }
func WithMetrics(m *metrics.Metrics) Option       { return func(o *Orchestrator) { o.metrics = m } }
func WithClient(c *planning.Client) Option        { return func(o *Orchestrator) { o.client = c } }
func WithPrompts(pm *planning.PromptManager) Option {
	return func(o *Orchestrator) { o.prompts = pm }
}

func New(cfg Config, d driver.Driver, planner planning.Service, opts ...Option) *Orchestrator {
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	if cfg.UngroundedPolicy == "" {
		cfg.UngroundedPolicy = UngroundedDrop
	}
	o := &Orchestrator{
		cfg:     cfg,
		driver:  d,
		planner: planner,
		prompts: planning.NewPromptManager(""),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.client == nil {
		o.client = planning.NewClient(planning.DefaultLimits(), o.logger, o.metrics)
	}
	return o
}

// Run parses the narrative and runs every scenario in order. The first
// unrecovered error aborts the run; the returned report always holds what
// was attempted.
func (o *Orchestrator) Run(ctx context.Context, source, narrative string) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), Source: source}

	scenarios, err := scenario.Parse(narrative)
	if err != nil {
		report.Err = err
		return report, err
	}

	ws, err := o.newWorkspace(report.RunID)
	if err != nil {
		report.Err = err
		return report, err
	}
	if !o.cfg.KeepArtifacts {
		defer func() {
			if err := ws.Cleanup(); err != nil {
				log.Printf("[Orchestrator] cleanup %s: %v", ws.Root(), err)
			}
		}()
	}

	o.record("start run", func(r Recorder) error { return r.StartRun(report.RunID, source) })
	log.Printf("[Orchestrator] run %s: %d scenario(s), artifacts in %s", report.RunID, len(scenarios), ws.Root())

	r := &run{o: o, id: report.RunID, ws: ws}
	for _, sc := range scenarios {
		res, err := r.scenario(ctx, sc)
		report.Scenarios = append(report.Scenarios, res)
		o.recordScenario(report.RunID, res)
		o.metrics.ObserveScenario(string(res.Status))
		if err != nil {
			report.Err = err
			observability.SetStatus(observability.PhaseFailed, fmt.Sprintf("scenario %d: %v", sc.Index, err))
			o.record("finish run", func(r Recorder) error { return r.FinishRun(report.RunID, "failed") })
			return report, err
		}
	}

	status := "passed"
	if !report.Passed() {
		status = "failed"
	}
	observability.SetStatus(observability.PhaseDone, status)
	o.record("finish run", func(r Recorder) error { return r.FinishRun(report.RunID, status) })
	return report, nil
}

func (o *Orchestrator) recordScenario(runID string, res ScenarioResult) {
	rec := store.ScenarioRecord{
		Scenario:    res.Index,
		Status:      string(res.Status),
		ActionCount: res.ActionCount,
	}
	if res.Validation != nil {
		rec.Rationale = res.Validation.Rationale
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	o.record("record scenario", func(r Recorder) error { return r.RecordScenario(runID, rec) })
}

// record runs fn against the recorder, if any. History is best effort.
func (o *Orchestrator) record(what string, fn func(Recorder) error) {
	if o.recorder == nil {
		return
	}
	if err := fn(o.recorder); err != nil {
		log.Printf("[Orchestrator] %s: %v", what, err)
	}
}
