package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rahul/stepwright/internal/action"
	"github.com/rahul/stepwright/internal/artifact"
	"github.com/rahul/stepwright/internal/elements"
	"github.com/rahul/stepwright/internal/governance"
	"github.com/rahul/stepwright/internal/observability"
	"github.com/rahul/stepwright/internal/planning"
	"github.com/rahul/stepwright/internal/scenario"
	"github.com/rahul/stepwright/internal/store"
)

func (o *Orchestrator) newWorkspace(runID string) (*artifact.Workspace, error) {
	return artifact.NewWorkspace(o.cfg.ArtifactDir, runID)
}

// run holds the per-run state shared by its scenarios.
type run struct {
	o  *Orchestrator
	id string
	ws *artifact.Workspace
}

// scenarioState is owned by one scenario for its lifetime.
type scenarioState struct {
	sc      scenario.Scenario
	counted []scenario.Step
	snap    *elements.Snapshot
	xmlPath string
	initial page
	latest  page
	result  *ScenarioResult
}

// scenario drives Planning, Executing(i), RePlanning(i), Validating.
func (r *run) scenario(ctx context.Context, sc scenario.Scenario) (res ScenarioResult, err error) {
	res = ScenarioResult{Index: sc.Index, Status: StatusFailed}
	defer func() {
		if err != nil {
			res.Err = err
			log.Printf("[Scenario %d] failed: %v", sc.Index, err)
		}
	}()

	observability.SetStatus(observability.PhasePlanning, fmt.Sprintf("scenario %d", sc.Index))
	count, err := scenario.ActionCount(sc.Steps)
	if err != nil {
		return res, fmt.Errorf("scenario %d: %w", sc.Index, err)
	}
	res.ActionCount = count
	if !scenario.HasThen(sc.Steps) {
		return res, fmt.Errorf("scenario %d: %w", sc.Index, ErrNoThenSteps)
	}

	st := &scenarioState{
		sc:      sc,
		counted: scenario.CountedSteps(sc.Steps),
		snap:    elements.NewSnapshot(),
		xmlPath: r.ws.ScenarioFile(sc.Index),
		result:  &res,
	}

	var buf bytes.Buffer
	if err := sc.WriteXML(&buf, count); err != nil {
		return res, err
	}
	if err := r.ws.Write(st.xmlPath, buf.Bytes()); err != nil {
		return res, err
	}

	if err := r.o.driver.Navigate(ctx, r.o.cfg.TargetURL); err != nil {
		return res, &ActionExecutionError{Scenario: sc.Index, Step: -1, Action: "navigate(" + r.o.cfg.TargetURL + ")", Err: err}
	}
	if st.initial, err = r.capture(ctx, st, "initial", -1); err != nil {
		return res, err
	}
	st.latest = st.initial
	log.Printf("[Scenario %d] %d action(s), %d element(s) on initial page", sc.Index, count, st.snap.Len())

	instructions, err := r.o.prompts.GetExecutionPrompt()
	if err != nil {
		return res, err
	}
	sess, err := planning.Open(ctx, r.o.planner, planning.SessionExecution, instructions)
	if err != nil {
		return res, err
	}
	defer sess.Close(context.WithoutCancel(ctx))

	files, err := st.attachments(true)
	if err != nil {
		return res, err
	}
	plan, err := r.o.client.InitialPlan(ctx, sess, planning.Request{
		Scenario: sc,
		Counted:  st.counted,
		Snapshot: st.snap,
		Files:    files,
	})
	if err != nil {
		return res, err
	}
	r.o.logger.LogPlan(r.id, sc.Index, sess.ID(), plan)
	if kept := elements.FilterGrounded(plan, st.snap); len(kept) < len(plan) {
		log.Printf("[Scenario %d] %d of %d action(s) not grounded yet; checked again at dispatch", sc.Index, len(plan)-len(kept), len(plan))
	}

	if err := r.execute(ctx, st, sess, plan); err != nil {
		return res, err
	}

	observability.SetStatus(observability.PhaseValidating, fmt.Sprintf("scenario %d", sc.Index))
	final, err := r.capture(ctx, st, "final", -1)
	if err != nil {
		return res, err
	}
	verdict, err := r.validate(ctx, st, final)
	if err != nil {
		return res, err
	}
	res.Validation = &verdict
	r.o.logger.LogValidation(r.id, sc.Index, verdict.Success, verdict.Rationale)
	if verdict.Success {
		res.Status = StatusDone
		log.Printf("[Scenario %d] PASS", sc.Index)
	} else {
		log.Printf("[Scenario %d] FAIL: %s", sc.Index, verdict.Rationale)
	}
	return res, nil
}

// execute runs the working plan one action at a time, re-planning the
// untouched tail after every action but the last. The plan length never
// changes.
func (r *run) execute(ctx context.Context, st *scenarioState, sess *planning.Session, plan action.Plan) error {
	working := plan.Clone()
	n := len(working)

	for i := 0; i < n; i++ {
		observability.SetStatus(observability.PhaseExecuting, fmt.Sprintf("scenario %d action %d/%d", st.sc.Index, i+1, n))
		if err := r.step(ctx, st, i, working[i]); err != nil {
			return err
		}
		if i == n-1 {
			break
		}

		observability.SetStatus(observability.PhaseRePlanning, fmt.Sprintf("scenario %d after action %d/%d", st.sc.Index, i+1, n))
		files, err := st.attachments(false)
		if err != nil {
			return err
		}
		revised, err := r.o.client.RePlan(ctx, sess, planning.RePlanRequest{
			Request: planning.Request{
				Scenario: st.sc,
				Counted:  st.counted,
				Snapshot: st.snap,
				Files:    files,
			},
			Executed: working[:i+1].Clone(),
			Current:  working.Clone(),
		})
		if err != nil {
			return err
		}
		working = append(working[:i+1:i+1], revised[i+1:]...)
	}
	return nil
}

// step dispatches one action. Element-addressed actions are checked
// against the snapshot first, then against the policy.
func (r *run) step(ctx context.Context, st *scenarioState, i int, a action.Action) error {
	idx := st.sc.Index
	desc := action.Describe(a)
	target, _ := action.Target(a)
	rec := store.ActionRecord{Scenario: idx, Step: i, Kind: string(a.Kind()), Target: target}

	if _, ok := action.Target(a); ok && !elements.Grounded(target, st.snap) {
		if r.o.cfg.UngroundedPolicy == UngroundedAbort {
			rec.Status = "failed"
			rec.Detail = "ungrounded"
			r.recordAction(rec)
			return fmt.Errorf("scenario %d action %d %s: %w", idx, i, desc, planning.ErrUngroundedAction)
		}
		log.Printf("[Scenario %d] dropping %s: no element %q", idx, desc, target)
		r.o.logger.Log(observability.Event{
			Type:     observability.EventTypeGrounding,
			RunID:    r.id,
			Scenario: idx,
			Data:     map[string]any{"index": i, "action": desc, "dropped": true},
		})
		r.o.metrics.ObserveDropped()
		r.o.metrics.ObserveAction(string(a.Kind()), "skipped")
		rec.Status = "skipped"
		r.recordAction(rec)
		r.o.logger.LogStep(r.id, idx, i, desc, "skipped")
		st.result.Skipped++
		return nil
	}

	if r.o.policy != nil {
		decision, err := r.o.policy.Evaluate(ctx, governance.Request{Kind: a.Kind(), Target: target, Scenario: idx, Step: i})
		if err != nil {
			return err
		}
		r.o.logger.Log(observability.Event{
			Type:     observability.EventTypePolicyCheck,
			RunID:    r.id,
			Scenario: idx,
			Data:     map[string]any{"index": i, "action": desc, "effect": decision.Effect, "reason": decision.Reason},
		})
		if decision.Effect == governance.EffectDeny {
			rec.Status = "denied"
			rec.Detail = decision.Reason
			r.recordAction(rec)
			r.o.metrics.ObserveAction(string(a.Kind()), "denied")
			return &ActionExecutionError{Scenario: idx, Step: i, Action: desc, Err: fmt.Errorf("denied by policy: %s", decision.Reason)}
		}
	}

	log.Printf("[Scenario %d] action %d: %s", idx, i, desc)
	if err := action.Dispatch(ctx, a, driverHandler{r.o.driver}); err != nil {
		rec.Status = "failed"
		rec.Detail = err.Error()
		r.recordAction(rec)
		r.o.metrics.ObserveAction(string(a.Kind()), "failed")
		r.o.logger.LogStep(r.id, idx, i, desc, "failed")
		return &ActionExecutionError{Scenario: idx, Step: i, Action: desc, Err: err}
	}
	rec.Status = "ok"
	r.recordAction(rec)
	r.o.metrics.ObserveAction(string(a.Kind()), "ok")
	r.o.logger.LogStep(r.id, idx, i, desc, "ok")
	st.result.Executed++

	if !action.Mutates(a) {
		return nil
	}
	if err := sleep(ctx, r.o.cfg.SettleDelay); err != nil {
		return err
	}
	p, err := r.capture(ctx, st, artifact.StepLabel(i), i)
	if err != nil {
		return err
	}
	st.latest = p
	return nil
}

func (r *run) recordAction(rec store.ActionRecord) {
	r.o.record("record action", func(rr Recorder) error { return rr.RecordAction(r.id, rec) })
}

// attachments lists the files handed to the planner: the element list and
// latest screenshot, plus the scenario file on the first request.
func (st *scenarioState) attachments(withScenario bool) ([]planning.Attachment, error) {
	paths := []string{st.latest.ElementsPath, st.latest.ScreenshotPath}
	if withScenario {
		paths = append([]string{st.xmlPath}, paths...)
	}
	files := make([]planning.Attachment, 0, len(paths))
	for _, p := range paths {
		f, err := planning.FileAttachment(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
