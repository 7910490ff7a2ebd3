package planning

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/rahul/stepwright/internal/action"
	"github.com/rahul/stepwright/internal/elements"
	"github.com/rahul/stepwright/internal/metrics"
	"github.com/rahul/stepwright/internal/observability"
	"github.com/rahul/stepwright/internal/scenario"
)

// Limits bounds every recovery path of the client.
type Limits struct {
	MaxCountRepairs     int
	MaxGroundingRepairs int
	MaxSessionRestarts  int
}

func DefaultLimits() Limits {
	return Limits{MaxCountRepairs: 2, MaxGroundingRepairs: 3, MaxSessionRestarts: 1}
}

// Request carries everything needed to plan one scenario.
type Request struct {
	Scenario scenario.Scenario
	// Counted holds the steps that map to actions; its length is the
	// required plan length.
	Counted  []scenario.Step
	Snapshot *elements.Snapshot
	// Files are attached with the request: scenario XML, element list,
	// screenshot.
	Files []Attachment
}

func (r Request) count() int { return len(r.Counted) }

// RePlanRequest asks for a revised tail after Executed has run.
type RePlanRequest struct {
	Request
	Executed action.Plan
	Current  action.Plan
}

// Client produces and revises plans through a Session.
type Client struct {
	limits  Limits
	logger  *observability.Logger
	metrics *metrics.Metrics
}

func NewClient(limits Limits, logger *observability.Logger, m *metrics.Metrics) *Client {
	return &Client{limits: limits, logger: logger, metrics: m}
}

func (c *Client) Limits() Limits { return c.limits }

// InitialPlan requests the first plan for a scenario and repairs it until
// its length matches the action count and no action is left with only
// fuzzy element candidates. A malformed or late reply restarts the session.
func (c *Client) InitialPlan(ctx context.Context, sess *Session, req Request) (action.Plan, error) {
	if err := sess.Attach(ctx, req.Files...); err != nil {
		return nil, err
	}

	restarts := 0
	for {
		plan, err := c.initialAttempt(ctx, sess, req)
		if err == nil {
			return plan, nil
		}
		if !recoverable(err) || restarts >= c.limits.MaxSessionRestarts {
			return nil, err
		}
		restarts++
		log.Printf("[Planning] scenario %d: %v; restarting session (%d/%d)", req.Scenario.Index, err, restarts, c.limits.MaxSessionRestarts)
		c.metrics.ObserveSessionRestart(string(sess.Kind()))
		if err := sess.Restart(ctx); err != nil {
			return nil, err
		}
	}
}

func (c *Client) initialAttempt(ctx context.Context, sess *Session, req Request) (action.Plan, error) {
	reply, err := c.ask(ctx, sess, initialPlanMessage(req.Scenario, req.Counted))
	if err != nil {
		return nil, err
	}
	plan, err := ExtractPlan(reply)
	if err != nil {
		return nil, err
	}
	return c.repair(ctx, sess, req, plan)
}

func (c *Client) repair(ctx context.Context, sess *Session, req Request, plan action.Plan) (action.Plan, error) {
	want := req.count()
	countRepairs, groundingRepairs := 0, 0

	for {
		if len(plan) != want {
			if countRepairs >= c.limits.MaxCountRepairs {
				return nil, fmt.Errorf("%w: got %d, want %d after %d corrections", ErrStepCountMismatch, len(plan), want, countRepairs)
			}
			countRepairs++
			c.metrics.ObserveRepair("count")
			c.logger.LogRepair(sess.ID(), "count", countRepairs, fmt.Sprintf("got %d want %d", len(plan), want))

			reply, err := c.ask(ctx, sess, countCorrectionMessage(len(plan), want, req.Counted))
			if err != nil {
				return nil, err
			}
			if plan, err = ExtractPlan(reply); err != nil {
				return nil, err
			}
			continue
		}

		grounded, at, candidates := groundPlan(plan, req.Counted, req.Snapshot)
		if at < 0 {
			return grounded, nil
		}
		if groundingRepairs >= c.limits.MaxGroundingRepairs {
			return nil, fmt.Errorf("%w: action %d %s still has %d candidates", ErrGroundingRepairExhausted, at, action.Describe(plan[at]), len(candidates))
		}
		groundingRepairs++
		c.metrics.ObserveRepair("grounding")
		c.logger.LogRepair(sess.ID(), "grounding", groundingRepairs, action.Describe(plan[at]))

		msg := groundingRepairMessage(grounded[:at], plan[at], req.Counted[at], candidates, want)
		reply, err := c.ask(ctx, sess, msg)
		if err != nil {
			return nil, err
		}
		if plan, err = ExtractPlan(reply); err != nil {
			return nil, err
		}
	}
}

// groundPlan resolves every action in order. Exact matches are rewritten to
// the element id, actions with no candidates are accepted as they are. It
// stops at the first action that only has fuzzy candidates and returns its
// index, or -1 when the whole plan is accepted.
func groundPlan(plan action.Plan, counted []scenario.Step, snap *elements.Snapshot) (action.Plan, int, []elements.TestElement) {
	out := plan.Clone()
	for i, a := range out {
		res := elements.Resolve(a, counted[i].Text, snap)
		switch res.Kind {
		case elements.MatchExact:
			out[i] = action.WithTarget(a, res.Element.ID)
		case elements.MatchFuzzy:
			return out, i, res.Candidates
		}
	}
	return out, -1, nil
}

// RePlan asks for a full-length plan that keeps the executed prefix and
// revises the rest. A reply of the wrong length is fatal.
func (c *Client) RePlan(ctx context.Context, sess *Session, req RePlanRequest) (action.Plan, error) {
	want := req.count()
	restarts := 0
	for {
		plan, err := c.rePlanAttempt(ctx, sess, req)
		if err != nil {
			if !recoverable(err) || restarts >= c.limits.MaxSessionRestarts {
				c.metrics.ObserveRePlan("error")
				return nil, err
			}
			restarts++
			c.metrics.ObserveSessionRestart(string(sess.Kind()))
			if err := sess.Restart(ctx); err != nil {
				return nil, err
			}
			continue
		}

		if len(plan) != want {
			c.metrics.ObserveRePlan("count_mismatch")
			return nil, fmt.Errorf("%w: got %d, want %d after %d executed", ErrRePlanCountMismatch, len(plan), want, len(req.Executed))
		}
		if !plan.SamePrefix(req.Executed, len(req.Executed)) {
			log.Printf("[Planning] scenario %d: re-plan altered executed actions; keeping executed prefix", req.Scenario.Index)
		}
		for i := len(req.Executed); i < len(plan); i++ {
			if res := elements.Resolve(plan[i], req.Counted[i].Text, req.Snapshot); res.Kind == elements.MatchExact {
				plan[i] = action.WithTarget(plan[i], res.Element.ID)
			}
		}
		c.metrics.ObserveRePlan("ok")
		c.logger.Log(observability.Event{
			Type:      observability.EventTypeRePlan,
			Scenario:  req.Scenario.Index,
			SessionID: sess.ID(),
			Data:      plan,
		})
		return plan, nil
	}
}

func (c *Client) rePlanAttempt(ctx context.Context, sess *Session, req RePlanRequest) (action.Plan, error) {
	reply, err := c.ask(ctx, sess, rePlanMessage(req.Executed, req.Current, req.count()), req.Files...)
	if err != nil {
		return nil, err
	}
	return ExtractPlan(reply)
}

func (c *Client) ask(ctx context.Context, sess *Session, text string, attachments ...Attachment) (string, error) {
	start := time.Now()
	reply, err := sess.Ask(ctx, text, attachments...)
	c.metrics.ObservePlanning(string(sess.Kind()), time.Since(start))
	return reply, err
}

func recoverable(err error) bool {
	return errors.Is(err, ErrFormat) || errors.Is(err, ErrTimeout)
}
