package governance

import (
	"context"
	"fmt"
	"regexp"

	"github.com/rahul/stepwright/internal/action"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request describes an action about to be dispatched.
type Request struct {
	Kind     action.Kind
	Target   string
	Scenario int
	Step     int
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// PolicyEngine evaluates actions before they reach the browser.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// DefaultPolicyEngine denies action kinds and targets matching patterns.
type DefaultPolicyEngine struct {
	DeniedKinds map[action.Kind]bool
	DeniedRegex []*regexp.Regexp
}

func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	return &DefaultPolicyEngine{
		DeniedKinds: make(map[action.Kind]bool),
		DeniedRegex: make([]*regexp.Regexp, 0),
	}
}

func (e *DefaultPolicyEngine) DenyKind(kind action.Kind) {
	e.DeniedKinds[kind] = true
}

func (e *DefaultPolicyEngine) DenyTargets(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.DeniedRegex = append(e.DeniedRegex, re)
	return nil
}

func (e *DefaultPolicyEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	if e.DeniedKinds[req.Kind] {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("Action '%s' is restricted by run policy", req.Kind),
		}, nil
	}

	for _, re := range e.DeniedRegex {
		if req.Target != "" && re.MatchString(req.Target) {
			return Result{
				Effect: EffectDeny,
				Reason: fmt.Sprintf("Target matches restricted pattern: %s", re.String()),
			}, nil
		}
	}

	return Result{
		Effect: EffectAllow,
		Reason: "Approved by default policy",
	}, nil
}
