// Package action defines the closed set of UI actions a plan may contain.
package action

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind is the wire name of an action.
type Kind string

const (
	KindFindAndClick Kind = "findAndClick"
	KindFindAndType  Kind = "findAndType"
	KindReload       Kind = "reload"
	KindWaitForText  Kind = "waitForText"
)

// DefaultWaitTimeout applies to waitForText actions planned without a timeout.
const DefaultWaitTimeout = 10 * time.Second

var ErrUnknownKind = errors.New("unknown action type")

// ParseKind matches s against the known kinds, ignoring case.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{KindFindAndClick, KindFindAndType, KindReload, KindWaitForText} {
		if strings.EqualFold(s, string(k)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Action is one executable UI instruction. The set of implementations is
// closed: FindAndClick, FindAndType, Reload and WaitForText.
type Action interface {
	Kind() Kind
	isAction()
}

type FindAndClick struct {
	Target string
}

type FindAndType struct {
	Target string
	Value  string
}

type Reload struct{}

type WaitForText struct {
	Text    string
	Timeout time.Duration
}

func (FindAndClick) Kind() Kind { return KindFindAndClick }
func (FindAndType) Kind() Kind  { return KindFindAndType }
func (Reload) Kind() Kind       { return KindReload }
func (WaitForText) Kind() Kind  { return KindWaitForText }

func (FindAndClick) isAction() {}
func (FindAndType) isAction()  {}
func (Reload) isAction()       {}
func (WaitForText) isAction()  {}

// Handler executes each action kind. Dispatch is total over the variant.
type Handler interface {
	FindAndClick(ctx context.Context, a FindAndClick) error
	FindAndType(ctx context.Context, a FindAndType) error
	Reload(ctx context.Context, a Reload) error
	WaitForText(ctx context.Context, a WaitForText) error
}

func Dispatch(ctx context.Context, a Action, h Handler) error {
	switch v := a.(type) {
	case FindAndClick:
		return h.FindAndClick(ctx, v)
	case FindAndType:
		return h.FindAndType(ctx, v)
	case Reload:
		return h.Reload(ctx, v)
	case WaitForText:
		return h.WaitForText(ctx, v)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownKind, a)
	}
}

// Target returns the element target of actions that address an element.
func Target(a Action) (string, bool) {
	switch v := a.(type) {
	case FindAndClick:
		return v.Target, true
	case FindAndType:
		return v.Target, true
	}
	return "", false
}

// WithTarget returns a copy of a addressed at target. Actions without an
// element target are returned unchanged.
func WithTarget(a Action, target string) Action {
	switch v := a.(type) {
	case FindAndClick:
		v.Target = target
		return v
	case FindAndType:
		v.Target = target
		return v
	}
	return a
}

// Mutates reports whether the action can change the page's elements, which
// means the element snapshot must be refreshed after it runs.
func Mutates(a Action) bool {
	switch a.(type) {
	case FindAndClick, FindAndType:
		return true
	}
	return false
}

func Describe(a Action) string {
	switch v := a.(type) {
	case FindAndClick:
		return fmt.Sprintf("findAndClick(%s)", v.Target)
	case FindAndType:
		return fmt.Sprintf("findAndType(%s, %q)", v.Target, v.Value)
	case Reload:
		return "reload()"
	case WaitForText:
		return fmt.Sprintf("waitForText(%q, %s)", v.Text, v.Timeout)
	}
	return fmt.Sprintf("%T", a)
}

type wireAction struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Target    string `json:"target,omitempty"`
	Value     string `json:"value,omitempty"`
	TimeoutMS int64  `json:"timeout,omitempty"`
}

func toWire(a Action) (wireAction, error) {
	switch v := a.(type) {
	case FindAndClick:
		return wireAction{Type: string(KindFindAndClick), Text: v.Target}, nil
	case FindAndType:
		return wireAction{Type: string(KindFindAndType), Text: v.Target, Value: v.Value}, nil
	case Reload:
		return wireAction{Type: string(KindReload)}, nil
	case WaitForText:
		return wireAction{Type: string(KindWaitForText), Text: v.Text, TimeoutMS: v.Timeout.Milliseconds()}, nil
	}
	return wireAction{}, fmt.Errorf("%w: %T", ErrUnknownKind, a)
}

func fromWire(w wireAction) (Action, error) {
	text := w.Text
	if text == "" {
		text = w.Target
	}
	switch {
	case strings.EqualFold(w.Type, string(KindFindAndClick)):
		return FindAndClick{Target: text}, nil
	case strings.EqualFold(w.Type, string(KindFindAndType)):
		return FindAndType{Target: text, Value: w.Value}, nil
	case strings.EqualFold(w.Type, string(KindReload)):
		return Reload{}, nil
	case strings.EqualFold(w.Type, string(KindWaitForText)):
		timeout := time.Duration(w.TimeoutMS) * time.Millisecond
		if timeout <= 0 {
			timeout = DefaultWaitTimeout
		}
		return WaitForText{Text: text, Timeout: timeout}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, w.Type)
}
