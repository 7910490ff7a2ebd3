package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/rahul/stepwright/internal/planning"
	"github.com/rahul/stepwright/internal/scenario"
)

const DefaultMaxExcerptBytes = 20000

// validate opens a dedicated session, hands it the before/after screenshots
// and the final DOM excerpt, and parses its verdict.
func (r *run) validate(ctx context.Context, st *scenarioState, final page) (ValidationResult, error) {
	conditions := scenario.OutcomeSteps(st.sc.Steps)

	excerpt, err := Excerpt(final.DOM, r.o.cfg.ContainmentTag, r.o.cfg.MaxExcerptBytes)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("scenario %d: %w", st.sc.Index, err)
	}
	if err := r.ws.Write(r.ws.ValidationExcerpt(st.sc.Index), []byte(excerpt)); err != nil {
		return ValidationResult{}, err
	}

	instructions, err := r.o.prompts.GetValidationPrompt()
	if err != nil {
		return ValidationResult{}, err
	}
	sess, err := planning.Open(ctx, r.o.planner, planning.SessionValidation, instructions)
	if err != nil {
		return ValidationResult{}, err
	}
	defer sess.Close(context.WithoutCancel(ctx))

	var shots []planning.Attachment
	for _, path := range []string{st.initial.ScreenshotPath, final.ScreenshotPath} {
		f, err := planning.FileAttachment(path)
		if err != nil {
			return ValidationResult{}, err
		}
		shots = append(shots, f)
	}
	if err := sess.Attach(ctx, shots...); err != nil {
		return ValidationResult{}, err
	}

	reply, err := r.askVerdict(ctx, sess, planning.ValidationMessage(conditions, excerpt))
	if err != nil {
		return ValidationResult{}, err
	}
	verdict, err := ParseVerdict(reply)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("scenario %d: %w", st.sc.Index, err)
	}
	return verdict, nil
}

// askVerdict asks the validation session, restarting it on a late reply
// up to the client's session restart limit.
func (r *run) askVerdict(ctx context.Context, sess *planning.Session, msg string) (string, error) {
	limit := r.o.client.Limits().MaxSessionRestarts
	for restarts := 0; ; restarts++ {
		reply, err := sess.Ask(ctx, msg)
		if err == nil {
			return reply, nil
		}
		if !errors.Is(err, planning.ErrTimeout) || restarts >= limit {
			return "", err
		}
		log.Printf("[Validation] %v; restarting session (%d/%d)", err, restarts+1, limit)
		r.o.metrics.ObserveSessionRestart(string(sess.Kind()))
		if err := sess.Restart(ctx); err != nil {
			return "", err
		}
	}
}

// ParseVerdict reads a reply that starts with PASS or FAIL. The token is
// stripped from the rationale. A reply with any other leading word fails,
// keeping the whole text as the rationale.
func ParseVerdict(reply string) (ValidationResult, error) {
	text := strings.TrimSpace(reply)
	if text == "" {
		return ValidationResult{}, ErrNoValidationResponse
	}

	body := strings.TrimLeft(text, "*#_` ")
	end := strings.IndexFunc(body, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		end = len(body)
	}
	token := strings.ToUpper(body[:end])
	rest := strings.TrimLeft(body[end:], "*_`:.-– \t\r\n")

	switch token {
	case "PASS", "PASSED":
		return ValidationResult{Success: true, Rationale: rest}, nil
	case "FAIL", "FAILED":
		return ValidationResult{Success: false, Rationale: rest}, nil
	}
	log.Printf("[Validation] reply does not start with PASS or FAIL; treating as FAIL")
	return ValidationResult{Success: false, Rationale: text}, nil
}

var excerptPolicy = newExcerptPolicy()

// newExcerptPolicy keeps visible content and form controls, plus the
// attributes the judge needs to tie text to elements. Scripts and styles
// are dropped.
func newExcerptPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowDataAttributes()
	p.AllowAttrs("aria-label", "role", "id", "class", "title").Globally()
	p.AllowElements("form", "input", "button", "select", "option", "textarea", "label", "span", "div", "section", "main", "header", "footer", "nav", "dialog")
	p.AllowAttrs("type", "name", "value", "placeholder", "checked", "disabled", "selected", "for").Globally()
	return p
}

// Excerpt returns the sanitised outer HTML of the first element matching
// tag, or of the whole body when tag is empty, truncated to maxBytes.
func Excerpt(dom, tag string, maxBytes int) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(dom))
	if err != nil {
		return "", fmt.Errorf("parse final dom: %w", err)
	}

	sel := doc.Find("body")
	if tag != "" {
		sel = doc.Find(tag).First()
		if sel.Length() == 0 {
			return "", fmt.Errorf("%w: %q", ErrTagNotFound, tag)
		}
	}
	raw, err := goquery.OuterHtml(sel)
	if err != nil {
		return "", err
	}

	clean := strings.TrimSpace(excerptPolicy.Sanitize(raw))
	if maxBytes <= 0 {
		maxBytes = DefaultMaxExcerptBytes
	}
	if len(clean) > maxBytes {
		cut := maxBytes
		for cut > 0 && !utf8Boundary(clean, cut) {
			cut--
		}
		clean = clean[:cut] + "\n... (truncated)"
	}
	return clean, nil
}

func utf8Boundary(s string, i int) bool {
	return i >= len(s) || s[i]&0xC0 != 0x80
}
