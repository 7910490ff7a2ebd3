package scenario

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// StepType is the keyword a step was introduced with.
type StepType string

const (
	StepGiven StepType = "given"
	StepWhen  StepType = "when"
	StepThen  StepType = "then"
	StepAnd   StepType = "and"
)

var (
	ErrParse      = errors.New("narrative parse failed")
	ErrNoWhenStep = errors.New("scenario has no when step")
)

// ParseError reports why a narrative could not be split into scenarios.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse narrative: %s", e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}

// Step is a single typed line of a scenario.
type Step struct {
	Type StepType `json:"type" xml:"type,attr"`
	Text string   `json:"text" xml:",chardata"`
}

func (s Step) String() string {
	return fmt.Sprintf("%s %s", strings.ToUpper(string(s.Type[:1]))+string(s.Type[1:]), s.Text)
}

// Scenario is an ordered, immutable list of steps.
type Scenario struct {
	Index int    `json:"index"`
	Steps []Step `json:"steps"`
}

// Text renders the scenario back into one step per line.
func (s Scenario) Text() string {
	lines := make([]string, 0, len(s.Steps))
	for _, st := range s.Steps {
		lines = append(lines, st.String())
	}
	return strings.Join(lines, "\n")
}

type xmlScenario struct {
	XMLName     xml.Name `xml:"scenario"`
	Index       int      `xml:"index,attr"`
	ActionCount int      `xml:"actionCount,attr"`
	Steps       []Step   `xml:"step"`
}

// WriteXML writes the scenario file attached to planning sessions.
func (s Scenario) WriteXML(w io.Writer, actionCount int) error {
	doc := xmlScenario{Index: s.Index, ActionCount: actionCount, Steps: s.Steps}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode scenario xml: %w", err)
	}
	return enc.Flush()
}
