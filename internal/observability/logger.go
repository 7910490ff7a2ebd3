package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypePlan        EventType = "plan"
	EventTypeRePlan      EventType = "replan"
	EventTypeRepair      EventType = "repair"
	EventTypeStep        EventType = "step"
	EventTypeGrounding   EventType = "grounding"
	EventTypeValidation  EventType = "validation"
	EventTypePolicyCheck EventType = "policy_check"
	EventTypeLLM         EventType = "llm"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	Scenario  int       `json:"scenario"`
	SessionID string    `json:"session_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging.
type Logger struct {
	mu         sync.Mutex
	out        io.Writer
	llmLogPath string
	maxSize    int64
}

func NewLogger() *Logger {
	return &Logger{
		out:        os.Stdout,
		llmLogPath: filepath.Join("logs", "llm.jsonl"),
		maxSize:    10 * 1024 * 1024, // 10MB
	}
}

// NewLoggerTo writes events to out and LLM traffic to llmLogPath.
// An empty llmLogPath disables the LLM file.
func NewLoggerTo(out io.Writer, llmLogPath string) *Logger {
	return &Logger{out: out, llmLogPath: llmLogPath, maxSize: 10 * 1024 * 1024}
}

// Log emits a structured JSON event. A nil Logger discards events.
func (l *Logger) Log(evt Event) {
	if l == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"error": "failed to marshal event: %v"}`, err))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, string(data))

	if evt.Type == EventTypeLLM && l.llmLogPath != "" {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogPlan(runID string, scenario int, sessionID string, plan any) {
	l.Log(Event{Type: EventTypePlan, RunID: runID, Scenario: scenario, SessionID: sessionID, Data: plan})
}

func (l *Logger) LogRepair(sessionID, category string, attempt int, detail string) {
	l.Log(Event{
		Type:      EventTypeRepair,
		SessionID: sessionID,
		Data: map[string]any{
			"category": category,
			"attempt":  attempt,
			"detail":   detail,
		},
	})
}

func (l *Logger) LogStep(runID string, scenario, index int, action, status string) {
	l.Log(Event{
		Type:     EventTypeStep,
		RunID:    runID,
		Scenario: scenario,
		Data: map[string]any{
			"index":  index,
			"action": action,
			"status": status,
		},
	})
}

func (l *Logger) LogValidation(runID string, scenario int, success bool, rationale string) {
	l.Log(Event{
		Type:     EventTypeValidation,
		RunID:    runID,
		Scenario: scenario,
		Data: map[string]any{
			"success":   success,
			"rationale": rationale,
		},
	})
}

func (l *Logger) LogLLM(sessionID string, prompt any, response string) {
	l.Log(Event{
		Type:      EventTypeLLM,
		SessionID: sessionID,
		Data: map[string]any{
			"prompt":   prompt,
			"response": response,
		},
	})
}
