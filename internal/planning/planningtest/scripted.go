// Package planningtest provides a scripted planning service for tests.
package planningtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/rahul/stepwright/internal/planning"
)

// Timeout, used as a scripted reply, makes PollUntilComplete fail with
// planning.ErrTimeout.
const Timeout = "\x00timeout"

// Message records one SendMessage call.
type Message struct {
	SessionID   string
	Text        string
	Attachments []planning.Attachment
}

// ScriptedService answers messages with pre-recorded replies, in order,
// regardless of session.
type ScriptedService struct {
	mu       sync.Mutex
	replies  []string
	created  []string
	closed   []string
	attached map[string][]planning.Attachment
	sent     []Message
	pending  map[string]bool
	CloseErr error
}

func NewScriptedService(replies ...string) *ScriptedService {
	return &ScriptedService{
		replies:  replies,
		attached: make(map[string][]planning.Attachment),
		pending:  make(map[string]bool),
	}
}

func (s *ScriptedService) CreateSession(ctx context.Context, instructions string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("sess-%d", len(s.created)+1)
	s.created = append(s.created, id)
	return id, nil
}

func (s *ScriptedService) AttachFiles(ctx context.Context, sessionID string, files []planning.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached[sessionID] = append(s.attached[sessionID], files...)
	return nil
}

func (s *ScriptedService) SendMessage(ctx context.Context, sessionID, text string, attachments []planning.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, Message{SessionID: sessionID, Text: text, Attachments: attachments})
	s.pending[sessionID] = true
	return nil
}

func (s *ScriptedService) PollUntilComplete(ctx context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending[sessionID] {
		return "", fmt.Errorf("no pending reply on %s", sessionID)
	}
	delete(s.pending, sessionID)
	if len(s.replies) == 0 {
		return "", fmt.Errorf("script exhausted after %d messages", len(s.sent))
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	if reply == Timeout {
		return "", fmt.Errorf("%w: scripted", planning.ErrTimeout)
	}
	return reply, nil
}

func (s *ScriptedService) CloseSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = append(s.closed, sessionID)
	return s.CloseErr
}

func (s *ScriptedService) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

func (s *ScriptedService) Created() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.created...)
}

func (s *ScriptedService) Closed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.closed...)
}

func (s *ScriptedService) Attached(sessionID string) []planning.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]planning.Attachment(nil), s.attached[sessionID]...)
}

// Remaining reports how many scripted replies were not consumed.
func (s *ScriptedService) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies)
}
