package planning

import (
	"context"
	"fmt"
	"log"
)

// SessionKind separates execution planning from outcome validation.
type SessionKind string

const (
	SessionExecution  SessionKind = "execution"
	SessionValidation SessionKind = "validation"
)

// Session is a scoped handle on one planning conversation. The owner opens
// it, passes it to every planning call and must Close it on every exit path.
type Session struct {
	svc          Service
	kind         SessionKind
	instructions string
	id           string
	files        []Attachment
	restarts     int
}

func Open(ctx context.Context, svc Service, kind SessionKind, instructions string) (*Session, error) {
	id, err := svc.CreateSession(ctx, instructions)
	if err != nil {
		return nil, fmt.Errorf("create %s session: %w", kind, err)
	}
	return &Session{svc: svc, kind: kind, instructions: instructions, id: id}, nil
}

func (s *Session) ID() string        { return s.id }
func (s *Session) Kind() SessionKind { return s.kind }
func (s *Session) Restarts() int     { return s.restarts }

// Attach uploads files and remembers them so a restarted session gets them
// again.
func (s *Session) Attach(ctx context.Context, files ...Attachment) error {
	if len(files) == 0 {
		return nil
	}
	if err := s.svc.AttachFiles(ctx, s.id, files); err != nil {
		return fmt.Errorf("attach files to %s session: %w", s.kind, err)
	}
	s.files = append(s.files, files...)
	return nil
}

// Ask sends text and waits for the planner's reply.
func (s *Session) Ask(ctx context.Context, text string, attachments ...Attachment) (string, error) {
	if s.id == "" {
		return "", fmt.Errorf("%w: %s session is closed", ErrUnknownSession, s.kind)
	}
	if err := s.svc.SendMessage(ctx, s.id, text, attachments); err != nil {
		return "", fmt.Errorf("send to %s session: %w", s.kind, err)
	}
	reply, err := s.svc.PollUntilComplete(ctx, s.id)
	if err != nil {
		return "", fmt.Errorf("await %s session: %w", s.kind, err)
	}
	return reply, nil
}

// Restart drops the current conversation and opens a fresh one with the
// same instructions and previously attached files.
func (s *Session) Restart(ctx context.Context) error {
	s.Close(ctx)
	id, err := s.svc.CreateSession(ctx, s.instructions)
	if err != nil {
		return fmt.Errorf("restart %s session: %w", s.kind, err)
	}
	s.id = id
	s.restarts++
	if len(s.files) > 0 {
		if err := s.svc.AttachFiles(ctx, s.id, s.files); err != nil {
			return fmt.Errorf("reattach files to %s session: %w", s.kind, err)
		}
	}
	log.Printf("[Planning] %s session restarted as %s", s.kind, s.id)
	return nil
}

// Close releases the conversation. Errors are logged, never returned.
func (s *Session) Close(ctx context.Context) {
	if s == nil || s.id == "" {
		return
	}
	if err := s.svc.CloseSession(ctx, s.id); err != nil {
		log.Printf("[Planning] failed to close %s session %s: %v", s.kind, s.id, err)
	}
	s.id = ""
}
