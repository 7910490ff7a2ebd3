// Package planning turns scenarios into action plans through a stateful
// conversational planning service.
package planning

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrFormat                   = errors.New("planner reply holds no action array")
	ErrTimeout                  = errors.New("planning session did not complete in time")
	ErrStepCountMismatch        = errors.New("plan length does not match action count")
	ErrRePlanCountMismatch      = errors.New("re-plan changed the action count")
	ErrGroundingRepairExhausted = errors.New("grounding repairs exhausted")
	ErrUngroundedAction         = errors.New("action target matches no element")
	ErrUnknownSession           = errors.New("unknown planning session")
	ErrRunInProgress            = errors.New("planning session already has a pending reply")
)

// Attachment is an opaque file handed to a planning session.
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

func (a Attachment) IsImage() bool {
	return strings.HasPrefix(a.MIMEType, "image/")
}

// FileAttachment reads path into an Attachment, guessing its MIME type from
// the extension.
func FileAttachment(path string) (Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("read attachment: %w", err)
	}
	mt := mime.TypeByExtension(filepath.Ext(path))
	if mt == "" {
		mt = "text/plain"
	}
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return Attachment{Name: filepath.Base(path), MIMEType: mt, Data: data}, nil
}

// Service is the transport to the conversational planner.
type Service interface {
	CreateSession(ctx context.Context, instructions string) (string, error)
	AttachFiles(ctx context.Context, sessionID string, files []Attachment) error
	SendMessage(ctx context.Context, sessionID, text string, attachments []Attachment) error
	PollUntilComplete(ctx context.Context, sessionID string) (string, error)
	CloseSession(ctx context.Context, sessionID string) error
}
