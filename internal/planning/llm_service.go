package planning

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/rahul/stepwright/internal/observability"
)

var errNotReady = errors.New("reply not ready")

// LLMServiceConfig tunes generation and completion polling.
type LLMServiceConfig struct {
	Temperature     float64
	PollInitial     time.Duration
	PollMaxInterval time.Duration
	PollMaxRetries  uint64
}

// LLMService implements Service on top of a langchaingo chat model. Each
// session keeps its own message history; a sent message starts a generation
// in the background which PollUntilComplete waits on.
type LLMService struct {
	model  llms.Model
	cfg    LLMServiceConfig
	logger *observability.Logger

	mu       sync.Mutex
	sessions map[string]*conversation
}

type conversation struct {
	messages []llms.MessageContent
	pending  []llms.ContentPart
	run      *generation
}

type generation struct {
	prompt string
	done   chan struct{}
	text   string
	err    error
}

func NewLLMService(model llms.Model, cfg LLMServiceConfig, logger *observability.Logger) *LLMService {
	if cfg.PollInitial <= 0 {
		cfg.PollInitial = 500 * time.Millisecond
	}
	if cfg.PollMaxInterval <= 0 {
		cfg.PollMaxInterval = 8 * time.Second
	}
	if cfg.PollMaxRetries == 0 {
		cfg.PollMaxRetries = 12
	}
	return &LLMService{
		model:    model,
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*conversation),
	}
}

func (s *LLMService) CreateSession(ctx context.Context, instructions string) (string, error) {
	id := uuid.NewString()
	conv := &conversation{}
	if instructions != "" {
		conv.messages = append(conv.messages, llms.MessageContent{
			Role:  schema.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(instructions)},
		})
	}

	s.mu.Lock()
	s.sessions[id] = conv
	s.mu.Unlock()
	return id, nil
}

// AttachFiles queues files; they are sent with the next message.
func (s *LLMService) AttachFiles(ctx context.Context, sessionID string, files []Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	for _, f := range files {
		conv.pending = append(conv.pending, attachmentPart(f))
	}
	return nil
}

func (s *LLMService) SendMessage(ctx context.Context, sessionID, text string, attachments []Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	if conv.run != nil {
		return fmt.Errorf("%w: %s", ErrRunInProgress, sessionID)
	}

	parts := append(conv.pending, llms.TextPart(text))
	for _, a := range attachments {
		parts = append(parts, attachmentPart(a))
	}
	conv.pending = nil
	conv.messages = append(conv.messages, llms.MessageContent{
		Role:  schema.ChatMessageTypeHuman,
		Parts: parts,
	})

	history := make([]llms.MessageContent, len(conv.messages))
	copy(history, conv.messages)

	gen := &generation{prompt: text, done: make(chan struct{})}
	conv.run = gen

	go func() {
		defer close(gen.done)
		resp, err := s.model.GenerateContent(ctx, history, llms.WithTemperature(s.cfg.Temperature))
		if err != nil {
			gen.err = err
			return
		}
		if len(resp.Choices) == 0 {
			return
		}
		gen.text = resp.Choices[0].Content
	}()
	return nil
}

// PollUntilComplete waits for the pending reply with exponential backoff,
// giving up with ErrTimeout after the configured number of polls.
func (s *LLMService) PollUntilComplete(ctx context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	conv, ok := s.sessions[sessionID]
	var gen *generation
	if ok {
		gen = conv.run
	}
	s.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	if gen == nil {
		return "", fmt.Errorf("no pending reply on session %s", sessionID)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.cfg.PollInitial
	exp.MaxInterval = s.cfg.PollMaxInterval
	exp.MaxElapsedTime = 0

	poll := func() error {
		select {
		case <-gen.done:
			return nil
		default:
			return errNotReady
		}
	}
	err := backoff.Retry(poll, backoff.WithContext(backoff.WithMaxRetries(exp, s.cfg.PollMaxRetries), ctx))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: session %s after %d polls", ErrTimeout, sessionID, s.cfg.PollMaxRetries)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	conv.run = nil
	if gen.err != nil {
		return "", fmt.Errorf("generate reply: %w", gen.err)
	}
	conv.messages = append(conv.messages, llms.MessageContent{
		Role:  schema.ChatMessageTypeAI,
		Parts: []llms.ContentPart{llms.TextPart(gen.text)},
	})
	s.logger.LogLLM(sessionID, gen.prompt, gen.text)
	return gen.text, nil
}

func (s *LLMService) CloseSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	delete(s.sessions, sessionID)
	return nil
}

func attachmentPart(a Attachment) llms.ContentPart {
	if a.IsImage() {
		return llms.BinaryPart(a.MIMEType, a.Data)
	}
	return llms.TextPart(fmt.Sprintf("Attached file %s (%s):\n%s", a.Name, a.MIMEType, a.Data))
}
