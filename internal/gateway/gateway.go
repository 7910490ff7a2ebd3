// Package gateway delivers run reports to chat channels.
package gateway

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/rahul/stepwright/internal/orchestrator"
)

// Messenger defines the interface for communication gateways (Telegram, Discord, etc.)
type Messenger interface {
	Name() string
	// Send sends a message to a specific chat
	Send(chatID string, text string) error
}

type target struct {
	messenger Messenger
	chatID    string
}

// Broadcaster sends the same message to every configured chat.
type Broadcaster struct {
	targets []target
}

func (b *Broadcaster) Add(m Messenger, chatID string) {
	b.targets = append(b.targets, target{messenger: m, chatID: chatID})
}

func (b *Broadcaster) Len() int {
	if b == nil {
		return 0
	}
	return len(b.targets)
}

// Broadcast tries every target and joins the failures.
func (b *Broadcaster) Broadcast(text string) error {
	if b == nil {
		return nil
	}
	var errs []error
	for _, t := range b.targets {
		if err := t.messenger.Send(t.chatID, text); err != nil {
			log.Printf("[Gateway] %s: send to %s failed: %v", t.messenger.Name(), t.chatID, err)
			errs = append(errs, fmt.Errorf("%s: %w", t.messenger.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// FormatReport renders a report as a short markdown message.
func FormatReport(r *orchestrator.Report) string {
	icon := "✅"
	verdict := "passed"
	if !r.Passed() {
		icon = "❌"
		verdict = "failed"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s *stepwright* run %s\n", icon, verdict)
	fmt.Fprintf(&b, "```\n%s```", r.Summary())
	return b.String()
}

// chunk splits text into pieces of at most limit bytes, breaking on line
// boundaries where possible.
func chunk(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}
	var out []string
	for len(text) > limit {
		cut := strings.LastIndexByte(text[:limit], '\n')
		if cut <= 0 {
			cut = limit
			for cut > 0 && text[cut]&0xC0 == 0x80 {
				cut--
			}
		}
		out = append(out, text[:cut])
		text = strings.TrimPrefix(text[cut:], "\n")
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}
