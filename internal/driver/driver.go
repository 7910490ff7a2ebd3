// Package driver executes primitive browser operations for the orchestrator.
package driver

import (
	"context"
	"errors"
	"time"
)

var ErrElementNotFound = errors.New("element not found")

// Driver is the automation transport the orchestrator executes actions on.
// Every error message is surfaced verbatim to the caller.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	FindAndClick(ctx context.Context, target string) error
	FindAndType(ctx context.Context, target, value string) error
	Reload(ctx context.Context) error
	WaitForText(ctx context.Context, text string, timeout time.Duration) error
	DOM(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, path string) error
	Close() error
}
