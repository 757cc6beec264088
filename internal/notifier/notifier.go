package notifier

import "context"

// Notifier delivers operator messages.
type Notifier interface {
	Send(ctx context.Context, text string) error
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// NoopNotifier drops every message. Used when no bot token is configured.
type NoopNotifier struct{}

func (NoopNotifier) Send(context.Context, string) error               { return nil }
func (NoopNotifier) SendWithRetry(context.Context, string, int) error { return nil }
