package notify

import (
	"context"

	"github.com/noah-isme/toko-affiliate/internal/events"
	"github.com/noah-isme/toko-affiliate/internal/resilience"
)

// Guarded retries a notifier with backoff and stops calling it while its breaker is open.
type Guarded struct {
	Next  events.Notifier
	Retry resilience.Retry
}

// Notify implements events.Notifier.
func (g Guarded) Notify(ctx context.Context, event events.Event) error {
	if g.Next == nil {
		return nil
	}
	return g.Retry.Do(ctx, func(ctx context.Context) error {
		return g.Next.Notify(ctx, event)
	})
}
