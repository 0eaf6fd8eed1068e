package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-affiliate/internal/events"
	"github.com/noah-isme/toko-affiliate/internal/resilience"
)

type flakyNotifier struct {
	failures int
	calls    int
}

func (f *flakyNotifier) Notify(context.Context, events.Event) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("relay unavailable")
	}
	return nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestGuardedRetriesUntilDelivered(t *testing.T) {
	next := &flakyNotifier{failures: 2}
	g := Guarded{Next: next, Retry: resilience.Retry{MaxAttempts: 3, Sleep: noSleep}}

	require.NoError(t, g.Notify(context.Background(), events.Event{Topic: events.TopicAffiliateSale}))
	require.Equal(t, 3, next.calls)
}

func TestGuardedStopsWhenBreakerOpens(t *testing.T) {
	next := &flakyNotifier{failures: 100}
	breaker := resilience.NewBreaker("mail", 2, 0.5, time.Minute)
	g := Guarded{Next: next, Retry: resilience.Retry{Breaker: breaker, MaxAttempts: 5, Sleep: noSleep}}

	err := g.Notify(context.Background(), events.Event{Topic: events.TopicCommissionEarned})
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
	require.Equal(t, 2, next.calls)

	err = g.Notify(context.Background(), events.Event{Topic: events.TopicCommissionEarned})
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
	require.Equal(t, 2, next.calls)
}
