package notify_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-affiliate/internal/common"
	"github.com/noah-isme/toko-affiliate/internal/events"
	"github.com/noah-isme/toko-affiliate/internal/notify"
)

func event(t *testing.T, topic string, p events.CommissionPayload) events.Event {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return events.Event{Topic: topic, AggregateID: p.OrderID, Payload: raw, OccurredAt: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func TestEmailNotifierResellerMail(t *testing.T) {
	outbox := &common.InMemoryEmail{}
	n := notify.EmailNotifier{Mail: outbox, Enabled: true}
	err := n.Notify(context.Background(), event(t, events.TopicCommissionEarned, events.CommissionPayload{
		Email: "reseller@example.com", ResellerName: "Rina", OrderNumber: "1001", Currency: "IDR", Total: "60",
		Lines: []events.CommissionLine{{ProductName: "Kopi <Gayo>", Quantity: 1, AdjustedProfit: "42", Commission: "42"}},
	}))
	require.NoError(t, err)
	sent := outbox.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, "reseller@example.com", sent[0].To)
	require.Equal(t, "You have earned a commission on order #1001", sent[0].Subject)
	require.Contains(t, sent[0].HTML, "Kopi &lt;Gayo&gt;")
	require.Contains(t, sent[0].HTML, "Total: IDR 60")
}

func TestEmailNotifierTogglesAndDisabled(t *testing.T) {
	outbox := &common.InMemoryEmail{}
	ev := event(t, events.TopicAffiliateSale, events.CommissionPayload{Email: "admin@example.com", OrderNumber: "7"})

	require.NoError(t, notify.EmailNotifier{Mail: outbox}.Notify(context.Background(), ev))
	require.NoError(t, notify.EmailNotifier{Mail: outbox, Enabled: true, TopicToggles: map[string]bool{events.TopicAffiliateSale: false}}.Notify(context.Background(), ev))
	require.Empty(t, outbox.Sent())

	require.NoError(t, notify.EmailNotifier{Mail: outbox, Enabled: true}.Notify(context.Background(), ev))
	require.Len(t, outbox.Sent(), 1)
	require.Equal(t, "Affiliate sale on order #7", outbox.Sent()[0].Subject)
}

func TestEmailNotifierSkipsMissingRecipient(t *testing.T) {
	outbox := &common.InMemoryEmail{}
	n := notify.EmailNotifier{Mail: outbox, Enabled: true}
	require.NoError(t, n.Notify(context.Background(), event(t, events.TopicCommissionEarned, events.CommissionPayload{OrderNumber: "1"})))
	require.Empty(t, outbox.Sent())
}
