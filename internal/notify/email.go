package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/noah-isme/toko-affiliate/internal/common"
	"github.com/noah-isme/toko-affiliate/internal/events"
)

// EmailNotifier sends commission emails for selected topics.
type EmailNotifier struct {
	Mail         common.EmailSender
	Enabled      bool
	From         string
	TopicToggles map[string]bool
}

// Notify implements the events.Notifier interface.
func (n EmailNotifier) Notify(_ context.Context, event events.Event) error {
	if !n.Enabled || n.Mail == nil {
		return nil
	}
	if n.TopicToggles != nil {
		if enabled, ok := n.TopicToggles[event.Topic]; ok && !enabled {
			return nil
		}
	}
	var payload events.CommissionPayload
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("email notify: decode payload: %w", err)
		}
	}
	to := strings.TrimSpace(payload.Email)
	if to == "" {
		return nil
	}
	return n.Mail.Send(to, SubjectFor(event.Topic, payload.OrderNumber), bodyFor(event.Topic, payload, event.OccurredAt))
}

// SubjectFor returns the email subject for a commission topic.
func SubjectFor(topic, orderNumber string) string {
	switch topic {
	case events.TopicCommissionEarned:
		return fmt.Sprintf("You have earned a commission on order #%s", orderNumber)
	case events.TopicAffiliateSale:
		return fmt.Sprintf("Affiliate sale on order #%s", orderNumber)
	default:
		return fmt.Sprintf("Notification %s", topic)
	}
}

func bodyFor(topic string, p events.CommissionPayload, occurred time.Time) string {
	var b strings.Builder
	switch topic {
	case events.TopicCommissionEarned:
		name := p.ResellerName
		if name == "" {
			name = "there"
		}
		fmt.Fprintf(&b, "<p>Hi %s,</p><p>Order #%s was completed and earned you a commission.</p>",
			html.EscapeString(name), html.EscapeString(p.OrderNumber))
	default:
		fmt.Fprintf(&b, "<p>Order #%s included products sold through affiliate links.</p>", html.EscapeString(p.OrderNumber))
	}
	b.WriteString("<table><thead><tr>")
	if topic == events.TopicAffiliateSale {
		b.WriteString("<th>Reseller</th>")
	}
	b.WriteString("<th>Product</th><th>Qty</th><th>Profit per unit</th><th>Commission</th></tr></thead><tbody>")
	for _, l := range p.Lines {
		b.WriteString("<tr>")
		if topic == events.TopicAffiliateSale {
			reseller := l.ResellerName
			if reseller == "" {
				reseller = l.ResellerID
			}
			fmt.Fprintf(&b, "<td>%s</td>", html.EscapeString(reseller))
		}
		fmt.Fprintf(&b, "<td>%s</td><td>%d</td><td>%s %s</td><td>%s %s</td></tr>",
			html.EscapeString(l.ProductName), l.Quantity,
			html.EscapeString(p.Currency), html.EscapeString(l.AdjustedProfit),
			html.EscapeString(p.Currency), html.EscapeString(l.Commission))
	}
	fmt.Fprintf(&b, "</tbody></table><p><strong>Total: %s %s</strong></p>", html.EscapeString(p.Currency), html.EscapeString(p.Total))
	if !occurred.IsZero() {
		fmt.Fprintf(&b, "<p>Recorded at %s.</p>", occurred.Format(time.RFC3339))
	}
	return b.String()
}
