package events

import "time"

// Topic constants for domain events emitted by the affiliate engine.
const (
	// TopicCommissionEarned is emitted once per reseller with a notifiable commission on a completed order.
	TopicCommissionEarned = "affiliate.commission.earned"
	// TopicAffiliateSale is emitted once per completed order that carries affiliate lines.
	TopicAffiliateSale = "affiliate.sale.recorded"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{TopicCommissionEarned, TopicAffiliateSale}
}

// CommissionLine is one attributed order line in a commission payload.
type CommissionLine struct {
	LineID         string `json:"lineId"`
	ProductName    string `json:"productName"`
	Quantity       int    `json:"quantity"`
	AdjustedProfit string `json:"adjustedProfit"`
	Commission     string `json:"commission"`
	ResellerID     string `json:"resellerId,omitempty"`
	ResellerName   string `json:"resellerName,omitempty"`
}

// CommissionPayload is the body of both commission topics.
type CommissionPayload struct {
	Email        string           `json:"email"`
	ResellerID   string           `json:"resellerId,omitempty"`
	ResellerName string           `json:"resellerName,omitempty"`
	OrderID      string           `json:"orderId"`
	OrderNumber  string           `json:"orderNumber"`
	OrderDate    time.Time        `json:"orderDate"`
	Currency     string           `json:"currency"`
	Lines        []CommissionLine `json:"lines"`
	Total        string           `json:"total"`
}
