package billing

import "encoding/json"

// Billing provider event types this service reacts to. Everything else is
// acknowledged without processing.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
	EventInvoicePaymentFailed     = "invoice.payment_failed"
)

// Subscription statuses as reported by the provider.
const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusUnpaid   = "unpaid"
)

// IsRelevantEventType reports whether this service processes the event type.
func IsRelevantEventType(eventType string) bool {
	switch eventType {
	case EventCheckoutSessionCompleted, EventSubscriptionUpdated,
		EventSubscriptionDeleted, EventInvoicePaymentFailed:
		return true
	default:
		return false
	}
}

// Event is the provider webhook envelope.
type Event struct {
	ID   string `json:"id" validate:"required"`
	Type string `json:"type" validate:"required"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// Subscription is the provider subscription object, reduced to the fields the
// reconciler consumes.
type Subscription struct {
	ID       string            `json:"id" validate:"required"`
	Status   string            `json:"status"`
	Customer string            `json:"customer"`
	Metadata map[string]string `json:"metadata"`
	Items    struct {
		Data []SubscriptionItem `json:"data"`
	} `json:"items"`
}

// SubscriptionItem is one line item carrying the purchased price.
type SubscriptionItem struct {
	Price Price `json:"price"`
}

// Price is a provider price reference; UnitAmount is in currency minor units.
type Price struct {
	ID         string `json:"id"`
	UnitAmount int64  `json:"unit_amount"`
}

// PriceID returns the price id of the first line item, or empty.
func (s *Subscription) PriceID() string {
	if len(s.Items.Data) == 0 {
		return ""
	}
	return s.Items.Data[0].Price.ID
}

// CheckoutSession is the provider checkout session object.
type CheckoutSession struct {
	ID           string            `json:"id" validate:"required"`
	Mode         string            `json:"mode"`
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	AmountTotal  int64             `json:"amount_total"`
	URL          string            `json:"url"`
	Metadata     map[string]string `json:"metadata"`
}

// Invoice is the provider invoice object, reduced to the subscription link.
type Invoice struct {
	ID           string `json:"id" validate:"required"`
	Subscription string `json:"subscription"`
}
