package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrMissingMetadata signals a subscription or checkout session without the
// user association metadata that checkout always sets. Treated as a
// configuration/programming error, not a user error.
var ErrMissingMetadata = errors.New("billing object is missing userId metadata")

// MetadataUserIDKey is the metadata key carrying the local user id on
// provider subscriptions and checkout sessions.
const MetadataUserIDKey = "userId"

var validate = validator.New()

// ParseEvent validates and decodes the webhook envelope. Payloads are parsed
// at the boundary so malformed fields fail fast instead of surfacing deep in
// the reconciler.
func ParseEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("invalid event payload: %w", err)
	}
	if err := validate.Struct(&ev); err != nil {
		return nil, fmt.Errorf("invalid event payload: %w", err)
	}
	return &ev, nil
}

// ParseSubscription decodes a subscription object from an event payload.
func ParseSubscription(raw json.RawMessage) (*Subscription, error) {
	var sub Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("invalid subscription payload: %w", err)
	}
	if err := validate.Struct(&sub); err != nil {
		return nil, fmt.Errorf("invalid subscription payload: %w", err)
	}
	return &sub, nil
}

// ParseCheckoutSession decodes a checkout session object from an event payload.
func ParseCheckoutSession(raw json.RawMessage) (*CheckoutSession, error) {
	var sess CheckoutSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("invalid checkout session payload: %w", err)
	}
	if err := validate.Struct(&sess); err != nil {
		return nil, fmt.Errorf("invalid checkout session payload: %w", err)
	}
	return &sess, nil
}

// ParseInvoice decodes an invoice object from an event payload.
func ParseInvoice(raw json.RawMessage) (*Invoice, error) {
	var inv Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("invalid invoice payload: %w", err)
	}
	if err := validate.Struct(&inv); err != nil {
		return nil, fmt.Errorf("invalid invoice payload: %w", err)
	}
	return &inv, nil
}

// UserIDFromMetadata extracts the local user id set during checkout.
func UserIDFromMetadata(metadata map[string]string) (uint, error) {
	raw := strings.TrimSpace(metadata[MetadataUserIDKey])
	if raw == "" {
		return 0, ErrMissingMetadata
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %q", ErrMissingMetadata, raw)
	}
	return uint(id), nil
}
