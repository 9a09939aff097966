package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// EventKind is the closed set of provider event types the dispatcher knows
// how to apply. Everything else maps to EventKindUnknown, which is stored
// and acknowledged but never mutates the ledger.
type EventKind string

const (
	EventKindSubscriptionCreated    EventKind = "subscription.created"
	EventKindSubscriptionUpdated    EventKind = "subscription.updated"
	EventKindSubscriptionActive     EventKind = "subscription.active"
	EventKindSubscriptionCanceled   EventKind = "subscription.canceled"
	EventKindSubscriptionUncanceled EventKind = "subscription.uncanceled"
	EventKindSubscriptionRevoked    EventKind = "subscription.revoked"
	EventKindOrderCreated           EventKind = "order.created"
	EventKindUnknown                EventKind = "unknown"
)

// KindFromType maps the declared webhook type onto a known kind.
func KindFromType(eventType string) EventKind {
	switch strings.ToLower(strings.TrimSpace(eventType)) {
	case string(EventKindSubscriptionCreated):
		return EventKindSubscriptionCreated
	case string(EventKindSubscriptionUpdated):
		return EventKindSubscriptionUpdated
	case string(EventKindSubscriptionActive):
		return EventKindSubscriptionActive
	case string(EventKindSubscriptionCanceled):
		return EventKindSubscriptionCanceled
	case string(EventKindSubscriptionUncanceled):
		return EventKindSubscriptionUncanceled
	case string(EventKindSubscriptionRevoked):
		return EventKindSubscriptionRevoked
	case string(EventKindOrderCreated):
		return EventKindOrderCreated
	default:
		return EventKindUnknown
	}
}

// IsSubscriptionKind reports whether the kind carries a subscription payload.
func (k EventKind) IsSubscriptionKind() bool {
	switch k {
	case EventKindSubscriptionCreated, EventKindSubscriptionUpdated, EventKindSubscriptionActive,
		EventKindSubscriptionCanceled, EventKindSubscriptionUncanceled, EventKindSubscriptionRevoked:
		return true
	default:
		return false
	}
}

// SubscriptionPayload is the validated shape of `data` for subscription
// lifecycle events.
type SubscriptionPayload struct {
	ID                          string                 `json:"id" validate:"required"`
	Status                      string                 `json:"status"`
	PriceID                     string                 `json:"price_id"`
	Currency                    string                 `json:"currency"`
	RecurringInterval           string                 `json:"recurring_interval"`
	Amount                      int64                  `json:"amount"`
	CurrentPeriodStart          *time.Time             `json:"current_period_start"`
	CurrentPeriodEnd            *time.Time             `json:"current_period_end"`
	CancelAtPeriodEnd           bool                   `json:"cancel_at_period_end"`
	CustomerCancellationReason  string                 `json:"customer_cancellation_reason"`
	CustomerCancellationComment string                 `json:"customer_cancellation_comment"`
	StartedAt                   *time.Time             `json:"started_at"`
	EndedAt                     *time.Time             `json:"ended_at"`
	CanceledAt                  *time.Time             `json:"canceled_at"`
	Metadata                    map[string]interface{} `json:"metadata"`
	CustomFieldData             map[string]interface{} `json:"custom_field_data"`
}

// WebhookEvent is one parsed and validated provider notification.
// Subscription is non-nil exactly when Kind.IsSubscriptionKind().
type WebhookEvent struct {
	Kind         EventKind
	Type         string
	UserID       uint
	Subscription *SubscriptionPayload
	Raw          json.RawMessage
}

var eventValidate = validator.New()

// ParseWebhookEvent parses the raw body of a webhook delivery into a typed
// event. Malformed JSON, a missing type, or a subscription payload that
// fails schema validation is an error; an unrecognized type is not.
func ParseWebhookEvent(raw []byte) (*WebhookEvent, error) {
	var envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("webhook payload is not valid JSON: %w", err)
	}
	if strings.TrimSpace(envelope.Type) == "" {
		return nil, errors.New("webhook payload missing type")
	}

	ev := &WebhookEvent{
		Kind: KindFromType(envelope.Type),
		Type: strings.TrimSpace(envelope.Type),
		Raw:  append(json.RawMessage(nil), raw...),
	}
	if !ev.Kind.IsSubscriptionKind() {
		return ev, nil
	}

	var payload SubscriptionPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return nil, fmt.Errorf("subscription payload is not valid JSON: %w", err)
	}
	if err := eventValidate.Struct(&payload); err != nil {
		return nil, fmt.Errorf("subscription payload failed validation: %w", err)
	}

	userID, err := userIDFromMetadata(payload.Metadata)
	if err != nil {
		return nil, err
	}

	ev.UserID = userID
	ev.Subscription = &payload
	return ev, nil
}

// userIDFromMetadata extracts the owning account id from checkout metadata.
// The provider echoes metadata verbatim, so the value may arrive as a JSON
// string or number.
func userIDFromMetadata(metadata map[string]interface{}) (uint, error) {
	raw, ok := metadata["user_id"]
	if !ok {
		return 0, errors.New("subscription payload missing metadata.user_id")
	}

	switch v := raw.(type) {
	case string:
		id, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil || id == 0 {
			return 0, fmt.Errorf("metadata.user_id %q is not a valid account id", v)
		}
		return uint(id), nil
	case float64:
		if v <= 0 || v != float64(uint64(v)) {
			return 0, fmt.Errorf("metadata.user_id %v is not a valid account id", v)
		}
		return uint(v), nil
	default:
		return 0, fmt.Errorf("metadata.user_id has unsupported type %T", raw)
	}
}
