package billing

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/coverpilothq/coverpilot/app/models"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// Dispatcher applies parsed webhook events to the subscription ledger.
// Every mutation is idempotent: "created" is an upsert keyed by provider
// subscription id, and update kinds overwrite fields unconditionally, so
// redelivering the same event any number of times converges on the same
// ledger state.
type Dispatcher struct {
	repo Repository
}

// NewDispatcher creates a dispatcher over an injected repository.
func NewDispatcher(repo Repository) *Dispatcher {
	return &Dispatcher{repo: repo}
}

// Apply mutates the ledger according to the event kind. Update kinds whose
// subscription id has no ledger row are logged no-ops, not errors; this
// tolerates out-of-order delivery at the cost of potentially dropping a
// legitimate update. Informational and unrecognized kinds never mutate.
func (d *Dispatcher) Apply(ctx context.Context, ev *WebhookEvent) error {
	_ = ctx
	if ev == nil {
		return errors.New("event is required")
	}

	switch ev.Kind {
	case EventKindSubscriptionCreated:
		return d.applyCreated(ev)
	case EventKindSubscriptionUpdated:
		return d.applyUpdated(ev)
	case EventKindSubscriptionActive:
		return d.applyActive(ev)
	case EventKindSubscriptionCanceled:
		return d.applyCanceled(ev)
	case EventKindSubscriptionUncanceled:
		return d.applyUncanceled(ev)
	case EventKindSubscriptionRevoked:
		return d.applyRevoked(ev)
	case EventKindOrderCreated:
		// Informational only, no ledger mutation.
		return nil
	default:
		log.Infof("ignoring unrecognized webhook event type %q", ev.Type)
		return nil
	}
}

func (d *Dispatcher) applyCreated(ev *WebhookEvent) error {
	p := ev.Subscription
	sub := &models.Subscription{
		UserID:                 ev.UserID,
		Provider:               models.BillingProviderPolar,
		ProviderSubscriptionID: strings.TrimSpace(p.ID),
		Status:                 normalizeStatus(p.Status),
		PriceID:                strings.TrimSpace(p.PriceID),
		Currency:               strings.ToLower(strings.TrimSpace(p.Currency)),
		RecurringInterval:      normalizeInterval(p.RecurringInterval),
		Amount:                 p.Amount,
		CurrentPeriodStart:     p.CurrentPeriodStart,
		CurrentPeriodEnd:       p.CurrentPeriodEnd,
		CancelAtPeriodEnd:      p.CancelAtPeriodEnd,
		CancellationReason:     strings.TrimSpace(p.CustomerCancellationReason),
		CancellationComment:    strings.TrimSpace(p.CustomerCancellationComment),
		StartedAt:              p.StartedAt,
		EndedAt:                p.EndedAt,
		CanceledAt:             p.CanceledAt,
		MetadataJSON:           marshalJSONField(p.Metadata),
		CustomFieldDataJSON:    marshalJSONField(p.CustomFieldData),
		RawPayloadJSON:         string(ev.Raw),
	}
	return d.repo.UpsertSubscription(sub)
}

func (d *Dispatcher) applyUpdated(ev *WebhookEvent) error {
	sub, ok, err := d.existing(ev)
	if err != nil || !ok {
		return err
	}

	p := ev.Subscription
	sub.Status = normalizeStatus(p.Status)
	sub.PriceID = strings.TrimSpace(p.PriceID)
	sub.Currency = strings.ToLower(strings.TrimSpace(p.Currency))
	sub.RecurringInterval = normalizeInterval(p.RecurringInterval)
	sub.Amount = p.Amount
	sub.CurrentPeriodStart = p.CurrentPeriodStart
	sub.CurrentPeriodEnd = p.CurrentPeriodEnd
	sub.CancelAtPeriodEnd = p.CancelAtPeriodEnd
	sub.MetadataJSON = marshalJSONField(p.Metadata)
	sub.CustomFieldDataJSON = marshalJSONField(p.CustomFieldData)
	sub.RawPayloadJSON = string(ev.Raw)
	return d.repo.SaveSubscription(sub)
}

func (d *Dispatcher) applyActive(ev *WebhookEvent) error {
	sub, ok, err := d.existing(ev)
	if err != nil || !ok {
		return err
	}

	sub.Status = models.SubscriptionStatusActive
	if ev.Subscription.StartedAt != nil {
		sub.StartedAt = ev.Subscription.StartedAt
	}
	sub.RawPayloadJSON = string(ev.Raw)
	return d.repo.SaveSubscription(sub)
}

func (d *Dispatcher) applyCanceled(ev *WebhookEvent) error {
	sub, ok, err := d.existing(ev)
	if err != nil || !ok {
		return err
	}

	p := ev.Subscription
	status := normalizeStatus(p.Status)
	if strings.TrimSpace(p.Status) == "" {
		status = models.SubscriptionStatusCanceled
	}
	sub.Status = status
	sub.CancelAtPeriodEnd = p.CancelAtPeriodEnd
	// The provider timestamp is authoritative; when the payload omits it the
	// stored value is kept untouched so replaying the same delivery always
	// converges on the same row.
	if p.CanceledAt != nil {
		sub.CanceledAt = p.CanceledAt
	}
	sub.CancellationReason = strings.TrimSpace(p.CustomerCancellationReason)
	sub.CancellationComment = strings.TrimSpace(p.CustomerCancellationComment)
	sub.RawPayloadJSON = string(ev.Raw)
	return d.repo.SaveSubscription(sub)
}

func (d *Dispatcher) applyUncanceled(ev *WebhookEvent) error {
	sub, ok, err := d.existing(ev)
	if err != nil || !ok {
		return err
	}

	p := ev.Subscription
	status := normalizeStatus(p.Status)
	if strings.TrimSpace(p.Status) == "" {
		status = models.SubscriptionStatusActive
	}
	sub.Status = status
	sub.CancelAtPeriodEnd = false
	sub.CanceledAt = nil
	sub.CancellationReason = ""
	sub.CancellationComment = ""
	sub.RawPayloadJSON = string(ev.Raw)
	return d.repo.SaveSubscription(sub)
}

func (d *Dispatcher) applyRevoked(ev *WebhookEvent) error {
	sub, ok, err := d.existing(ev)
	if err != nil || !ok {
		return err
	}

	// Revocation is terminal regardless of prior status. As with canceled_at,
	// ended_at only changes when the payload carries it.
	sub.Status = models.SubscriptionStatusRevoked
	if ev.Subscription.EndedAt != nil {
		sub.EndedAt = ev.Subscription.EndedAt
	}
	sub.RawPayloadJSON = string(ev.Raw)
	return d.repo.SaveSubscription(sub)
}

// existing resolves the ledger row for an update kind. A missing row is a
// logged no-op (ok=false, err=nil); any other lookup failure propagates.
func (d *Dispatcher) existing(ev *WebhookEvent) (*models.Subscription, bool, error) {
	sub, err := d.repo.GetSubscriptionByProviderID(models.BillingProviderPolar, strings.TrimSpace(ev.Subscription.ID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Infof("dropping %s for unknown subscription %s", ev.Kind, ev.Subscription.ID)
			return nil, false, nil
		}
		return nil, false, err
	}
	return sub, true, nil
}

func normalizeStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case models.SubscriptionStatusActive:
		return models.SubscriptionStatusActive
	case models.SubscriptionStatusTrialing:
		return models.SubscriptionStatusTrialing
	case models.SubscriptionStatusPastDue:
		return models.SubscriptionStatusPastDue
	case models.SubscriptionStatusCanceled:
		return models.SubscriptionStatusCanceled
	case models.SubscriptionStatusRevoked:
		return models.SubscriptionStatusRevoked
	case "":
		return models.SubscriptionStatusActive
	default:
		return models.SubscriptionStatusIncomplete
	}
}

func normalizeInterval(interval string) string {
	i := strings.ToLower(strings.TrimSpace(interval))
	switch i {
	case models.SubscriptionIntervalMonth, models.SubscriptionIntervalYear:
		return i
	default:
		return models.SubscriptionIntervalUnknown
	}
}

func marshalJSONField(m map[string]interface{}) string {
	if len(m) == 0 {
		return ""
	}
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}
