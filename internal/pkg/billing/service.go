package billing

import (
	"context"
	"errors"
	"strings"

	"github.com/coverpilothq/coverpilot/app/models"
	"github.com/coverpilothq/coverpilot/internal/pkg/entitlements"
	"gorm.io/gorm"
)

// Service provides webhook reconciliation and subscription standing queries.
type Service struct {
	repo       Repository
	dispatcher *Dispatcher
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, dispatcher: NewDispatcher(repo)}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// RecordWebhookEvent appends an event to the audit log. Every delivery is
// stored, including redeliveries and unrecognized types; the log does not
// deduplicate.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (*models.WebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return nil, errors.New("provider is required")
	}

	event := &models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: strings.TrimSpace(in.ProviderEventID),
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	if err := s.repo.CreateWebhookEvent(event); err != nil {
		return nil, err
	}
	return event, nil
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

// HandleEvent applies a parsed event to the ledger and, when the event is
// bound to an account, reconciles that account's effective plan.
func (s *Service) HandleEvent(ctx context.Context, ev *WebhookEvent) error {
	if err := s.dispatcher.Apply(ctx, ev); err != nil {
		return err
	}
	if ev != nil && ev.UserID != 0 {
		if _, err := s.ReconcileUserPlan(ctx, ev.UserID); err != nil {
			return err
		}
	}
	return nil
}

// ReconcileUserPlan computes and writes the effective plan for a user from
// the ledger. The written plan is a convenience for session display; quota
// decisions always go through GetStanding.
func (s *Service) ReconcileUserPlan(ctx context.Context, userID uint) (string, error) {
	_ = ctx
	if userID == 0 {
		return "", errors.New("user_id is required")
	}

	subs, err := s.repo.ListSubscriptionsByUser(userID)
	if err != nil {
		return "", err
	}

	plan := entitlements.PlanFree
	for i := range subs {
		if subs[i].IsEntitling() {
			plan = entitlements.PlanPro
			break
		}
	}

	us, err := s.repo.GetOrCreateUserSettings(userID)
	if err != nil {
		return "", err
	}
	if entitlements.NormalizePlan(us.Plan) == plan {
		return string(plan), nil
	}
	us.Plan = string(plan)
	if err := s.repo.SaveUserSettings(us); err != nil {
		return "", err
	}
	return string(plan), nil
}
