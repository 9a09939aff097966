package controllers

import (
	"context"
	"time"

	"github.com/coverpilothq/coverpilot/app/models"
	"github.com/coverpilothq/coverpilot/internal/pkg/billing"
	"github.com/coverpilothq/coverpilot/internal/pkg/env"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// WebhookController ingests payment-provider webhook deliveries. The
// billing service and secret/clock sources are injected so tests can run
// the full request path against a fake repository.
type WebhookController struct {
	svc    *billing.Service
	secret func() string
	now    func() time.Time
}

// NewWebhookController creates the controller with production defaults.
func NewWebhookController(svc *billing.Service) *WebhookController {
	return &WebhookController{
		svc: svc,
		secret: func() string {
			return env.GetEnv("POLAR_WEBHOOK_SECRET", "")
		},
		now: time.Now,
	}
}

// WithSecret overrides the webhook secret source. Used by tests.
func (wc *WebhookController) WithSecret(secret func() string) *WebhookController {
	wc.secret = secret
	return wc
}

// WithClock overrides the clock. Used by tests for the freshness check.
func (wc *WebhookController) WithClock(now func() time.Time) *WebhookController {
	wc.now = now
	return wc
}

// HandlePolarWebhook processes one delivery: verify authenticity and
// freshness, parse and validate the payload, append it to the audit log,
// then dispatch it into the ledger. The endpoint is idempotent under
// redelivery because every ledger mutation is.
func (wc *WebhookController) HandlePolarWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	secret := wc.secret()
	if secret == "" {
		log.Error("webhook secret is not configured")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook secret not configured"})
	}

	if !billing.VerifyWebhookTimestamp(c.Get("Webhook-Timestamp"), wc.now()) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "stale webhook timestamp"})
	}

	signature := firstHeaderValue(c, "Polar-Signature", "Webhook-Signature")
	if !billing.VerifyWebhookSignature(rawBody, signature, secret) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid signature"})
	}

	ev, err := billing.ParseWebhookEvent(rawBody)
	if err != nil {
		// Malformed payloads are not stored; the audit row needs a parsed type.
		log.Errorf("webhook payload rejected: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "invalid payload"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	stored, storeErr := wc.svc.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        models.BillingProviderPolar,
		ProviderEventID: firstHeaderValue(c, "Webhook-Id", "Polar-Webhook-Id"),
		EventType:       ev.Type,
		PayloadJSON:     string(rawBody),
		SignatureValid:  true,
	})
	if storeErr != nil {
		// Audit trail is best-effort; a store failure never blocks dispatch.
		log.Errorf("failed to store webhook event: %v", storeErr)
	}

	dispatchErr := wc.svc.HandleEvent(ctx, ev)
	if stored != nil {
		if err := wc.svc.MarkWebhookProcessed(ctx, stored.ID, dispatchErr); err != nil {
			log.Warnf("failed to mark webhook event %d processed: %v", stored.ID, err)
		}
	}
	if dispatchErr != nil {
		log.Errorf("webhook dispatch failed for %s: %v", ev.Type, dispatchErr)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "subscription sync failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}
