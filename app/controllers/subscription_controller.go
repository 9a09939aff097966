package controllers

import (
	"context"
	"time"

	"github.com/coverpilothq/coverpilot/app/repository"
	"github.com/coverpilothq/coverpilot/internal/pkg/billing"
	"github.com/coverpilothq/coverpilot/internal/pkg/usage"
	"github.com/coverpilothq/coverpilot/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// SubscriptionController serves the plan standing query consumed by the
// dashboard and by any client that needs to know whether another letter
// may be generated.
type SubscriptionController struct {
	svc      *billing.Service
	letters  repository.CoverLetterRepository
	checkout *billing.PolarClient
	now      func() time.Time
}

// NewSubscriptionController creates the controller.
func NewSubscriptionController(svc *billing.Service, letters repository.CoverLetterRepository, checkout *billing.PolarClient) *SubscriptionController {
	return &SubscriptionController{
		svc:      svc,
		letters:  letters,
		checkout: checkout,
		now:      time.Now,
	}
}

// WithClock overrides the clock. Used by tests to pin the month window.
func (sc *SubscriptionController) WithClock(now func() time.Time) *SubscriptionController {
	sc.now = now
	return sc
}

// HandleGetStanding returns the caller's current plan standing combined
// with this month's usage. Standing is read from the ledger on every call.
func (sc *SubscriptionController) HandleGetStanding(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	standing, err := sc.svc.GetStanding(ctx, userCtx.UserID)
	if err != nil {
		log.Errorf("standing query failed for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "standing query failed"})
	}

	used, err := usage.CountThisMonth(sc.letters, userCtx.UserID, sc.now())
	if err != nil {
		log.Errorf("usage count failed for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "usage query failed"})
	}

	var subscriptionID interface{}
	if standing.ProviderSubscriptionID != "" {
		subscriptionID = standing.ProviderSubscriptionID
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"has_active_subscription": standing.Active,
		"subscription_id":         subscriptionID,
		"plan":                    standing.Plan,
		"quota":                   standing.Quota,
		"used_this_month":         used,
		"status":                  standing.Status,
		"current_period_end":      formatTimePtr(standing.CurrentPeriodEnd),
		"cancel_at_period_end":    standing.CancelAtPeriodEnd,
	})
}

// HandleCreateCheckout opens a hosted checkout session for the caller and
// returns the redirect URL.
func (sc *SubscriptionController) HandleCreateCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	url, err := sc.checkout.CreateCheckout(ctx, userCtx.UserID)
	if err != nil {
		log.Errorf("checkout creation failed for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "checkout creation failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"checkout_url": url})
}
