package router

import (
	"github.com/coverpilothq/coverpilot/app/controllers"
	"github.com/coverpilothq/coverpilot/internal/pkg/billing"
	"github.com/coverpilothq/coverpilot/internal/pkg/constants"
	"github.com/coverpilothq/coverpilot/internal/pkg/database"
	"github.com/gofiber/fiber/v2"
)

// WebhookRouter installs the payment-provider ingestion endpoint. It is
// deliberately outside the API-key group: deliveries authenticate with
// their HMAC signature, not with a user credential.
type WebhookRouter struct {
}

func (h WebhookRouter) InstallRouter(app *fiber.App) {
	wc := controllers.NewWebhookController(billing.NewServiceFromDB(database.GetDB()))

	webhooks := app.Group(constants.WebhooksRoute)
	webhooks.Post(constants.PolarWebhookRoute, wc.HandlePolarWebhook)
}

func NewWebhookRouter() *WebhookRouter {
	return &WebhookRouter{}
}
