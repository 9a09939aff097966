package constants

// Static route constants
const (
	WebhooksRoute     = "/webhooks"
	PolarWebhookRoute = "/polar"
	APIRoute          = "/api"
	APIV1Route        = "/v1"
)
