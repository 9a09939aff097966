package controllers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/coverpilothq/coverpilot/app/models"
	"github.com/coverpilothq/coverpilot/internal/pkg/billing"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memBillingRepo struct {
	subs     []*models.Subscription
	events   []*models.WebhookEvent
	settings map[uint]*models.UserSettings

	createEventErr error
}

func newMemBillingRepo() *memBillingRepo {
	return &memBillingRepo{settings: map[uint]*models.UserSettings{}}
}

func (m *memBillingRepo) GetSubscriptionByProviderID(provider, providerSubscriptionID string) (*models.Subscription, error) {
	for _, s := range m.subs {
		if s.Provider == provider && s.ProviderSubscriptionID == providerSubscriptionID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memBillingRepo) UpsertSubscription(sub *models.Subscription) error {
	for _, s := range m.subs {
		if s.Provider == sub.Provider && s.ProviderSubscriptionID == sub.ProviderSubscriptionID {
			id := s.ID
			*s = *sub
			s.ID = id
			sub.ID = id
			return nil
		}
	}
	sub.ID = uint(len(m.subs) + 1)
	cp := *sub
	m.subs = append(m.subs, &cp)
	return nil
}

func (m *memBillingRepo) SaveSubscription(sub *models.Subscription) error {
	for _, s := range m.subs {
		if s.ID == sub.ID {
			*s = *sub
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *memBillingRepo) ListSubscriptionsByUser(userID uint) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, s := range m.subs {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memBillingRepo) GetLatestActiveSubscriptionByUser(userID uint) (*models.Subscription, error) {
	for _, s := range m.subs {
		if s.UserID == userID && s.Status == models.SubscriptionStatusActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memBillingRepo) CreateWebhookEvent(event *models.WebhookEvent) error {
	if m.createEventErr != nil {
		return m.createEventErr
	}
	event.ID = uint(len(m.events) + 1)
	cp := *event
	m.events = append(m.events, &cp)
	return nil
}

func (m *memBillingRepo) MarkWebhookProcessed(id uint, processingError string) error {
	for _, e := range m.events {
		if e.ID == id {
			now := time.Now()
			e.ProcessedAt = &now
			e.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *memBillingRepo) GetOrCreateUserSettings(userID uint) (*models.UserSettings, error) {
	if us, ok := m.settings[userID]; ok {
		return us, nil
	}
	us := &models.UserSettings{UserID: userID, Plan: "free"}
	m.settings[userID] = us
	return us, nil
}

func (m *memBillingRepo) SaveUserSettings(us *models.UserSettings) error {
	m.settings[us.UserID] = us
	return nil
}

const testWebhookSecret = "whsec_test"

func newWebhookTestApp(repo *memBillingRepo, secret string, now time.Time) *fiber.App {
	svc := billing.NewService(repo)
	wc := NewWebhookController(svc).
		WithSecret(func() string { return secret }).
		WithClock(func() time.Time { return now })

	app := fiber.New()
	app.Post("/webhooks/polar", wc.HandlePolarWebhook)
	return app
}

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(t *testing.T, app *fiber.App, body []byte, headers map[string]string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("POST", "/webhooks/polar", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

const webhookCreatedBody = `{
	"type": "subscription.created",
	"data": {
		"id": "sub_wh_1",
		"status": "active",
		"price_id": "price_pro",
		"currency": "usd",
		"recurring_interval": "month",
		"amount": 900,
		"started_at": "2026-08-01T00:00:00Z",
		"current_period_end": "2026-09-01T00:00:00Z",
		"metadata": { "user_id": "42" }
	}
}`

func TestHandlePolarWebhook_ValidDelivery(t *testing.T) {
	repo := newMemBillingRepo()
	app := newWebhookTestApp(repo, testWebhookSecret, time.Now())

	body := []byte(webhookCreatedBody)
	status, respBody := postWebhook(t, app, body, map[string]string{
		"Polar-Signature": signBody(body, testWebhookSecret),
		"Webhook-Id":      "evt_wh_1",
	})

	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, respBody, `"success":true`)

	require.Len(t, repo.subs, 1)
	sub := repo.subs[0]
	assert.Equal(t, uint(42), sub.UserID)
	assert.Equal(t, "sub_wh_1", sub.ProviderSubscriptionID)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)

	require.Len(t, repo.events, 1)
	ev := repo.events[0]
	assert.Equal(t, "polar", ev.Provider)
	assert.Equal(t, "evt_wh_1", ev.ProviderEventID)
	assert.Equal(t, "subscription.created", ev.EventType)
	assert.True(t, ev.SignatureValid)
	assert.NotNil(t, ev.ProcessedAt)
	assert.Empty(t, ev.ProcessingError)

	// The account now has pro standing.
	standing, err := billing.NewService(repo).GetStanding(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, standing.Active)
}

func TestHandlePolarWebhook_ReplayIsIdempotent(t *testing.T) {
	repo := newMemBillingRepo()
	app := newWebhookTestApp(repo, testWebhookSecret, time.Now())

	body := []byte(webhookCreatedBody)
	headers := map[string]string{"Polar-Signature": signBody(body, testWebhookSecret), "Webhook-Id": "evt_wh_1"}

	for i := 0; i < 3; i++ {
		status, _ := postWebhook(t, app, body, headers)
		assert.Equal(t, fiber.StatusOK, status)
	}

	// One ledger row, three audit rows.
	assert.Len(t, repo.subs, 1)
	assert.Len(t, repo.events, 3)
}

func TestHandlePolarWebhook_InvalidSignature(t *testing.T) {
	repo := newMemBillingRepo()
	app := newWebhookTestApp(repo, testWebhookSecret, time.Now())

	body := []byte(webhookCreatedBody)
	status, respBody := postWebhook(t, app, body, map[string]string{
		"Polar-Signature": signBody(body, "wrong-secret"),
	})

	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Contains(t, respBody, "invalid signature")
	assert.Empty(t, repo.subs)
	assert.Empty(t, repo.events)
}

func TestHandlePolarWebhook_MissingSignature(t *testing.T) {
	repo := newMemBillingRepo()
	app := newWebhookTestApp(repo, testWebhookSecret, time.Now())

	status, _ := postWebhook(t, app, []byte(webhookCreatedBody), nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Empty(t, repo.events)
}

func TestHandlePolarWebhook_SignatureHeaderFallback(t *testing.T) {
	repo := newMemBillingRepo()
	app := newWebhookTestApp(repo, testWebhookSecret, time.Now())

	body := []byte(webhookCreatedBody)
	status, _ := postWebhook(t, app, body, map[string]string{
		"Webhook-Signature": "sha256=" + signBody(body, testWebhookSecret),
	})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Len(t, repo.subs, 1)
}

func TestHandlePolarWebhook_StaleTimestamp(t *testing.T) {
	repo := newMemBillingRepo()
	now := time.Unix(1_700_000_000, 0)
	app := newWebhookTestApp(repo, testWebhookSecret, now)

	body := []byte(webhookCreatedBody)
	status, respBody := postWebhook(t, app, body, map[string]string{
		"Polar-Signature":   signBody(body, testWebhookSecret),
		"Webhook-Timestamp": strconv.FormatInt(now.Unix()-301, 10),
	})

	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Contains(t, respBody, "stale webhook timestamp")
	assert.Empty(t, repo.events)

	// Exactly at the window boundary is still accepted.
	status, _ = postWebhook(t, app, body, map[string]string{
		"Polar-Signature":   signBody(body, testWebhookSecret),
		"Webhook-Timestamp": strconv.FormatInt(now.Unix()-300, 10),
	})
	assert.Equal(t, fiber.StatusOK, status)
}

func TestHandlePolarWebhook_SecretNotConfigured(t *testing.T) {
	repo := newMemBillingRepo()
	app := newWebhookTestApp(repo, "", time.Now())

	body := []byte(webhookCreatedBody)
	status, respBody := postWebhook(t, app, body, map[string]string{
		"Polar-Signature": signBody(body, testWebhookSecret),
	})

	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Contains(t, respBody, "webhook secret not configured")
	assert.Empty(t, repo.events)
}

func TestHandlePolarWebhook_MalformedPayloadNotStored(t *testing.T) {
	repo := newMemBillingRepo()
	app := newWebhookTestApp(repo, testWebhookSecret, time.Now())

	body := []byte(`{"type":"subscription.created","data":{"metadata":{}}}`)
	status, respBody := postWebhook(t, app, body, map[string]string{
		"Polar-Signature": signBody(body, testWebhookSecret),
	})

	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Contains(t, respBody, "invalid payload")
	assert.Empty(t, repo.events)
	assert.Empty(t, repo.subs)
}

func TestHandlePolarWebhook_UnknownTypeIsAcknowledged(t *testing.T) {
	repo := newMemBillingRepo()
	app := newWebhookTestApp(repo, testWebhookSecret, time.Now())

	body := []byte(`{"type":"benefit.granted","data":{"id":"ben_1"}}`)
	status, _ := postWebhook(t, app, body, map[string]string{
		"Polar-Signature": signBody(body, testWebhookSecret),
	})

	assert.Equal(t, fiber.StatusOK, status)
	require.Len(t, repo.events, 1)
	assert.Equal(t, "benefit.granted", repo.events[0].EventType)
	assert.Empty(t, repo.subs)
}

func TestHandlePolarWebhook_AuditStoreFailureDoesNotBlockDispatch(t *testing.T) {
	repo := newMemBillingRepo()
	repo.createEventErr = gorm.ErrInvalidDB
	app := newWebhookTestApp(repo, testWebhookSecret, time.Now())

	body := []byte(webhookCreatedBody)
	status, _ := postWebhook(t, app, body, map[string]string{
		"Polar-Signature": signBody(body, testWebhookSecret),
	})

	assert.Equal(t, fiber.StatusOK, status)
	assert.Len(t, repo.subs, 1)
	assert.Empty(t, repo.events)
}

func TestHandlePolarWebhook_RevocationFlow(t *testing.T) {
	repo := newMemBillingRepo()
	app := newWebhookTestApp(repo, testWebhookSecret, time.Now())

	body := []byte(webhookCreatedBody)
	status, _ := postWebhook(t, app, body, map[string]string{
		"Polar-Signature": signBody(body, testWebhookSecret),
	})
	require.Equal(t, fiber.StatusOK, status)

	revoked := []byte(`{"type":"subscription.revoked","data":{"id":"sub_wh_1","metadata":{"user_id":"42"}}}`)
	status, _ = postWebhook(t, app, revoked, map[string]string{
		"Polar-Signature": signBody(revoked, testWebhookSecret),
	})
	require.Equal(t, fiber.StatusOK, status)

	require.Len(t, repo.subs, 1)
	assert.Equal(t, models.SubscriptionStatusRevoked, repo.subs[0].Status)
	assert.Equal(t, "free", repo.settings[42].Plan)

	standing, err := billing.NewService(repo).GetStanding(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, standing.Active)
	assert.Equal(t, 2, standing.Quota)
}
