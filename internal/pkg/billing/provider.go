package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coverpilothq/coverpilot/internal/pkg/env"
)

const defaultPolarAPIBaseURL = "https://api.polar.sh/v1"

// PolarClient talks to the payment provider's checkout API. It is
// constructed explicitly and passed to callers so tests can substitute a
// fake transport; there is no package-level client instance.
type PolarClient struct {
	AccessToken string
	ProductID   string
	SuccessURL  string

	APIBaseURL string

	HTTPClient *http.Client
}

// NewPolarClientFromEnv builds a client from environment configuration.
func NewPolarClientFromEnv() *PolarClient {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	successURL := strings.TrimSpace(env.GetEnv("POLAR_SUCCESS_URL", ""))
	if successURL == "" && base != "" {
		successURL = base + "/dashboard?checkout=success"
	}

	return &PolarClient{
		AccessToken: strings.TrimSpace(env.GetEnv("POLAR_ACCESS_TOKEN", "")),
		ProductID:   strings.TrimSpace(env.GetEnv("POLAR_PRODUCT_ID", "")),
		SuccessURL:  successURL,
		APIBaseURL:  strings.TrimRight(env.GetEnv("POLAR_API_BASE_URL", defaultPolarAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateCheckout opens a hosted checkout session for the given account and
// returns the URL the browser should be redirected to. The account id is
// carried in checkout metadata and echoed back on every webhook, which is
// how ledger rows get bound to local accounts.
func (c *PolarClient) CreateCheckout(ctx context.Context, userID uint) (string, error) {
	if strings.TrimSpace(c.AccessToken) == "" {
		return "", errors.New("POLAR_ACCESS_TOKEN is not configured")
	}
	if strings.TrimSpace(c.ProductID) == "" {
		return "", errors.New("POLAR_PRODUCT_ID is not configured")
	}
	if userID == 0 {
		return "", errors.New("user id is required")
	}

	reqBody := map[string]interface{}{
		"product_id": c.ProductID,
		"metadata": map[string]string{
			"user_id": strconv.FormatUint(uint64(userID), 10),
		},
	}
	if c.SuccessURL != "" {
		reqBody["success_url"] = c.SuccessURL
	}
	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+"/checkouts", strings.NewReader(string(encoded)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("checkout creation failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.URL) == "" {
		return "", errors.New("checkout response missing url")
	}
	return out.URL, nil
}
