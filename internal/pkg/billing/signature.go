package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

const signaturePrefix = "sha256="

// MaxTimestampSkew is the replay window for the optional timestamp header.
// A delivery whose timestamp differs from server time by more than this is
// rejected regardless of signature validity. The boundary is inclusive: a
// skew of exactly 300 seconds still passes.
const MaxTimestampSkew = 300 * time.Second

// VerifyWebhookSignature checks the HMAC-SHA256 signature of a webhook
// delivery against the exact raw payload bytes. The signature header may
// carry a "sha256=" prefix. Returns false on missing header, missing
// secret, decode failure or mismatch; it never panics and never logs the
// secret or the payload.
func VerifyWebhookSignature(payload []byte, signatureHeader, webhookSecret string) bool {
	sig := strings.TrimSpace(signatureHeader)
	secret := strings.TrimSpace(webhookSecret)
	if sig == "" || secret == "" {
		return false
	}

	sig = strings.TrimPrefix(sig, signaturePrefix)
	decodedSig, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		log.Warnf("webhook signature header is not valid hex: %v", err)
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), decodedSig)
}

// VerifyWebhookTimestamp checks the freshness of a delivery. The header
// carries unix seconds. An absent header is accepted (the timestamp check
// is optional); a present but unparsable header is rejected.
func VerifyWebhookTimestamp(timestampHeader string, now time.Time) bool {
	ts := strings.TrimSpace(timestampHeader)
	if ts == "" {
		return true
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		log.Warnf("webhook timestamp header is not a unix timestamp: %v", err)
		return false
	}

	skew := now.Sub(time.Unix(unix, 0))
	if skew < 0 {
		skew = -skew
	}
	return skew <= MaxTimestampSkew
}
