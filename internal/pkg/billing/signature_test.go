package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"testing"
	"time"
)

func signPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"type":"subscription.created","data":{"id":"sub_1"}}`)
	secret := "whsec_top-secret"
	validSig := signPayload(payload, secret)

	if !VerifyWebhookSignature(payload, validSig, secret) {
		t.Fatalf("expected signature to validate")
	}
	if !VerifyWebhookSignature(payload, "sha256="+validSig, secret) {
		t.Fatalf("expected prefixed signature to validate")
	}
	if VerifyWebhookSignature(payload, validSig, "other-secret") {
		t.Fatalf("expected signature with wrong secret to fail")
	}
	if VerifyWebhookSignature([]byte(`{"type":"tampered"}`), validSig, secret) {
		t.Fatalf("expected tampered payload to fail")
	}
	if VerifyWebhookSignature(payload, "", secret) {
		t.Fatalf("expected missing header to fail")
	}
	if VerifyWebhookSignature(payload, validSig, "") {
		t.Fatalf("expected missing secret to fail")
	}
	if VerifyWebhookSignature(payload, "not-hex!", secret) {
		t.Fatalf("expected non-hex signature to fail")
	}
}

func TestVerifyWebhookSignature_SingleByteTamper(t *testing.T) {
	payload := []byte(`{"amount":1000}`)
	secret := "whsec_abc"
	sig := []byte(signPayload(payload, secret))

	if sig[0] == 'a' {
		sig[0] = 'b'
	} else {
		sig[0] = 'a'
	}
	if VerifyWebhookSignature(payload, string(sig), secret) {
		t.Fatalf("expected flipped signature byte to fail")
	}
}

func TestVerifyWebhookTimestamp(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name   string
		header string
		want   bool
	}{
		{name: "empty header accepted", header: "", want: true},
		{name: "current time", header: "1700000000", want: true},
		{name: "skew just under window", header: strconv.FormatInt(now.Unix()-299, 10), want: true},
		{name: "skew exactly at window", header: strconv.FormatInt(now.Unix()-300, 10), want: true},
		{name: "skew past window", header: strconv.FormatInt(now.Unix()-301, 10), want: false},
		{name: "future within window", header: strconv.FormatInt(now.Unix()+300, 10), want: true},
		{name: "future past window", header: strconv.FormatInt(now.Unix()+301, 10), want: false},
		{name: "garbage header", header: "not-a-timestamp", want: false},
	}

	for _, tt := range tests {
		if got := VerifyWebhookTimestamp(tt.header, now); got != tt.want {
			t.Fatalf("%s: VerifyWebhookTimestamp(%q) = %v, want %v", tt.name, tt.header, got, tt.want)
		}
	}
}
