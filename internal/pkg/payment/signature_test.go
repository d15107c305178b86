package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"testing"
)

func signBody(payload []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"payment_id":555,"payment_status":"finished"}`)
	secret := "top-secret"

	validSig := signBody(payload, secret)
	if !VerifyWebhookSignature(payload, validSig, secret) {
		t.Fatalf("expected valid signature to verify")
	}
	if !VerifyWebhookSignature(payload, "  "+validSig+" ", secret) {
		t.Fatalf("expected signature with surrounding whitespace to verify")
	}
	if VerifyWebhookSignature(payload, signBody(payload, "other-secret"), secret) {
		t.Fatalf("expected signature from wrong secret to fail")
	}
	if VerifyWebhookSignature([]byte(`{"payment_id":556}`), validSig, secret) {
		t.Fatalf("expected signature over different body to fail")
	}
	if VerifyWebhookSignature(payload, "deadbeef", secret) {
		t.Fatalf("expected truncated signature to fail")
	}
	if VerifyWebhookSignature(payload, "not-hex-at-all", secret) {
		t.Fatalf("expected non-hex signature to fail")
	}
}

func TestVerifyWebhookSignature_EmptySignature(t *testing.T) {
	if VerifyWebhookSignature([]byte("{}"), "", "secret") {
		t.Fatalf("expected empty signature to fail")
	}
}

func TestVerifyWebhookSignature_MissingSecretFailsClosed(t *testing.T) {
	payload := []byte(`{"payment_id":555}`)
	// Even a signature that would verify against some secret must fail when
	// no secret is configured.
	wouldBeValid := signBody(payload, "")
	if VerifyWebhookSignature(payload, wouldBeValid, "") {
		t.Fatalf("expected verification to fail closed with no secret")
	}
	if VerifyWebhookSignature(payload, signBody(payload, "any"), "   ") {
		t.Fatalf("expected verification to fail closed with blank secret")
	}
}
