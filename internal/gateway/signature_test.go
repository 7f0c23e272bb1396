package gateway

import (
	"strings"
	"testing"
)

func TestSignature_Shape(t *testing.T) {
	sig := Signature("whsec_test", []byte(`{"event":"charge.success"}`))
	// hex encoding of a SHA-512 digest
	if len(sig) != 128 {
		t.Fatalf("expected 128 hex chars, got %d", len(sig))
	}
	if strings.ToLower(sig) != sig {
		t.Fatalf("expected lowercase hex, got %q", sig)
	}
}

func TestValidSignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"event":"charge.success","data":{"reference":"ref1"}}`)

	if !ValidSignature(secret, body, Signature(secret, body)) {
		t.Fatal("expected signature over identical body to validate")
	}
	if ValidSignature(secret, []byte(`{"event":"charge.success","data":{"reference":"ref2"}}`), Signature(secret, body)) {
		t.Fatal("expected signature over different body to be rejected")
	}
	if ValidSignature("other_secret", body, Signature(secret, body)) {
		t.Fatal("expected signature under different secret to be rejected")
	}
	if ValidSignature(secret, body, "") {
		t.Fatal("expected empty header to be rejected")
	}
	if ValidSignature(secret, body, "deadbeef") {
		t.Fatal("expected truncated header to be rejected")
	}
}
