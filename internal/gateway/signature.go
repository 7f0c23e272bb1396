package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// Signature computes the hex-encoded HMAC-SHA512 of body under secret. This is
// the scheme the provider uses to sign webhook deliveries.
func Signature(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidSignature reports whether header carries the correct signature for body.
// The comparison is constant time.
func ValidSignature(secret string, body []byte, header string) bool {
	if header == "" {
		return false
	}
	expected := Signature(secret, body)
	return hmac.Equal([]byte(expected), []byte(header))
}
