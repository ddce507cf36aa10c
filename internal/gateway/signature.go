package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// VerifySignature checks an x-hub-signature-256 header value against the
// HMAC-SHA256 of the raw request body. When no secret is configured the
// result is allowUnsigned; strict deployments keep that false.
func VerifySignature(secret string, body []byte, header string, allowUnsigned bool) bool {
	if secret == "" {
		return allowUnsigned
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := signaturePrefix + hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(header))
}
