package webhook

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// SignatureHeader carries the provider's HMAC of the raw body.
const SignatureHeader = "x-paystack-signature"

// VerifySignature checks the HMAC-SHA512 hex signature of the raw webhook
// body. This is a security boundary: a mismatch rejects the request before
// any of the payload is interpreted.
func VerifySignature(body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
