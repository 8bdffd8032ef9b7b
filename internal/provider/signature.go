package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignCallback computes the callback signature: HMAC-SHA256 over
// "<orderRef>|<paymentID>", hex encoded. The canonical payload pins field
// order, so any byte the provider did not sign fails verification.
func SignCallback(orderRef, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderRef + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCallback compares the provided signature against the expected one
// in constant time.
func VerifyCallback(orderRef, paymentID, signature, secret string) bool {
	if signature == "" {
		return false
	}
	expected := SignCallback(orderRef, paymentID, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
