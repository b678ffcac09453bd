package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrInvalidSignature is returned when a webhook or checkout signature
// does not match the expected HMAC.
var ErrInvalidSignature = errors.New("invalid razorpay signature")

// SignHMAC computes the hex-encoded HMAC-SHA256 of payload with secret
func SignHMAC(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature validates the X-Razorpay-Signature header against
// the raw webhook body. Signature format: HMAC-SHA256(body, webhook_secret).
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := SignHMAC(secret, body)
	return verifyHex(expected, signature)
}

// VerifyCheckoutSignature validates the signature the checkout widget hands
// back to the client after payment. Signature format:
// HMAC-SHA256("<order_id>|<payment_id>", key_secret).
func VerifyCheckoutSignature(keySecret, orderID, paymentID, signature string) bool {
	if keySecret == "" || orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	expected := SignHMAC(keySecret, []byte(orderID+"|"+paymentID))
	return verifyHex(expected, signature)
}

// verifyHex compares two hex digests in constant time
func verifyHex(expectedHex, receivedHex string) bool {
	expected := strings.ToLower(strings.TrimSpace(expectedHex))
	received := strings.ToLower(strings.TrimSpace(receivedHex))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}
